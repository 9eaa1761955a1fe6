package payment

import (
	"time"

	"staysettle/internal/domain/shared/money"
)

type PaymentSucceeded struct {
	PaymentID PaymentID
	BookingID string
	Amount    money.Money
	Reference string
	At        time.Time
}

func (e PaymentSucceeded) EventName() string     { return "payment.succeeded" }
func (e PaymentSucceeded) AggregateID() string   { return string(e.PaymentID) }
func (e PaymentSucceeded) OccurredAt() time.Time { return e.At }

type PaymentFailed struct {
	PaymentID PaymentID
	BookingID string
	Reason    string
	At        time.Time
}

func (e PaymentFailed) EventName() string     { return "payment.failed" }
func (e PaymentFailed) AggregateID() string   { return string(e.PaymentID) }
func (e PaymentFailed) OccurredAt() time.Time { return e.At }

type PaymentRefunded struct {
	PaymentID PaymentID
	BookingID string
	Amount    money.Money
	At        time.Time
}

func (e PaymentRefunded) EventName() string     { return "payment.refunded" }
func (e PaymentRefunded) AggregateID() string   { return string(e.PaymentID) }
func (e PaymentRefunded) OccurredAt() time.Time { return e.At }
