package earning

import (
	"time"

	"staysettle/internal/domain/shared/money"
)

type EarningCreated struct {
	EarningID   EarningID
	HostID      string
	BookingID   string
	Net         money.Money
	AvailableAt time.Time
	At          time.Time
}

func (e EarningCreated) EventName() string     { return "earning.created" }
func (e EarningCreated) AggregateID() string   { return string(e.EarningID) }
func (e EarningCreated) OccurredAt() time.Time { return e.At }

type EarningAvailable struct {
	EarningID EarningID
	HostID    string
	Net       money.Money
	At        time.Time
}

func (e EarningAvailable) EventName() string     { return "earning.available" }
func (e EarningAvailable) AggregateID() string   { return string(e.EarningID) }
func (e EarningAvailable) OccurredAt() time.Time { return e.At }

type EarningPaid struct {
	EarningID EarningID
	HostID    string
	PayoutID  string
	Net       money.Money
	At        time.Time
}

func (e EarningPaid) EventName() string     { return "earning.paid" }
func (e EarningPaid) AggregateID() string   { return string(e.EarningID) }
func (e EarningPaid) OccurredAt() time.Time { return e.At }

type EarningCancelled struct {
	EarningID EarningID
	HostID    string
	BookingID string
	Reason    string
	At        time.Time
}

func (e EarningCancelled) EventName() string     { return "earning.cancelled" }
func (e EarningCancelled) AggregateID() string   { return string(e.EarningID) }
func (e EarningCancelled) OccurredAt() time.Time { return e.At }
