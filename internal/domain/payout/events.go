package payout

import (
	"time"

	"staysettle/internal/domain/shared/money"
)

type PayoutRequested struct {
	PayoutID PayoutID
	HostID   string
	Amount   money.Money
	Earnings int
	At       time.Time
}

func (e PayoutRequested) EventName() string     { return "payout.requested" }
func (e PayoutRequested) AggregateID() string   { return string(e.PayoutID) }
func (e PayoutRequested) OccurredAt() time.Time { return e.At }

type PayoutCompleted struct {
	PayoutID PayoutID
	HostID   string
	Amount   money.Money
	At       time.Time
}

func (e PayoutCompleted) EventName() string     { return "payout.completed" }
func (e PayoutCompleted) AggregateID() string   { return string(e.PayoutID) }
func (e PayoutCompleted) OccurredAt() time.Time { return e.At }

type PayoutFailed struct {
	PayoutID PayoutID
	HostID   string
	Amount   money.Money
	Reason   string
	At       time.Time
}

func (e PayoutFailed) EventName() string     { return "payout.failed" }
func (e PayoutFailed) AggregateID() string   { return string(e.PayoutID) }
func (e PayoutFailed) OccurredAt() time.Time { return e.At }
