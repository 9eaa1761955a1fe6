package earning

import (
	"context"
	"fmt"
	"time"

	"staysettle/internal/domain/shared/events"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

var ErrEarningNotFound = fault.NotFound("earning_not_found", "earning not found")

// DefaultHold is the delay after checkout before an earning can be withdrawn.
const DefaultHold = 24 * time.Hour

type EarningID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusAvailable Status = "available"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

type Earning struct {
	ID               EarningID
	HostID           string
	PropertyID       string
	BookingID        string
	Gross            money.Money
	ServiceFee       money.Money
	Net              money.Money
	Status           Status
	AvailableAt      time.Time
	PayoutID         string
	PaymentReference string
	CancelReason     string
	PaidAt           *time.Time
	CancelledAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
	events.EventRecorder
}

type Filter struct {
	HostID   string
	Statuses []Status
	From     time.Time
	To       time.Time
}

type Repository interface {
	ByID(ctx context.Context, id EarningID) (*Earning, error)
	ByBooking(ctx context.Context, bookingID string) (*Earning, error)
	Save(ctx context.Context, e *Earning) error
	List(ctx context.Context, filter Filter) ([]*Earning, error)
	ListByPayout(ctx context.Context, payoutID string) ([]*Earning, error)
	// DuePending lists pending, unbatched earnings whose hold ended at or before cutoff.
	DuePending(ctx context.Context, cutoff time.Time) ([]*Earning, error)
}

type CreateParams struct {
	ID               EarningID
	HostID           string
	PropertyID       string
	BookingID        string
	Gross            money.Money
	ServiceFee       money.Money
	PaymentReference string
	CheckOut         time.Time
	Hold             time.Duration
	Now              time.Time
}

func New(params CreateParams) (*Earning, error) {
	net, err := params.Gross.Sub(params.ServiceFee)
	if err != nil {
		return nil, err
	}
	if net.Amount < 0 {
		return nil, fault.Validation("negative_earning", "service fee exceeds gross amount")
	}
	hold := params.Hold
	if hold <= 0 {
		hold = DefaultHold
	}
	now := params.Now.UTC()
	e := &Earning{
		ID:               params.ID,
		HostID:           params.HostID,
		PropertyID:       params.PropertyID,
		BookingID:        params.BookingID,
		Gross:            params.Gross,
		ServiceFee:       params.ServiceFee,
		Net:              net,
		Status:           StatusPending,
		AvailableAt:      params.CheckOut.UTC().Add(hold),
		PaymentReference: params.PaymentReference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	e.Record(EarningCreated{EarningID: e.ID, HostID: e.HostID, BookingID: e.BookingID, Net: e.Net, AvailableAt: e.AvailableAt, At: now})
	return e, nil
}

// Reserved earnings are pending inside a processing payout.
func (e *Earning) Reserved() bool {
	return e.Status == StatusPending && e.PayoutID != ""
}

// Promote makes a pending earning withdrawable once its hold has passed.
func (e *Earning) Promote(now time.Time) bool {
	if e.Status != StatusPending || e.PayoutID != "" || now.Before(e.AvailableAt) {
		return false
	}
	e.Status = StatusAvailable
	e.UpdatedAt = now.UTC()
	e.Record(EarningAvailable{EarningID: e.ID, HostID: e.HostID, Net: e.Net, At: e.UpdatedAt})
	return true
}

// Reschedule pulls the end of the hold forward when the stay ended before
// the booked checkout date.
func (e *Earning) Reschedule(checkout time.Time, hold time.Duration) bool {
	if e.Status != StatusPending || e.PayoutID != "" || checkout.IsZero() {
		return false
	}
	if hold <= 0 {
		hold = DefaultHold
	}
	at := checkout.UTC().Add(hold)
	if !at.Before(e.AvailableAt) {
		return false
	}
	e.AvailableAt = at
	return true
}

// Reserve batches an available earning into a payout.
func (e *Earning) Reserve(payoutID string, now time.Time) error {
	if e.Status != StatusAvailable || e.PayoutID != "" {
		return e.invalid("reserve")
	}
	e.Status = StatusPending
	e.PayoutID = payoutID
	e.UpdatedAt = now.UTC()
	return nil
}

// Revert returns a batched earning to available after its payout failed,
// including a transfer reversed after it was reported successful.
func (e *Earning) Revert(payoutID string, now time.Time) bool {
	if e.PayoutID != payoutID {
		return false
	}
	if e.Status != StatusPending && e.Status != StatusPaid {
		return false
	}
	e.Status = StatusAvailable
	e.PayoutID = ""
	e.PaidAt = nil
	e.UpdatedAt = now.UTC()
	return true
}

func (e *Earning) MarkPaid(payoutID string, now time.Time) bool {
	if e.PayoutID != payoutID || e.Status != StatusPending {
		return false
	}
	now = now.UTC()
	e.Status = StatusPaid
	e.PaidAt = &now
	e.UpdatedAt = now
	e.Record(EarningPaid{EarningID: e.ID, HostID: e.HostID, PayoutID: payoutID, Net: e.Net, At: now})
	return true
}

// Cancel voids an earning that has not been paid out. Cancelling twice is a no-op.
func (e *Earning) Cancel(reason string, now time.Time) error {
	switch e.Status {
	case StatusCancelled:
		return nil
	case StatusPaid:
		return e.invalid("cancel")
	}
	now = now.UTC()
	e.Status = StatusCancelled
	e.CancelReason = reason
	e.CancelledAt = &now
	e.PayoutID = ""
	e.UpdatedAt = now
	e.Record(EarningCancelled{EarningID: e.ID, HostID: e.HostID, BookingID: e.BookingID, Reason: reason, At: now})
	return nil
}

func (e *Earning) invalid(action string) error {
	return &fault.Error{
		Kind:    fault.ErrInvalidTransition,
		Code:    "earning_invalid_transition",
		Message: fmt.Sprintf("earning %s: cannot %s from %s", e.ID, action, e.Status),
	}
}
