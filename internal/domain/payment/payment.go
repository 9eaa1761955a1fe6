package payment

import (
	"context"
	"fmt"
	"time"

	"staysettle/internal/domain/shared/events"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

var ErrPaymentNotFound = fault.NotFound("payment_not_found", "payment not found")

type PaymentID string

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusPaid       Status = "PAID"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
)

type Payment struct {
	ID              PaymentID
	BookingID       string
	GuestID         string
	Amount          money.Money
	Status          Status
	Method          string
	Reference       string
	GatewayResponse []byte
	FailureReason   string
	RefundedAmount  int64
	PaidAt          *time.Time
	RefundedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id PaymentID) (*Payment, error)
	ByBooking(ctx context.Context, bookingID string) (*Payment, error)
	ByReference(ctx context.Context, reference string) (*Payment, error)
	Save(ctx context.Context, p *Payment) error
	Delete(ctx context.Context, id PaymentID) error
}

func New(id PaymentID, bookingID, guestID string, amount money.Money, now time.Time) *Payment {
	now = now.UTC()
	return &Payment{
		ID:        id,
		BookingID: bookingID,
		GuestID:   guestID,
		Amount:    amount,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Settled payments hold guest money that has to be refunded on cancellation.
func (p *Payment) Settled() bool {
	return p.Status == StatusPaid
}

// StartProcessing records the hosted-checkout reference issued by the gateway.
func (p *Payment) StartProcessing(reference, method string, now time.Time) error {
	if p.Status != StatusPending {
		return p.invalid("start_processing")
	}
	p.Status = StatusProcessing
	p.Reference = reference
	p.Method = method
	p.UpdatedAt = now.UTC()
	return nil
}

// MarkPaid returns false when the payment was already PAID so redelivered
// gateway signals change nothing. A FAILED payment can still be captured when
// the gateway settles the charge after reporting it failed.
func (p *Payment) MarkPaid(reference string, raw []byte, now time.Time) (bool, error) {
	switch p.Status {
	case StatusPaid:
		return false, nil
	case StatusPending, StatusProcessing, StatusFailed:
	default:
		return false, p.invalid("mark_paid")
	}
	now = now.UTC()
	p.Status = StatusPaid
	p.FailureReason = ""
	if reference != "" {
		p.Reference = reference
	}
	if len(raw) > 0 {
		p.GatewayResponse = append([]byte(nil), raw...)
	}
	p.PaidAt = &now
	p.UpdatedAt = now
	p.Record(PaymentSucceeded{PaymentID: p.ID, BookingID: p.BookingID, Amount: p.Amount, Reference: p.Reference, At: now})
	return true, nil
}

func (p *Payment) MarkFailed(reason string, raw []byte, now time.Time) (bool, error) {
	switch p.Status {
	case StatusFailed:
		return false, nil
	case StatusPending, StatusProcessing:
	default:
		return false, p.invalid("mark_failed")
	}
	now = now.UTC()
	p.Status = StatusFailed
	p.FailureReason = reason
	if len(raw) > 0 {
		p.GatewayResponse = append([]byte(nil), raw...)
	}
	p.UpdatedAt = now
	p.Record(PaymentFailed{PaymentID: p.ID, BookingID: p.BookingID, Reason: reason, At: now})
	return true, nil
}

func (p *Payment) MarkRefunded(amount int64, now time.Time) (bool, error) {
	switch p.Status {
	case StatusRefunded:
		return false, nil
	case StatusPaid:
	default:
		return false, p.invalid("mark_refunded")
	}
	now = now.UTC()
	p.Status = StatusRefunded
	p.RefundedAmount = amount
	p.RefundedAt = &now
	p.UpdatedAt = now
	p.Record(PaymentRefunded{PaymentID: p.ID, BookingID: p.BookingID, Amount: money.Money{Amount: amount, Currency: p.Amount.Currency}, At: now})
	return true, nil
}

// Deletable payments never reached the gateway or failed there.
func (p *Payment) Deletable() bool {
	return p.Status == StatusPending || p.Status == StatusFailed
}

func (p *Payment) invalid(action string) error {
	return &fault.Error{
		Kind:    fault.ErrInvalidTransition,
		Code:    "payment_invalid_transition",
		Message: fmt.Sprintf("payment %s: cannot %s from %s", p.ID, action, p.Status),
	}
}
