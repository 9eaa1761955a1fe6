// Package refunds computes and issues refunds for cancelled stays.
package refunds

import (
	"context"
	"log/slog"
	"time"

	"staysettle/internal/app/policies"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/refund"
	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

// Outcome is the result of asking the gateway for a refund.
type Outcome struct {
	Quote     refund.Quote
	Status    booking.RefundStatus
	Reference string
	Err       error
}

// Succeeded reports whether the gateway accepted the refund.
func (o Outcome) Succeeded() bool {
	return o.Status == booking.RefundInitiated || o.Status == booking.RefundProcessed
}

type Executor struct {
	Gateway policies.PaymentGateway
	Logger  *slog.Logger
}

// Calculate returns the refund owed for cancelling b at now. Only settled
// payments are refundable.
func (e *Executor) Calculate(b *booking.Booking, p *payment.Payment, now time.Time) refund.Quote {
	if p == nil || !p.Settled() {
		return refund.Quote{Policy: b.Policy, DaysUntil: refund.DaysUntil(b.Range.CheckIn, now), Amount: money.Zero(b.Price.Total.Currency)}
	}
	return refund.Calculate(b.Policy, p.Amount, b.Range.CheckIn, now)
}

// Execute asks the gateway to refund q against the payment's transaction. A
// zero quote needs no gateway call. Gateway failures are reported in the
// outcome rather than returned so the cancellation can still proceed.
func (e *Executor) Execute(ctx context.Context, b *booking.Booking, p *payment.Payment, q refund.Quote, reason string) Outcome {
	out := Outcome{Quote: q, Status: booking.RefundNone}
	if q.IsZero() || p == nil {
		return out
	}
	if e.Gateway == nil {
		out.Status = booking.RefundFailed
		out.Err = fault.Gateway("refund", fault.ErrGateway)
		return out
	}
	res, err := e.Gateway.InitiateRefund(ctx, policies.RefundRequest{
		TransactionReference: p.Reference,
		Amount:               q.Amount,
		Reason:               reason,
		IdempotencyKey:       IdempotencyKey(p),
	})
	if err != nil {
		out.Status = booking.RefundFailed
		out.Err = err
		if e.Logger != nil {
			e.Logger.Error("refund request failed", "booking_id", b.ID, "payment_id", p.ID, "amount", q.Amount.Amount, "error", err)
		}
		return out
	}
	out.Status = booking.RefundInitiated
	if res.Status == "processed" {
		out.Status = booking.RefundProcessed
	}
	out.Reference = res.Reference
	if e.Logger != nil {
		e.Logger.Info("refund initiated", "booking_id", b.ID, "payment_id", p.ID, "percent", q.Percent, "amount", q.Amount.Amount)
	}
	return out
}

// IdempotencyKey identifies the refund of p to the gateway. A payment is
// refunded at most once, so its id is enough.
func IdempotencyKey(p *payment.Payment) string {
	return "refund:" + string(p.ID)
}

// Apply marks the payment refunded when the gateway accepted the refund.
func Apply(out Outcome, p *payment.Payment, now time.Time) error {
	if p == nil || !out.Succeeded() {
		return nil
	}
	_, err := p.MarkRefunded(out.Quote.Amount.Amount, now)
	return err
}
