// Package earnings accrues host earnings from paid bookings.
package earnings

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"staysettle/internal/app/outbox"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/payment"
)

// Engine applies earning transitions inside a caller's unit of work.
type Engine struct {
	Hold    time.Duration
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	NewID   func() string
}

func (e *Engine) hold() time.Duration {
	if e.Hold <= 0 {
		return earning.DefaultHold
	}
	return e.Hold
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

// Accrue creates the pending earning for a paid booking. It returns the
// existing earning and false when one was already recorded.
func (e *Engine) Accrue(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, p *payment.Payment, now time.Time) (*earning.Earning, bool, error) {
	existing, err := unit.Earnings().ByBooking(ctx, string(b.ID))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, earning.ErrEarningNotFound) {
		return nil, false, err
	}
	created, err := earning.New(earning.CreateParams{
		ID:               earning.EarningID(e.newID()),
		HostID:           b.HostID,
		PropertyID:       string(b.PropertyID),
		BookingID:        string(b.ID),
		Gross:            b.Price.Total,
		ServiceFee:       b.Price.ServiceFee(),
		PaymentReference: p.Reference,
		CheckOut:         b.Range.CheckOut,
		Hold:             e.hold(),
		Now:              now,
	})
	if err != nil {
		return nil, false, err
	}
	if err := unit.Earnings().Save(ctx, created); err != nil {
		return nil, false, err
	}
	if err := outbox.RecordAll(ctx, unit.Outbox(), e.Encoder, created); err != nil {
		return nil, false, err
	}
	if e.Logger != nil {
		e.Logger.Info("earning accrued", "booking_id", b.ID, "host_id", b.HostID, "net", created.Net.Amount, "available_at", created.AvailableAt)
	}
	return created, true, nil
}

// Cancel voids the booking's earning, if any. A paid earning is left alone
// and reported to the log.
func (e *Engine) Cancel(ctx context.Context, unit uow.UnitOfWork, bookingID, reason string, now time.Time) error {
	ern, err := unit.Earnings().ByBooking(ctx, bookingID)
	if errors.Is(err, earning.ErrEarningNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if ern.Status == earning.StatusPaid {
		if e.Logger != nil {
			e.Logger.Warn("cancelled booking already paid out to host", "booking_id", bookingID, "earning_id", ern.ID, "payout_id", ern.PayoutID)
		}
		return nil
	}
	if err := ern.Cancel(reason, now); err != nil {
		return err
	}
	if err := unit.Earnings().Save(ctx, ern); err != nil {
		return err
	}
	return outbox.RecordAll(ctx, unit.Outbox(), e.Encoder, ern)
}

// OnBookingCompleted restarts the hold from the actual checkout and promotes
// the earning if that hold has already passed.
func (e *Engine) OnBookingCompleted(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, now time.Time) (*earning.Earning, error) {
	ern, err := unit.Earnings().ByBooking(ctx, string(b.ID))
	if errors.Is(err, earning.ErrEarningNotFound) {
		if e.Logger != nil {
			e.Logger.Warn("completed booking has no earning", "booking_id", b.ID)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	checkout := now
	if b.CheckOut != nil {
		checkout = b.CheckOut.At
	}
	changed := ern.Reschedule(checkout, e.hold())
	if ern.Promote(now) {
		changed = true
	}
	if !changed {
		return ern, nil
	}
	if err := unit.Earnings().Save(ctx, ern); err != nil {
		return nil, err
	}
	return ern, outbox.RecordAll(ctx, unit.Outbox(), e.Encoder, ern)
}
