// Package promoter runs the periodic settlement sweep.
package promoter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staysettle/internal/app/services/bookings"
	"staysettle/internal/app/services/earnings"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/shared/fault"
)

type Promoter struct {
	UoW      uow.UoWFactory
	Earnings *earnings.Service
	Bookings *bookings.Service
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

// Report summarises one sweep.
type Report struct {
	EarningsPromoted  int
	BookingsCompleted int
	BookingsSkipped   int
	RefundsRetried    int
}

func (p *Promoter) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Promoter) interval() time.Duration {
	if p.Interval <= 0 {
		return time.Hour
	}
	return p.Interval
}

// Run sweeps once immediately and then on every tick until ctx ends.
func (p *Promoter) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()
	for {
		if _, err := p.SweepOnce(ctx); err != nil && p.Logger != nil {
			p.Logger.Error("settlement sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SweepOnce completes stays past checkout, promotes earnings past their hold
// and retries refunds the gateway refused earlier.
func (p *Promoter) SweepOnce(ctx context.Context) (Report, error) {
	var report Report
	var errs []error

	completed, skipped, err := p.completeDueBookings(ctx)
	report.BookingsCompleted, report.BookingsSkipped = completed, skipped
	if err != nil {
		errs = append(errs, err)
	}
	if p.Earnings != nil {
		promoted, err := p.Earnings.ProcessAvailable(ctx)
		report.EarningsPromoted = promoted
		if err != nil {
			errs = append(errs, err)
		}
	}
	if p.Bookings != nil {
		retried, err := p.Bookings.RetryFailedRefunds(ctx)
		report.RefundsRetried = retried
		if err != nil {
			errs = append(errs, err)
		}
	}
	if p.Logger != nil {
		p.Logger.Info("settlement sweep finished",
			"earnings_promoted", report.EarningsPromoted,
			"bookings_completed", report.BookingsCompleted,
			"bookings_skipped", report.BookingsSkipped,
			"refunds_retried", report.RefundsRetried,
		)
	}
	return report, errors.Join(errs...)
}

// completeDueBookings completes CONFIRMED bookings past checkout. Stays
// without a recorded check-in are left for the host to resolve.
func (p *Promoter) completeDueBookings(ctx context.Context) (int, int, error) {
	if p.Bookings == nil {
		return 0, 0, nil
	}
	var due []*booking.Booking
	err := uow.Run(ctx, p.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		due, err = unit.Bookings().DueForCompletion(ctx, p.now())
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	completed, skipped := 0, 0
	for _, b := range due {
		if !b.HasCheckedIn {
			skipped++
			if p.Logger != nil {
				p.Logger.Warn("booking past checkout without check-in", "booking_id", b.ID, "check_out", b.Range.CheckOut)
			}
			continue
		}
		_, err := p.Bookings.Complete(ctx, bookings.StayInput{BookingID: string(b.ID), Actor: booking.SystemActor, Notes: "completed by settlement sweep"})
		if err != nil {
			if errors.Is(err, fault.ErrInvalidTransition) {
				skipped++
				continue
			}
			if p.Logger != nil {
				p.Logger.Error("booking completion failed", "booking_id", b.ID, "error", err)
			}
			continue
		}
		completed++
	}
	return completed, skipped, nil
}
