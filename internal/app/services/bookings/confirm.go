package bookings

import (
	"context"
	"errors"
	"time"

	"staysettle/internal/app/effects"
	"staysettle/internal/app/outbox"
	"staysettle/internal/app/policies"
	"staysettle/internal/app/services/refunds"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/property"
	"staysettle/internal/domain/refund"
)

type ConfirmInput struct {
	BookingID string
	Reference string
	Raw       []byte
}

type ConfirmResult struct {
	Booking          *booking.Booking
	Earning          *earning.Earning
	AlreadyConfirmed bool
	// LateRefund is set when the charge arrived for a booking that had
	// already ended and was refunded in full.
	LateRefund *refunds.Outcome
}

// ConfirmPayment settles a successful charge. Redelivered confirmations find
// the earning and the PAID payment already in place and change nothing.
func (s *Service) ConfirmPayment(ctx context.Context, in ConfirmInput) (ConfirmResult, error) {
	now := s.now()
	var res ConfirmResult
	var latePayment *payment.Payment
	err := uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		res = ConfirmResult{}
		latePayment = nil
		b, err := unit.Bookings().ByID(ctx, booking.BookingID(in.BookingID))
		if err != nil {
			return err
		}
		p, err := unit.Payments().ByBooking(ctx, in.BookingID)
		if err != nil {
			return err
		}
		res.Booking = b
		existing, err := unit.Earnings().ByBooking(ctx, in.BookingID)
		if err != nil && !errors.Is(err, earning.ErrEarningNotFound) {
			return err
		}
		if existing != nil && p.Status == payment.StatusPaid {
			res.Earning = existing
			res.AlreadyConfirmed = true
			return nil
		}
		if b.Status.Terminal() {
			changed, err := p.MarkPaid(in.Reference, in.Raw, now)
			if err != nil {
				return err
			}
			if !changed {
				res.AlreadyConfirmed = true
				return nil
			}
			b.RecordRefund(booking.RefundRequested, p.Amount.Amount, "", now)
			if err := unit.Payments().Save(ctx, p); err != nil {
				return err
			}
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return err
			}
			latePayment = p
			return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b, p)
		}

		if _, err := p.MarkPaid(in.Reference, in.Raw, now); err != nil {
			return err
		}
		if err := b.ConfirmPayment(p.Reference, now); err != nil {
			return err
		}
		if err := s.openConversation(ctx, unit, b, now); err != nil {
			return err
		}
		prop, err := unit.Properties().ByID(ctx, b.PropertyID)
		if err != nil {
			return err
		}
		s.confirmLedger(prop, b, now)
		ern, _, err := s.Earnings.Accrue(ctx, unit, b, p, now)
		if err != nil {
			return err
		}
		res.Earning = ern
		if err := unit.Properties().Save(ctx, prop); err != nil {
			return err
		}
		if err := unit.Payments().Save(ctx, p); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b, p, prop)
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	if res.AlreadyConfirmed {
		if s.Logger != nil {
			s.Logger.Info("payment already confirmed", "booking_id", in.BookingID, "reference", in.Reference)
		}
		return res, nil
	}
	if s.Metrics != nil {
		s.Metrics.PaymentTransition(string(payment.StatusPaid))
	}
	if latePayment != nil {
		outcome, err := s.refundLateCharge(ctx, res.Booking, latePayment)
		if err != nil {
			return res, err
		}
		res.LateRefund = &outcome
		return res, nil
	}
	b := res.Booking
	if s.Logger != nil {
		s.Logger.Info("booking confirmed", "booking_id", b.ID, "reference", in.Reference)
	}
	effs := s.scheduleEffects(b, now)
	effs = append(effs,
		effects.Notify(s.Notifier, b.GuestID, policies.TemplateBookingConfirmed, bookingData(b)),
		effects.Notify(s.Notifier, b.HostID, policies.TemplateBookingConfirmed, bookingData(b)),
	)
	s.effects().Run(ctx, effs...)
	return res, nil
}

// confirmLedger flips the reservation to CONFIRMED, re-reserving it when an
// earlier release removed it.
func (s *Service) confirmLedger(prop *property.Property, b *booking.Booking, now time.Time) {
	err := prop.ConfirmReservation(string(b.ID), now)
	if errors.Is(err, property.ErrReservationMissing) {
		if err = prop.Reserve(string(b.ID), b.Range, now); err == nil {
			err = prop.ConfirmReservation(string(b.ID), now)
		}
	}
	if err != nil && s.Logger != nil {
		s.Logger.Warn("ledger confirmation failed", "booking_id", b.ID, "property_id", prop.ID, "error", err)
	}
}

func (s *Service) scheduleEffects(b *booking.Booking, now time.Time) []effects.Effect {
	if s.Jobs == nil {
		return nil
	}
	plan := s.stayTimes().Plan(b, now)
	out := make([]effects.Effect, 0, len(plan))
	for _, req := range plan {
		out = append(out, effects.Effect{Name: "schedule:" + req.Type, Run: func(ctx context.Context) error {
			_, err := s.Jobs.Schedule(ctx, req)
			return err
		}})
	}
	return out
}

func (s *Service) cancelJobsEffect(bookingID string) effects.Effect {
	return effects.Effect{Name: "jobs:cancel", Run: func(ctx context.Context) error {
		if s.Jobs == nil {
			return nil
		}
		_, err := s.Jobs.Cancel(ctx, bookingID)
		return err
	}}
}

// refundLateCharge returns the full amount of a charge captured after the
// booking had already been cancelled or rejected. The capture unit already
// claimed the refund.
func (s *Service) refundLateCharge(ctx context.Context, b *booking.Booking, p *payment.Payment) (refunds.Outcome, error) {
	if s.Logger != nil {
		s.Logger.Warn("charge captured for inactive booking, refunding in full", "booking_id", b.ID, "status", b.Status, "reference", p.Reference)
	}
	outcome := s.Refunds.Execute(ctx, b, p, refund.Full(p.Amount), "booking no longer active")
	if _, err := s.applyRefundOutcome(ctx, string(b.ID), outcome); err != nil {
		return outcome, err
	}
	if outcome.Succeeded() {
		s.effects().Run(ctx, effects.Notify(s.Notifier, b.GuestID, policies.TemplateRefundIssued, refundData(b, outcome)))
	}
	return outcome, nil
}

// applyRefundOutcome records a refund attempt made outside any unit and
// returns the updated booking.
func (s *Service) applyRefundOutcome(ctx context.Context, bookingID string, outcome refunds.Outcome) (*booking.Booking, error) {
	now := s.now()
	var updated *booking.Booking
	err := uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, booking.BookingID(bookingID))
		if err != nil {
			return err
		}
		p, err := unit.Payments().ByBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := refunds.Apply(outcome, p, now); err != nil {
			return err
		}
		b.RecordRefund(outcome.Status, outcome.Quote.Amount.Amount, outcome.Reference, now)
		if err := unit.Payments().Save(ctx, p); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		updated = b
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b, p)
	})
	return updated, err
}

type FailInput struct {
	BookingID string
	Reason    string
	Raw       []byte
}

// FailPayment records a failed charge and cancels the booking it was for,
// releasing its dates.
func (s *Service) FailPayment(ctx context.Context, in FailInput) (*booking.Booking, error) {
	now := s.now()
	reason := in.Reason
	if reason == "" {
		reason = "payment failed"
	}
	var failed *booking.Booking
	var cancelled bool
	err := uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		failed, cancelled = nil, false
		b, err := unit.Bookings().ByID(ctx, booking.BookingID(in.BookingID))
		if err != nil {
			return err
		}
		p, err := unit.Payments().ByBooking(ctx, in.BookingID)
		if err != nil {
			return err
		}
		failed = b
		changed, err := p.MarkFailed(reason, in.Raw, now)
		if err != nil {
			return err
		}
		if !changed && !b.Active() {
			return nil
		}
		var prop *property.Property
		if b.Active() {
			if err := b.FailPayment(reason, now); err != nil {
				return err
			}
			cancelled = true
			if prop, err = unit.Properties().ByID(ctx, b.PropertyID); err != nil {
				return err
			}
			prop.Release(string(b.ID), now)
			if err := unit.Properties().Save(ctx, prop); err != nil {
				return err
			}
			if err := s.Earnings.Cancel(ctx, unit, string(b.ID), reason, now); err != nil {
				return err
			}
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return err
			}
		}
		if err := unit.Payments().Save(ctx, p); err != nil {
			return err
		}
		if prop != nil {
			return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b, p, prop)
		}
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b, p)
	})
	if err != nil {
		return nil, err
	}
	if s.Metrics != nil {
		s.Metrics.PaymentTransition(string(payment.StatusFailed))
	}
	if cancelled {
		s.effects().Run(ctx,
			s.cancelJobsEffect(in.BookingID),
			effects.Notify(s.Notifier, failed.GuestID, policies.TemplatePaymentFailed, bookingData(failed)),
		)
	}
	return failed, nil
}

type RefundInput struct {
	BookingID string
	Amount    int64
	Reference string
	Failed    bool
	Reason    string
}

// RecordRefund applies the gateway's final word on a refund.
func (s *Service) RecordRefund(ctx context.Context, in RefundInput) (*booking.Booking, error) {
	now := s.now()
	var updated *booking.Booking
	var wasActive bool
	err := uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, booking.BookingID(in.BookingID))
		if err != nil {
			return err
		}
		p, err := unit.Payments().ByBooking(ctx, in.BookingID)
		if err != nil {
			return err
		}
		updated = b
		wasActive = b.Active()
		if in.Failed {
			if b.Cancellation != nil && b.Cancellation.RefundStatus == booking.RefundFailed {
				wasActive = false
				return nil
			}
			b.RecordRefund(booking.RefundFailed, in.Amount, in.Reference, now)
			wasActive = false
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return err
			}
			return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b)
		}
		amount := in.Amount
		if amount <= 0 {
			amount = p.Amount.Amount
		}
		changed, err := p.MarkRefunded(amount, now)
		if err != nil {
			return err
		}
		if !changed && b.Cancellation != nil && b.Cancellation.RefundStatus == booking.RefundProcessed {
			wasActive = false
			return nil
		}
		b.MarkRefunded(amount, in.Reference, now)
		var prop *property.Property
		if wasActive {
			if prop, err = unit.Properties().ByID(ctx, b.PropertyID); err != nil {
				return err
			}
			prop.Release(string(b.ID), now)
			if err := unit.Properties().Save(ctx, prop); err != nil {
				return err
			}
			if err := s.Earnings.Cancel(ctx, unit, string(b.ID), "payment refunded", now); err != nil {
				return err
			}
		}
		if err := unit.Payments().Save(ctx, p); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if prop != nil {
			return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b, p, prop)
		}
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b, p)
	})
	if err != nil {
		return nil, err
	}
	if wasActive {
		s.effects().Run(ctx, s.cancelJobsEffect(in.BookingID))
	}
	if !in.Failed && s.Metrics != nil {
		s.Metrics.PaymentTransition(string(payment.StatusRefunded))
	}
	return updated, nil
}

func refundData(b *booking.Booking, outcome refunds.Outcome) map[string]any {
	data := bookingData(b)
	data["refund_percent"] = outcome.Quote.Percent
	data["refund_amount"] = outcome.Quote.Amount.Amount
	data["refund_status"] = string(outcome.Status)
	return data
}
