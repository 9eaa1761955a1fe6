package bookings

import (
	"context"

	"staysettle/internal/app/effects"
	"staysettle/internal/app/outbox"
	"staysettle/internal/app/policies"
	"staysettle/internal/app/services/refunds"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/payment"
	"staysettle/internal/domain/refund"
)

type terminateKind int

const (
	kindCancel terminateKind = iota
	kindReject
)

type CancelInput struct {
	BookingID string
	Actor     string
	Reason    string
}

type CancelResult struct {
	Booking *booking.Booking
	Refund  refunds.Outcome
}

// Cancel ends a PENDING or CONFIRMED booking. The cancellation commits with
// the refund owed under the property's policy claimed as requested; only then
// is the gateway asked for it. A gateway failure is recorded on the booking
// and does not undo the cancellation.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (CancelResult, error) {
	return s.terminate(ctx, kindCancel, in)
}

// Reject lets the host turn down a PENDING booking, refunding any payment in full.
func (s *Service) Reject(ctx context.Context, bookingID, hostID, reason string) (CancelResult, error) {
	return s.terminate(ctx, kindReject, CancelInput{BookingID: bookingID, Actor: hostID, Reason: reason})
}

func (s *Service) terminate(ctx context.Context, kind terminateKind, in CancelInput) (CancelResult, error) {
	now := s.now()
	var result *booking.Booking
	var pay *payment.Payment
	var quote refund.Quote
	err := uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		result, pay = nil, nil
		b, err := unit.Bookings().ByID(ctx, booking.BookingID(in.BookingID))
		if err != nil {
			return err
		}
		p, err := optionalPayment(ctx, unit, in.BookingID)
		if err != nil {
			return err
		}
		switch kind {
		case kindReject:
			quote = refund.Quote{Policy: b.Policy, Amount: b.Price.Total.Percent(0)}
			if p != nil && p.Settled() {
				quote = refund.Full(p.Amount)
			}
			if err := b.Reject(in.Actor, in.Reason, now); err != nil {
				return err
			}
			if !quote.IsZero() {
				b.RecordRefund(booking.RefundRequested, quote.Amount.Amount, "", now)
			}
		default:
			quote = s.Refunds.Calculate(b, p, now)
			status := booking.RefundNone
			if !quote.IsZero() {
				status = booking.RefundRequested
			}
			if err := b.Cancel(booking.CancelParams{
				Actor:         in.Actor,
				Reason:        in.Reason,
				RefundPercent: quote.Percent,
				RefundAmount:  quote.Amount.Amount,
				RefundStatus:  status,
				Now:           now,
			}); err != nil {
				return err
			}
		}
		reason := in.Reason
		if reason == "" {
			reason = "booking " + string(b.Status)
		}
		if err := s.Earnings.Cancel(ctx, unit, string(b.ID), reason, now); err != nil {
			return err
		}
		prop, err := unit.Properties().ByID(ctx, b.PropertyID)
		if err != nil {
			return err
		}
		prop.Release(string(b.ID), now)
		if err := unit.Properties().Save(ctx, prop); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		result, pay = b, p
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b, prop)
	})
	if err != nil {
		return CancelResult{}, err
	}

	outcome := refunds.Outcome{Quote: quote, Status: booking.RefundNone}
	if !quote.IsZero() && pay != nil {
		outcome = s.Refunds.Execute(ctx, result, pay, quote, in.Reason)
		updated, err := s.applyRefundOutcome(ctx, string(result.ID), outcome)
		if err != nil {
			// The claim stays requested and the retry sweep picks it up once it expires.
			if s.Logger != nil {
				s.Logger.Error("refund outcome was not recorded", "booking_id", result.ID, "refund_status", outcome.Status, "refund_reference", outcome.Reference, "error", err)
			}
		} else {
			result = updated
		}
	}
	if s.Logger != nil {
		s.Logger.Info("booking terminated", "booking_id", result.ID, "status", result.Status, "actor", in.Actor, "refund_percent", outcome.Quote.Percent, "refund_status", outcome.Status)
	}
	s.effects().Run(ctx, s.terminationEffects(kind, result, outcome)...)
	return CancelResult{Booking: result, Refund: outcome}, nil
}

func (s *Service) terminationEffects(kind terminateKind, b *booking.Booking, outcome refunds.Outcome) []effects.Effect {
	effs := []effects.Effect{s.cancelJobsEffect(string(b.ID))}
	if kind == kindReject {
		effs = append(effs, effects.Notify(s.Notifier, b.GuestID, policies.TemplateBookingRejected, bookingData(b)))
	} else {
		effs = append(effs,
			effects.Notify(s.Notifier, b.GuestID, policies.TemplateBookingCancelled, bookingData(b)),
			effects.Notify(s.Notifier, b.HostID, policies.TemplateBookingCancelled, bookingData(b)),
		)
	}
	if outcome.Succeeded() {
		effs = append(effs, effects.Notify(s.Notifier, b.GuestID, policies.TemplateRefundIssued, refundData(b, outcome)))
	}
	return effs
}

// RetryFailedRefunds re-requests refunds the gateway refused and refunds
// whose claim expired without an outcome. It returns how many succeeded.
func (s *Service) RetryFailedRefunds(ctx context.Context) (int, error) {
	var pending []*booking.Booking
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		pending, err = unit.Bookings().FailedRefunds(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	done := 0
	for _, b := range pending {
		ok, err := s.retryRefund(ctx, string(b.ID))
		if err != nil {
			if s.Logger != nil {
				s.Logger.Error("refund retry failed", "booking_id", b.ID, "error", err)
			}
			continue
		}
		if ok {
			done++
		}
	}
	return done, nil
}

// retryRefund claims the refund in its own unit before calling the gateway,
// so overlapping sweeps request it once.
func (s *Service) retryRefund(ctx context.Context, bookingID string) (bool, error) {
	now := s.now()
	var claimed *booking.Booking
	var p *payment.Payment
	err := uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		claimed, p = nil, nil
		b, err := unit.Bookings().ByID(ctx, booking.BookingID(bookingID))
		if err != nil {
			return err
		}
		pay, err := unit.Payments().ByBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !pay.Settled() || !b.ClaimRefund(now) {
			return nil
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		claimed, p = b, pay
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b)
	})
	if err != nil || claimed == nil {
		return false, err
	}
	amount := p.Amount
	amount.Amount = claimed.Cancellation.RefundAmount
	quote := refund.Quote{Policy: claimed.Policy, Percent: claimed.Cancellation.RefundPercent, Amount: amount}
	outcome := s.Refunds.Execute(ctx, claimed, p, quote, "refund retry")
	if _, err := s.applyRefundOutcome(ctx, bookingID, outcome); err != nil {
		return false, err
	}
	if !outcome.Succeeded() {
		return false, nil
	}
	s.effects().Run(ctx, effects.Notify(s.Notifier, claimed.GuestID, policies.TemplateRefundIssued, refundData(claimed, outcome)))
	return true, nil
}
