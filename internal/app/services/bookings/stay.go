package bookings

import (
	"context"

	"staysettle/internal/app/effects"
	"staysettle/internal/app/outbox"
	"staysettle/internal/app/policies"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/earning"
)

type StayInput struct {
	BookingID string
	Actor     string
	Notes     string
	Photos    []string
}

// CheckIn records the guest's arrival. The status stays CONFIRMED; the
// booking's HasCheckedIn flag tracks the arrival.
func (s *Service) CheckIn(ctx context.Context, in StayInput) (*booking.Booking, error) {
	now := s.now()
	var checked *booking.Booking
	err := uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, booking.BookingID(in.BookingID))
		if err != nil {
			return err
		}
		if err := b.CheckInGuest(in.Actor, booking.StayDetails{Notes: in.Notes, Photos: in.Photos}, now); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		checked = b
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b)
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("guest checked in", "booking_id", checked.ID, "actor", in.Actor)
	}
	return checked, nil
}

type CompleteResult struct {
	Booking *booking.Booking
	Earning *earning.Earning
}

// Complete closes a checked-in stay and hands the earning to the accrual
// engine, which may promote it straight away.
func (s *Service) Complete(ctx context.Context, in StayInput) (CompleteResult, error) {
	now := s.now()
	var res CompleteResult
	err := uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, booking.BookingID(in.BookingID))
		if err != nil {
			return err
		}
		if err := b.Complete(in.Actor, booking.StayDetails{Notes: in.Notes, Photos: in.Photos}, now); err != nil {
			return err
		}
		ern, err := s.Earnings.OnBookingCompleted(ctx, unit, b, now)
		if err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		res = CompleteResult{Booking: b, Earning: ern}
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, b)
	})
	if err != nil {
		return CompleteResult{}, err
	}
	b := res.Booking
	if s.Logger != nil {
		s.Logger.Info("stay completed", "booking_id", b.ID, "actor", in.Actor)
	}
	s.effects().Run(ctx,
		s.cancelJobsEffect(string(b.ID)),
		effects.Notify(s.Notifier, b.GuestID, policies.TemplateStayCompleted, bookingData(b)),
		effects.Notify(s.Notifier, b.HostID, policies.TemplateStayCompleted, bookingData(b)),
	)
	return res, nil
}

// Delete removes a booking the guest never paid for, together with its
// payment record and ledger reservation.
func (s *Service) Delete(ctx context.Context, bookingID, guestID string) error {
	now := s.now()
	err := uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, booking.BookingID(bookingID))
		if err != nil {
			return err
		}
		p, err := optionalPayment(ctx, unit, bookingID)
		if err != nil {
			return err
		}
		if err := b.CanDelete(guestID, p != nil && !p.Deletable()); err != nil {
			return err
		}
		prop, err := unit.Properties().ByID(ctx, b.PropertyID)
		if err != nil {
			return err
		}
		prop.Release(bookingID, now)
		if err := unit.Properties().Save(ctx, prop); err != nil {
			return err
		}
		if p != nil {
			if err := unit.Payments().Delete(ctx, p.ID); err != nil {
				return err
			}
		}
		if err := unit.Bookings().Delete(ctx, b.ID); err != nil {
			return err
		}
		return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, prop)
	})
	if err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("booking deleted", "booking_id", bookingID, "guest_id", guestID)
	}
	s.effects().Run(ctx, s.cancelJobsEffect(bookingID))
	return nil
}
