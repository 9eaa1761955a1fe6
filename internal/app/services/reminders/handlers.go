// Package reminders consumes booking-scoped delayed jobs.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"staysettle/internal/app/policies"
	"staysettle/internal/app/schedule"
	"staysettle/internal/app/services/bookings"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/booking"
	"staysettle/internal/domain/shared/fault"
)

// Handlers dispatch delivered jobs. Every handler re-reads the booking and
// does nothing when the job no longer applies, so redelivery is harmless.
type Handlers struct {
	UoW      uow.UoWFactory
	Bookings *bookings.Service
	Notifier policies.Notifier
	Logger   *slog.Logger
}

func (h *Handlers) Handle(ctx context.Context, job schedule.Job) error {
	switch job.Type {
	case schedule.TypeCheckInReminder:
		return h.remind(ctx, job, policies.TemplateCheckInReminder, func(b *booking.Booking) bool {
			return b.Status == booking.StatusConfirmed && !b.HasCheckedIn
		})
	case schedule.TypeCheckOutReminder:
		return h.remind(ctx, job, policies.TemplateCheckOutReminder, func(b *booking.Booking) bool {
			return b.Status == booking.StatusConfirmed && b.HasCheckedIn
		})
	case schedule.TypeAutoCheckIn:
		_, err := h.Bookings.CheckIn(ctx, bookings.StayInput{BookingID: job.BookingID, Actor: booking.SystemActor, Notes: "automatic check-in"})
		return h.tolerate(job, err)
	case schedule.TypeAutoComplete:
		_, err := h.Bookings.Complete(ctx, bookings.StayInput{BookingID: job.BookingID, Actor: booking.SystemActor, Notes: "automatic checkout"})
		return h.tolerate(job, err)
	}
	return fmt.Errorf("reminders: unknown job type %q", job.Type)
}

func (h *Handlers) remind(ctx context.Context, job schedule.Job, template string, applies func(*booking.Booking) bool) error {
	var b *booking.Booking
	err := uow.Run(ctx, h.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		b, err = unit.Bookings().ByID(ctx, booking.BookingID(job.BookingID))
		return err
	})
	if err != nil {
		return h.tolerate(job, err)
	}
	if !applies(b) {
		h.skip(job, string(b.Status))
		return nil
	}
	if h.Notifier == nil {
		return nil
	}
	return h.Notifier.Send(ctx, b.GuestID, template, map[string]any{
		"booking_id": string(b.ID),
		"check_in":   b.Range.CheckIn,
		"check_out":  b.Range.CheckOut,
	})
}

// tolerate swallows outcomes that mean the job is stale.
func (h *Handlers) tolerate(job schedule.Job, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fault.ErrInvalidTransition) || errors.Is(err, fault.ErrNotFound) {
		h.skip(job, err.Error())
		return nil
	}
	return err
}

func (h *Handlers) skip(job schedule.Job, reason string) {
	if h.Logger != nil {
		h.Logger.Info("job no longer applies", "job_id", job.ID, "type", job.Type, "booking_id", job.BookingID, "reason", reason)
	}
}
