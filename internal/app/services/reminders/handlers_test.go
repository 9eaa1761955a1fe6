package reminders_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysettle/internal/app/policies"
	"staysettle/internal/app/schedule"
	"staysettle/internal/app/services/bookings"
	"staysettle/internal/app/services/servicetest"
	"staysettle/internal/domain/booking"
	"staysettle/internal/infra/jobs"
)

func job(jobType string, b *booking.Booking) schedule.Job {
	return schedule.Job{ID: schedule.JobID(jobType, string(b.ID)), Type: jobType, BookingID: string(b.ID)}
}

func TestCheckInReminderOnlyForConfirmedStays(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ctx := context.Background()

	require.NoError(t, h.Reminders.Handle(ctx, job(schedule.TypeCheckInReminder, b)))
	assert.NotContains(t, h.Notifier.Templates("guest-1"), policies.TemplateCheckInReminder)

	h.Pay(t, b)
	require.NoError(t, h.Reminders.Handle(ctx, job(schedule.TypeCheckInReminder, b)))
	assert.Contains(t, h.Notifier.Templates("guest-1"), policies.TemplateCheckInReminder)

	require.NoError(t, h.Reminders.Handle(ctx, job(schedule.TypeCheckOutReminder, b)))
	assert.NotContains(t, h.Notifier.Templates("guest-1"), policies.TemplateCheckOutReminder)
}

func TestAutomaticTransitionsAreIdempotent(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	h.Pay(t, b)
	ctx := context.Background()

	h.Clock.Set(servicetest.Day(10).Add(15 * time.Hour))
	require.NoError(t, h.Reminders.Handle(ctx, job(schedule.TypeAutoCheckIn, b)))
	require.NoError(t, h.Reminders.Handle(ctx, job(schedule.TypeAutoCheckIn, b)))
	got := h.Booking(t, b.ID)
	assert.True(t, got.HasCheckedIn)
	assert.Equal(t, booking.SystemActor, got.CheckIn.By)

	require.NoError(t, h.Reminders.Handle(ctx, job(schedule.TypeCheckOutReminder, b)))
	assert.Contains(t, h.Notifier.Templates("guest-1"), policies.TemplateCheckOutReminder)

	h.Clock.Set(servicetest.Day(13).Add(13 * time.Hour))
	require.NoError(t, h.Reminders.Handle(ctx, job(schedule.TypeAutoComplete, b)))
	require.NoError(t, h.Reminders.Handle(ctx, job(schedule.TypeAutoComplete, b)))
	assert.Equal(t, booking.StatusCompleted, h.Booking(t, b.ID).Status)
}

func TestStaleJobsAreDropped(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	ctx := context.Background()
	_, err := h.Bookings.Cancel(ctx, bookings.CancelInput{BookingID: string(b.ID), Actor: "guest-1"})
	require.NoError(t, err)

	assert.NoError(t, h.Reminders.Handle(ctx, job(schedule.TypeAutoCheckIn, b)))
	assert.NoError(t, h.Reminders.Handle(ctx, job(schedule.TypeAutoComplete, b)))
	assert.NoError(t, h.Reminders.Handle(ctx, schedule.Job{Type: schedule.TypeCheckInReminder, BookingID: "gone"}))
	assert.Error(t, h.Reminders.Handle(ctx, schedule.Job{Type: "unknown", BookingID: string(b.ID)}))
}

func TestWorkerRunsScheduledStayJobs(t *testing.T) {
	h := servicetest.New(t)
	h.SeedProperty(t, "prop-1", "host-1", "moderate", 10000)
	b := h.Book(t, "prop-1", "guest-1", 10, 3)
	h.Pay(t, b)
	require.Len(t, h.Queue.Pending(), 4)

	worker := &jobs.Worker{Queue: h.Queue, Handle: h.Reminders.Handle, Now: h.Clock.Now}
	ctx := context.Background()

	h.Clock.Set(servicetest.Day(10).Add(16 * time.Hour))
	n, err := worker.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, h.Booking(t, b.ID).HasCheckedIn)

	h.Clock.Set(servicetest.Day(14))
	n, err = worker.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, booking.StatusCompleted, h.Booking(t, b.ID).Status)
	assert.Empty(t, h.Queue.Pending())
	assert.Empty(t, h.Queue.Dead())
}
