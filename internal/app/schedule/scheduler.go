package schedule

import (
	"context"
	"time"
)

// Job types consumed by the reminder handlers.
const (
	TypeCheckInReminder  = "booking.checkin_reminder"
	TypeCheckOutReminder = "booking.checkout_reminder"
	TypeAutoCheckIn      = "booking.auto_checkin"
	TypeAutoComplete     = "booking.auto_complete"
)

// Request asks for Type to run for a booking at RunAt.
type Request struct {
	Type      string
	BookingID string
	Payload   map[string]string
	RunAt     time.Time
}

// Job is a delivered request. Delivery is at-least-once; handlers must be idempotent.
type Job struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	BookingID string            `json:"booking_id"`
	Payload   map[string]string `json:"payload,omitempty"`
	RunAt     time.Time         `json:"run_at"`
	Attempts  int               `json:"attempts"`
}

// Scheduler is a delayed, at-least-once job queue.
type Scheduler interface {
	// Schedule enqueues the request. Scheduling the same type for the same
	// booking again replaces the earlier job.
	Schedule(ctx context.Context, req Request) (string, error)
	// Cancel drops every pending job for the booking and reports how many were removed.
	Cancel(ctx context.Context, bookingID string) (int, error)
}

type Handler func(ctx context.Context, job Job) error

// JobID is deterministic so a job is never scheduled twice for one booking.
func JobID(jobType, bookingID string) string {
	return jobType + ":" + bookingID
}
