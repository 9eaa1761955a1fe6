// Package jobs runs delayed booking jobs against a lease-based queue.
package jobs

import (
	"context"
	"time"

	"staysettle/internal/app/schedule"
)

// Queue is a delayed queue with leases. A claimed job stays invisible until it
// is acked, retried or buried; if its lease lapses first, Reap hands it out again.
type Queue interface {
	schedule.Scheduler
	Claim(ctx context.Context, limit int) ([]schedule.Job, error)
	Ack(ctx context.Context, job schedule.Job) error
	Retry(ctx context.Context, job schedule.Job, at time.Time) error
	Bury(ctx context.Context, job schedule.Job, reason string) error
	Reap(ctx context.Context) (int, error)
}
