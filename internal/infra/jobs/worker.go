package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/eapache/go-resiliency/retrier"

	"staysettle/internal/app/schedule"
)

// JobMetrics counts handled jobs by type and result.
type JobMetrics interface {
	JobProcessed(jobType, result string)
}

// Worker polls a Queue and runs due jobs through Handle. Failed jobs are
// retried on an exponential schedule and buried once MaxAttempts is reached.
type Worker struct {
	Queue        Queue
	Handle       schedule.Handler
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BackoffBase  time.Duration
	Logger       *slog.Logger
	Metrics      JobMetrics
	Now          func() time.Time
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Queue == nil || w.Handle == nil {
		return errors.New("jobs: worker requires queue and handler")
	}
	interval := w.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.log().Error("job poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain reclaims expired leases and handles one batch of due jobs.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	if n, err := w.Queue.Reap(ctx); err != nil {
		return 0, err
	} else if n > 0 {
		w.log().Warn("job leases expired", "count", n)
	}
	batch := w.BatchSize
	if batch <= 0 {
		batch = 50
	}
	due, err := w.Queue.Claim(ctx, batch)
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, job := range due {
		if err := w.process(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return len(due), errors.Join(errs...)
}

func (w *Worker) process(ctx context.Context, job schedule.Job) error {
	job.Attempts++
	handleErr := w.Handle(ctx, job)
	if handleErr == nil {
		w.record(job.Type, "ok")
		return w.Queue.Ack(ctx, job)
	}
	maxAttempts := w.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if job.Attempts >= maxAttempts {
		w.record(job.Type, "dead")
		w.log().Error("job exhausted retries", "job_id", job.ID, "type", job.Type, "attempts", job.Attempts, "error", handleErr)
		return w.Queue.Bury(ctx, job, handleErr.Error())
	}
	delay := w.backoff(job.Attempts, maxAttempts)
	w.record(job.Type, "retry")
	w.log().Warn("job failed, retrying", "job_id", job.ID, "type", job.Type, "attempts", job.Attempts, "retry_in", delay, "error", handleErr)
	return w.Queue.Retry(ctx, job, w.now().Add(delay))
}

func (w *Worker) backoff(attempt, maxAttempts int) time.Duration {
	base := w.BackoffBase
	if base <= 0 {
		base = 30 * time.Second
	}
	steps := retrier.ExponentialBackoff(maxAttempts, base)
	if attempt-1 < len(steps) {
		return steps[attempt-1]
	}
	return steps[len(steps)-1]
}

func (w *Worker) record(jobType, result string) {
	if w.Metrics != nil {
		w.Metrics.JobProcessed(jobType, result)
	}
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Worker) log() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
