package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"staysettle/internal/app/schedule"
)

// MemoryQueue keeps jobs in process. It is used by tests and single-node dev runs.
type MemoryQueue struct {
	mu       sync.Mutex
	jobs     map[string]schedule.Job
	inflight map[string]time.Time
	dead     []schedule.Job
	lease    time.Duration
	now      func() time.Time
}

func NewMemoryQueue(lease time.Duration) *MemoryQueue {
	if lease <= 0 {
		lease = time.Minute
	}
	return &MemoryQueue{
		jobs:     make(map[string]schedule.Job),
		inflight: make(map[string]time.Time),
		lease:    lease,
		now:      time.Now,
	}
}

// WithClock replaces the queue clock.
func (q *MemoryQueue) WithClock(now func() time.Time) *MemoryQueue {
	q.now = now
	return q
}

func (q *MemoryQueue) Schedule(ctx context.Context, req schedule.Request) (string, error) {
	id := schedule.JobID(req.Type, req.BookingID)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[id] = schedule.Job{ID: id, Type: req.Type, BookingID: req.BookingID, Payload: req.Payload, RunAt: req.RunAt.UTC()}
	delete(q.inflight, id)
	return id, nil
}

func (q *MemoryQueue) Cancel(ctx context.Context, bookingID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for id, job := range q.jobs {
		if job.BookingID != bookingID {
			continue
		}
		delete(q.jobs, id)
		delete(q.inflight, id)
		removed++
	}
	return removed, nil
}

func (q *MemoryQueue) Claim(ctx context.Context, limit int) ([]schedule.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	due := make([]schedule.Job, 0)
	for id, job := range q.jobs {
		if _, leased := q.inflight[id]; leased || job.RunAt.After(now) {
			continue
		}
		due = append(due, job)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, job := range due {
		q.inflight[job.ID] = now.Add(q.lease)
	}
	return due, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, job schedule.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropLeased(job.ID)
	return nil
}

func (q *MemoryQueue) Retry(ctx context.Context, job schedule.Job, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, leased := q.inflight[job.ID]; !leased {
		return nil
	}
	delete(q.inflight, job.ID)
	job.RunAt = at.UTC()
	q.jobs[job.ID] = job
	return nil
}

func (q *MemoryQueue) Bury(ctx context.Context, job schedule.Job, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.dropLeased(job.ID) {
		q.dead = append(q.dead, job)
	}
	return nil
}

func (q *MemoryQueue) Reap(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	n := 0
	for id, deadline := range q.inflight {
		if deadline.After(now) {
			continue
		}
		delete(q.inflight, id)
		n++
	}
	return n, nil
}

// Pending lists scheduled jobs ordered by run time.
func (q *MemoryQueue) Pending() []schedule.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]schedule.Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out
}

func (q *MemoryQueue) Dead() []schedule.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]schedule.Job(nil), q.dead...)
}

// dropLeased removes a job only while the caller still holds its lease, so a
// job rescheduled during handling survives the ack.
func (q *MemoryQueue) dropLeased(id string) bool {
	if _, leased := q.inflight[id]; !leased {
		return false
	}
	delete(q.inflight, id)
	delete(q.jobs, id)
	return true
}

var _ Queue = (*MemoryQueue)(nil)
