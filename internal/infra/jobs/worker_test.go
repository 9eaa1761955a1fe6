package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysettle/internal/app/schedule"
)

type countingMetrics struct {
	results map[string]int
}

func (m *countingMetrics) JobProcessed(jobType, result string) {
	if m.results == nil {
		m.results = make(map[string]int)
	}
	m.results[result]++
}

func TestWorkerAcksSuccessfulJobs(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	q := NewMemoryQueue(time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()
	_, err := q.Schedule(ctx, schedule.Request{Type: schedule.TypeAutoCheckIn, BookingID: "b-1", RunAt: now.Add(-time.Minute)})
	require.NoError(t, err)
	_, err = q.Schedule(ctx, schedule.Request{Type: schedule.TypeAutoComplete, BookingID: "b-1", RunAt: now.Add(time.Hour)})
	require.NoError(t, err)

	var handled []string
	metrics := &countingMetrics{}
	w := &Worker{Queue: q, Metrics: metrics, Now: func() time.Time { return now }, Handle: func(ctx context.Context, job schedule.Job) error {
		handled = append(handled, job.Type)
		return nil
	}}

	n, err := w.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{schedule.TypeAutoCheckIn}, handled)
	assert.Equal(t, 1, metrics.results["ok"])
	require.Len(t, q.Pending(), 1)
	assert.Equal(t, schedule.TypeAutoComplete, q.Pending()[0].Type)
}

func TestWorkerRetriesThenBuries(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	q := NewMemoryQueue(time.Minute).WithClock(clock)
	ctx := context.Background()
	_, err := q.Schedule(ctx, schedule.Request{Type: schedule.TypeCheckInReminder, BookingID: "b-2", RunAt: now})
	require.NoError(t, err)

	metrics := &countingMetrics{}
	w := &Worker{Queue: q, MaxAttempts: 2, BackoffBase: time.Second, Metrics: metrics, Now: clock, Handle: func(ctx context.Context, job schedule.Job) error {
		return errors.New("notifier down")
	}}

	_, err = w.Drain(ctx)
	require.NoError(t, err)
	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, now.Add(time.Second), pending[0].RunAt)

	now = now.Add(2 * time.Second)
	_, err = w.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, q.Pending())
	require.Len(t, q.Dead(), 1)
	assert.Equal(t, 1, metrics.results["retry"])
	assert.Equal(t, 1, metrics.results["dead"])
}

func TestMemoryQueueCancelAndReap(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	q := NewMemoryQueue(time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()
	for _, typ := range []string{schedule.TypeCheckInReminder, schedule.TypeAutoCheckIn} {
		_, err := q.Schedule(ctx, schedule.Request{Type: typ, BookingID: "b-3", RunAt: now})
		require.NoError(t, err)
	}
	_, err := q.Schedule(ctx, schedule.Request{Type: schedule.TypeAutoCheckIn, BookingID: "other", RunAt: now})
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	now = now.Add(2 * time.Minute)
	reaped, err := q.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	removed, err := q.Cancel(ctx, "b-3")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Len(t, q.Pending(), 1)
}

func TestRescheduleDuringHandlingSurvivesAck(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	q := NewMemoryQueue(time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()
	_, err := q.Schedule(ctx, schedule.Request{Type: schedule.TypeAutoComplete, BookingID: "b-4", RunAt: now})
	require.NoError(t, err)

	w := &Worker{Queue: q, Now: func() time.Time { return now }, Handle: func(ctx context.Context, job schedule.Job) error {
		_, err := q.Schedule(ctx, schedule.Request{Type: job.Type, BookingID: job.BookingID, RunAt: now.Add(time.Hour)})
		return err
	}}
	_, err = w.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, q.Pending(), 1)
	assert.Equal(t, now.Add(time.Hour), q.Pending()[0].RunAt)
}
