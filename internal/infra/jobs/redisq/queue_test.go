package redisq

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysettle/internal/app/schedule"
)

// newTestQueue needs a reachable Redis in REDIS_TEST_ADDR.
func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	prefix := "test:" + uuid.NewString()
	t.Cleanup(func() {
		keys, _ := rdb.Keys(context.Background(), prefix+":*").Result()
		if len(keys) > 0 {
			rdb.Del(context.Background(), keys...)
		}
	})
	return New(rdb, prefix, time.Minute)
}

func TestScheduleClaimAck(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	_, err := q.Schedule(ctx, schedule.Request{Type: schedule.TypeAutoCheckIn, BookingID: "b-1", RunAt: now.Add(-time.Second)})
	require.NoError(t, err)
	_, err = q.Schedule(ctx, schedule.Request{Type: schedule.TypeAutoComplete, BookingID: "b-1", RunAt: now.Add(time.Hour)})
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, schedule.JobID(schedule.TypeAutoCheckIn, "b-1"), claimed[0].ID)

	again, err := q.Claim(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, q.Ack(ctx, claimed[0]))
	removed, err := q.Cancel(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestExpiredLeaseIsReaped(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	base := time.Now()
	q.now = func() time.Time { return base }

	_, err := q.Schedule(ctx, schedule.Request{Type: schedule.TypeCheckInReminder, BookingID: "b-2", RunAt: base})
	require.NoError(t, err)
	claimed, err := q.Claim(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	q.now = func() time.Time { return base.Add(2 * time.Minute) }
	n, err := q.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reclaimed, err := q.Claim(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, reclaimed, 1)
}

func TestRetryAndBury(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	base := time.Now()
	q.now = func() time.Time { return base }

	_, err := q.Schedule(ctx, schedule.Request{Type: schedule.TypeAutoComplete, BookingID: "b-3", RunAt: base})
	require.NoError(t, err)
	claimed, err := q.Claim(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	job := claimed[0]
	job.Attempts = 1
	require.NoError(t, q.Retry(ctx, job, base.Add(time.Second)))

	q.now = func() time.Time { return base.Add(2 * time.Second) }
	claimed, err = q.Claim(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, 1, claimed[0].Attempts)

	require.NoError(t, q.Bury(ctx, claimed[0], "boom"))
	dead, err := q.rdb.LLen(ctx, q.deadKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}
