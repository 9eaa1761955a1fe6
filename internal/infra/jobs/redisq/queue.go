// Package redisq is a Redis-backed delay queue. Due jobs live in a sorted set
// scored by run time, claimed jobs move to a lease set scored by lease expiry,
// and every booking keeps a set of its job ids so cancellation is one lookup.
package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"staysettle/internal/app/schedule"
	"staysettle/internal/infra/jobs"
)

var (
	claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[3], id)
end
return ids`)

	reapScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[1], id)
end
return #ids`)

	ackScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
  redis.call('DEL', KEYS[2])
  redis.call('SREM', KEYS[3], ARGV[1])
  if ARGV[2] ~= '' then
    redis.call('LPUSH', KEYS[4], ARGV[2])
  end
  return 1
end
return 0`)

	retryScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
  redis.call('SET', KEYS[2], ARGV[3])
  redis.call('ZADD', KEYS[3], ARGV[2], ARGV[1])
  return 1
end
return 0`)
)

type Queue struct {
	rdb    redis.UniversalClient
	prefix string
	lease  time.Duration
	now    func() time.Time
}

func New(rdb redis.UniversalClient, prefix string, lease time.Duration) *Queue {
	if prefix == "" {
		prefix = "staysettle:jobs"
	}
	if lease <= 0 {
		lease = time.Minute
	}
	return &Queue{rdb: rdb, prefix: prefix, lease: lease, now: time.Now}
}

func (q *Queue) dueKey() string                     { return q.prefix + ":due" }
func (q *Queue) leaseKey() string                   { return q.prefix + ":leased" }
func (q *Queue) deadKey() string                    { return q.prefix + ":dead" }
func (q *Queue) jobKey(id string) string            { return q.prefix + ":job:" + id }
func (q *Queue) bookingKey(bookingID string) string { return q.prefix + ":booking:" + bookingID }

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func (q *Queue) Schedule(ctx context.Context, req schedule.Request) (string, error) {
	job := schedule.Job{
		ID:        schedule.JobID(req.Type, req.BookingID),
		Type:      req.Type,
		BookingID: req.BookingID,
		Payload:   req.Payload,
		RunAt:     req.RunAt.UTC(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(job.ID), raw, 0)
		pipe.ZRem(ctx, q.leaseKey(), job.ID)
		pipe.ZAdd(ctx, q.dueKey(), redis.Z{Score: score(job.RunAt), Member: job.ID})
		pipe.SAdd(ctx, q.bookingKey(job.BookingID), job.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("redisq: schedule %s: %w", job.ID, err)
	}
	return job.ID, nil
}

func (q *Queue) Cancel(ctx context.Context, bookingID string) (int, error) {
	ids, err := q.rdb.SMembers(ctx, q.bookingKey(bookingID)).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	dels := make([]*redis.IntCmd, 0, len(ids))
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.ZRem(ctx, q.dueKey(), id)
			pipe.ZRem(ctx, q.leaseKey(), id)
			dels = append(dels, pipe.Del(ctx, q.jobKey(id)))
		}
		pipe.Del(ctx, q.bookingKey(bookingID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redisq: cancel %s: %w", bookingID, err)
	}
	removed := 0
	for _, cmd := range dels {
		removed += int(cmd.Val())
	}
	return removed, nil
}

func (q *Queue) Claim(ctx context.Context, limit int) ([]schedule.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	now := q.now()
	ids, err := claimScript.Run(ctx, q.rdb,
		[]string{q.dueKey(), q.leaseKey()},
		strconv.FormatInt(now.UnixMilli(), 10), limit, strconv.FormatInt(now.Add(q.lease).UnixMilli(), 10),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("redisq: claim: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = q.jobKey(id)
	}
	values, err := q.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redisq: load jobs: %w", err)
	}
	out := make([]schedule.Job, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Cancelled between claim and load.
			q.rdb.ZRem(ctx, q.leaseKey(), ids[i])
			continue
		}
		var job schedule.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return out, fmt.Errorf("redisq: decode %s: %w", ids[i], err)
		}
		out = append(out, job)
	}
	return out, nil
}

func (q *Queue) Ack(ctx context.Context, job schedule.Job) error {
	return q.finish(ctx, job, "")
}

func (q *Queue) Bury(ctx context.Context, job schedule.Job, reason string) error {
	entry, err := json.Marshal(struct {
		schedule.Job
		Reason   string    `json:"reason"`
		BuriedAt time.Time `json:"buried_at"`
	}{job, reason, q.now().UTC()})
	if err != nil {
		return err
	}
	return q.finish(ctx, job, string(entry))
}

func (q *Queue) finish(ctx context.Context, job schedule.Job, deadEntry string) error {
	err := ackScript.Run(ctx, q.rdb,
		[]string{q.leaseKey(), q.jobKey(job.ID), q.bookingKey(job.BookingID), q.deadKey()},
		job.ID, deadEntry,
	).Err()
	if err != nil {
		return fmt.Errorf("redisq: finish %s: %w", job.ID, err)
	}
	return nil
}

func (q *Queue) Retry(ctx context.Context, job schedule.Job, at time.Time) error {
	job.RunAt = at.UTC()
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	err = retryScript.Run(ctx, q.rdb,
		[]string{q.leaseKey(), q.jobKey(job.ID), q.dueKey()},
		job.ID, strconv.FormatInt(job.RunAt.UnixMilli(), 10), string(raw),
	).Err()
	if err != nil {
		return fmt.Errorf("redisq: retry %s: %w", job.ID, err)
	}
	return nil
}

// Reap returns jobs whose lease expired to the due set.
func (q *Queue) Reap(ctx context.Context) (int, error) {
	n, err := reapScript.Run(ctx, q.rdb,
		[]string{q.leaseKey(), q.dueKey()},
		strconv.FormatInt(q.now().UnixMilli(), 10),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("redisq: reap: %w", err)
	}
	return n, nil
}

var _ jobs.Queue = (*Queue)(nil)
