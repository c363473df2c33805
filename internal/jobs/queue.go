// Package jobs runs delayed background work: story expiry and outgoing
// connection-request mail.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"monolith/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Job types.
const (
	TypeStoryExpire            = "story.expire"
	TypeConnectionRequestEmail = "connection.request_email"
)

// Job is a unit of delayed work.
type Job struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Key      string          `json:"key,omitempty"`
	Payload  json.RawMessage `json:"payload"`
	RunAt    time.Time       `json:"run_at"`
	Attempts int             `json:"attempts"`
}

// member is the identity of a job inside a queue. Jobs sharing a key
// replace each other.
func (j Job) member() string {
	if j.Key != "" {
		return j.Key
	}
	return j.ID
}

// NewJob builds a job of the given type with payload marshalled to JSON.
func NewJob(jobType, key string, payload any, runAt time.Time) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal %s payload: %w", jobType, err)
	}
	return Job{ID: uuid.NewString(), Type: jobType, Key: key, Payload: raw, RunAt: runAt}, nil
}

// Queue stores jobs until they are due.
type Queue interface {
	// Enqueue schedules job. A job with the same key replaces the earlier one.
	Enqueue(ctx context.Context, job Job) error
	// Claim removes and returns up to limit jobs due at or before now.
	Claim(ctx context.Context, now time.Time, limit int) ([]Job, error)
	// Pending reports how many jobs are waiting.
	Pending(ctx context.Context) (int64, error)
}

const (
	delayedKey = "jobs:delayed"
	payloadKey = "jobs:payload"
)

// claimDue pops due members from the schedule along with their payloads.
var claimDue = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
local out = {}
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local p = redis.call('HGET', KEYS[2], id)
  redis.call('HDEL', KEYS[2], id)
  if p then
    table.insert(out, p)
  end
end
return out
`)

// RedisQueue keeps the schedule in a sorted set scored by run time and the
// job bodies in a hash.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue returns a queue backed by rdb.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	member := job.member()
	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, payloadKey, member, body)
		p.ZAdd(ctx, delayedKey, redis.Z{Score: float64(job.RunAt.UnixMilli()), Member: member})
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", job.Type, err)
	}
	observability.JobsEnqueued.WithLabelValues(job.Type).Inc()
	return nil
}

func (q *RedisQueue) Claim(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	raw, err := claimDue.Run(ctx, q.rdb, []string{delayedKey, payloadKey}, now.UnixMilli(), limit).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	jobs := make([]Job, 0, len(raw))
	for _, s := range raw {
		var j Job
		if err := json.Unmarshal([]byte(s), &j); err != nil {
			observability.GlobalLogger.ErrorContext(ctx, "dropping undecodable job", "error", err.Error())
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, delayedKey).Result()
}

// MemoryQueue is a process-local queue used when Redis is unavailable and
// in tests. Jobs do not survive a restart; the story sweeper covers that.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs map[string]Job
}

// NewMemoryQueue returns an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(map[string]Job)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	q.mu.Lock()
	q.jobs[job.member()] = job
	q.mu.Unlock()
	observability.JobsEnqueued.WithLabelValues(job.Type).Inc()
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, limit int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	due := make([]Job, 0)
	for _, j := range q.jobs {
		if !j.RunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool { return due[a].RunAt.Before(due[b].RunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, j := range due {
		delete(q.jobs, j.member())
	}
	return due, nil
}

func (q *MemoryQueue) Pending(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}
