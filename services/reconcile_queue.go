package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	reconcileKey         = "rsvp:reconcile"
	reconcileAttemptsKey = "rsvp:reconcile:attempts"
)

// ReconcileJob is one (user, event) pair awaiting reconciliation.
type ReconcileJob struct {
	UserID   string
	EventID  string
	Attempts int
}

func (j ReconcileJob) member() string { return j.UserID + ":" + j.EventID }

func parseMember(member string) (ReconcileJob, error) {
	userID, eventID, ok := strings.Cut(member, ":")
	if !ok || userID == "" || eventID == "" {
		return ReconcileJob{}, fmt.Errorf("malformed reconcile entry %q", member)
	}
	return ReconcileJob{UserID: userID, EventID: eventID}, nil
}

// RedisReconcileQueue keeps pending pairs in a sorted set scored by the
// unix time at which they are next due.
type RedisReconcileQueue struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisReconcileQueue(client *redis.Client) *RedisReconcileQueue {
	return &RedisReconcileQueue{client: client, now: time.Now}
}

// Enqueue schedules the pair immediately. A pair already queued keeps its
// existing due time.
func (q *RedisReconcileQueue) Enqueue(ctx context.Context, userID, eventID string) error {
	job := ReconcileJob{UserID: userID, EventID: eventID}
	return q.client.ZAddNX(ctx, reconcileKey, redis.Z{
		Score:  float64(q.now().Unix()),
		Member: job.member(),
	}).Err()
}

// Due returns up to limit jobs whose due time has passed.
func (q *RedisReconcileQueue) Due(ctx context.Context, limit int) ([]ReconcileJob, error) {
	members, err := q.client.ZRangeByScore(ctx, reconcileKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(q.now().Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	attempts, err := q.client.HMGet(ctx, reconcileAttemptsKey, members...).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]ReconcileJob, 0, len(members))
	for i, m := range members {
		job, err := parseMember(m)
		if err != nil {
			q.client.ZRem(ctx, reconcileKey, m)
			continue
		}
		if s, ok := attempts[i].(string); ok {
			job.Attempts, _ = strconv.Atoi(s)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Retry records a failed attempt and pushes the job back to at.
func (q *RedisReconcileQueue) Retry(ctx context.Context, job ReconcileJob, at time.Time) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, reconcileKey, redis.Z{Score: float64(at.Unix()), Member: job.member()})
		pipe.HIncrBy(ctx, reconcileAttemptsKey, job.member(), 1)
		return nil
	})
	return err
}

// Done removes the job and its attempt counter.
func (q *RedisReconcileQueue) Done(ctx context.Context, job ReconcileJob) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, reconcileKey, job.member())
		pipe.HDel(ctx, reconcileAttemptsKey, job.member())
		return nil
	})
	return err
}

func (q *RedisReconcileQueue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, reconcileKey).Result()
}
