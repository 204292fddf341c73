package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/apperr"
)

const (
	keySeq        = "jobs:seq"
	keyDelayed    = "jobs:delayed"
	keyProcessing = "jobs:processing"
	keyProcData   = "jobs:processing:data"
	keyDead       = "jobs:dead"

	lockTTL       = 30 * time.Second
	maxStallTries = 3
	backoffBase   = 2 * time.Second
)

// queuedJob wraps Job with the bookkeeping fields needed for stall
// tracking that don't belong on the public Job type.
type queuedJob struct {
	Job
	StallCount int `json:"stall_count"`
}

type RedisQueue struct {
	client *redis.Client
	logger *zap.Logger
	stats  *Stats
}

func NewRedisQueue(client *redis.Client, logger *zap.Logger, stats *Stats) *RedisQueue {
	return &RedisQueue{client: client, logger: logger, stats: stats}
}

// Enqueue pushes a job onto its priority's ready set, scored by a
// monotonically increasing sequence number so pops within a class are
// FIFO.
func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	qj := queuedJob{Job: *job}
	raw, err := json.Marshal(qj)
	if err != nil {
		return apperr.Fatal("queue: marshal job", err)
	}

	seq, err := q.client.Incr(ctx, keySeq).Result()
	if err != nil {
		return apperr.Unavailable("queue: redis incr", err)
	}

	if err := q.client.ZAdd(ctx, job.Priority.key(), redis.Z{Score: float64(seq), Member: raw}).Err(); err != nil {
		return apperr.Unavailable("queue: redis zadd", err)
	}
	q.stats.IncWaiting()
	return nil
}

// dequeue pops the highest-priority, oldest-ready job across the three
// priority classes, checking high before medium before low so priority is
// strict between classes and FIFO within a class.
func (q *RedisQueue) dequeue(ctx context.Context, timeout time.Duration) (*queuedJob, error) {
	keys := []string{PriorityHigh.key(), PriorityMedium.key(), PriorityLow.key()}
	res, err := q.client.BZPopMin(ctx, timeout, keys...).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw, ok := res.Member.(string)
	if !ok {
		return nil, fmt.Errorf("queue: unexpected member type %T", res.Member)
	}

	var qj queuedJob
	if err := json.Unmarshal([]byte(raw), &qj); err != nil {
		return nil, fmt.Errorf("queue: decode job: %w", err)
	}
	return &qj, nil
}

// lock marks a dequeued job as in-flight with a TTL'd lock, recorded in a
// sorted set scored by lock expiry so the stall sweeper can find expired
// ones cheaply.
func (q *RedisQueue) lock(ctx context.Context, qj *queuedJob) error {
	raw, err := json.Marshal(qj)
	if err != nil {
		return err
	}
	expiry := float64(time.Now().Add(lockTTL).Unix())
	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, keyProcessing, redis.Z{Score: expiry, Member: qj.ID})
	pipe.HSet(ctx, keyProcData, qj.ID, raw)
	_, err = pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) unlock(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, keyProcessing, jobID)
	pipe.HDel(ctx, keyProcData, jobID)
	_, err := pipe.Exec(ctx)
	return err
}

// requeueWithBackoff re-enqueues a failed job with one fewer attempt and a
// delay of base * 2^(3-attemptsRemaining), per spec §4.3. Once attempts are
// exhausted the job moves to the dead-letter hash.
func (q *RedisQueue) requeueWithBackoff(ctx context.Context, qj *queuedJob, cause error) error {
	if err := q.unlock(ctx, qj.ID); err != nil {
		q.logger.Warn("queue: unlock after failure", zap.Error(err))
	}

	qj.Attempts--
	if qj.Attempts <= 0 {
		return q.deadLetter(ctx, qj, cause)
	}

	delay := backoff(backoffBase, qj.Attempts)
	raw, err := json.Marshal(qj)
	if err != nil {
		return err
	}
	readyAt := float64(time.Now().Add(delay).Unix())
	if err := q.client.ZAdd(ctx, keyDelayed, redis.Z{Score: readyAt, Member: raw}).Err(); err != nil {
		return err
	}
	q.stats.IncFailed()
	return nil
}

func (q *RedisQueue) deadLetter(ctx context.Context, qj *queuedJob, cause error) error {
	entry := map[string]interface{}{
		"job":        qj,
		"last_error": errString(cause),
		"failed_at":  time.Now().UTC(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := q.client.HSet(ctx, keyDead, qj.ID, raw).Err(); err != nil {
		return err
	}
	q.stats.IncDead()
	q.logger.Warn("queue: job moved to dead letter", zap.String("job_id", qj.ID), zap.String("kind", qj.Kind), zap.Error(cause))
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// PromoteDelayed moves delayed jobs whose backoff has elapsed back onto
// their priority's ready set. Intended to be called on a short ticker by
// the worker pool's supervisor goroutine.
func (q *RedisQueue) PromoteDelayed(ctx context.Context) error {
	now := float64(time.Now().Unix())
	entries, err := q.client.ZRangeByScore(ctx, keyDelayed, &redis.ZRangeBy{Min: "0", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		return err
	}
	for _, raw := range entries {
		var qj queuedJob
		if err := json.Unmarshal([]byte(raw), &qj); err != nil {
			q.logger.Error("queue: decode delayed job", zap.Error(err))
			q.client.ZRem(ctx, keyDelayed, raw)
			continue
		}
		seq, err := q.client.Incr(ctx, keySeq).Result()
		if err != nil {
			continue
		}
		jraw, _ := json.Marshal(qj)
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, keyDelayed, raw)
		pipe.ZAdd(ctx, qj.Priority.key(), redis.Z{Score: float64(seq), Member: jraw})
		if _, err := pipe.Exec(ctx); err != nil {
			q.logger.Error("queue: promote delayed job", zap.Error(err))
		}
	}
	return nil
}

// SweepStalled re-dispatches jobs whose processing lock has expired,
// up to maxStallTries times, per spec §4.3 "Stalled detection".
func (q *RedisQueue) SweepStalled(ctx context.Context) error {
	now := float64(time.Now().Unix())
	ids, err := q.client.ZRangeByScore(ctx, keyProcessing, &redis.ZRangeBy{Min: "0", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		return err
	}
	for _, id := range ids {
		raw, err := q.client.HGet(ctx, keyProcData, id).Result()
		if err != nil {
			q.client.ZRem(ctx, keyProcessing, id)
			continue
		}
		var qj queuedJob
		if err := json.Unmarshal([]byte(raw), &qj); err != nil {
			q.client.ZRem(ctx, keyProcessing, id)
			q.client.HDel(ctx, keyProcData, id)
			continue
		}

		if err := q.unlock(ctx, id); err != nil {
			q.logger.Warn("queue: unlock stalled job", zap.Error(err))
		}

		qj.StallCount++
		if qj.StallCount > maxStallTries {
			q.deadLetter(ctx, &qj, fmt.Errorf("exceeded %d stall retries", maxStallTries))
			continue
		}

		seq, err := q.client.Incr(ctx, keySeq).Result()
		if err != nil {
			continue
		}
		jraw, _ := json.Marshal(qj)
		if err := q.client.ZAdd(ctx, qj.Priority.key(), redis.Z{Score: float64(seq), Member: jraw}).Err(); err != nil {
			q.logger.Error("queue: re-dispatch stalled job", zap.Error(err))
		}
	}
	return nil
}
