package queue

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/apperr"
)

// Handler processes one job's payload. Returning an error triggers the
// retry/backoff path; a nil error acks the job.
type Handler func(ctx context.Context, job *Job) error

// Mode reports whether the queue is operating against Redis or has
// degraded to direct synchronous execution.
type Mode int

const (
	ModeRedis Mode = iota
	ModeDirect
)

func (m Mode) String() string {
	if m == ModeDirect {
		return "direct"
	}
	return "redis"
}

// Queue is the public facade used by the ingestion service. It owns the worker pool and the promotion/stall-sweep
// background loops, mirroring the reference scheduler's Start/Stop
// lifecycle (see server/leaderboard_scheduler.go).
type Queue struct {
	logger      *zap.Logger
	mode        Mode
	redisQueue  *RedisQueue
	handlers    map[string]Handler
	handlersMu  sync.RWMutex
	workerCount int
	deadline    time.Duration
	stats       *Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Config struct {
	WorkerCount int
	JobDeadline time.Duration
	MaxAttempts int
}

// New builds a Queue. If client is nil, or a ping against it fails, the
// queue starts in ModeDirect per the graceful-degradation design note;
// callers should surface that on their health check.
func New(ctx context.Context, client *redis.Client, logger *zap.Logger, cfg Config) *Queue {
	qctx, cancel := context.WithCancel(ctx)
	stats := NewStats(cfg.WorkerCount)

	q := &Queue{
		logger:      logger,
		handlers:    map[string]Handler{},
		workerCount: cfg.WorkerCount,
		deadline:    cfg.JobDeadline,
		stats:       stats,
		ctx:         qctx,
		cancel:      cancel,
	}

	if client == nil {
		q.mode = ModeDirect
		logger.Warn("Job queue starting in direct-execution mode: no cache client configured")
		return q
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		q.mode = ModeDirect
		logger.Warn("Job queue starting in direct-execution mode: cache unavailable", zap.Error(err))
		return q
	}

	q.mode = ModeRedis
	q.redisQueue = NewRedisQueue(client, logger, stats)
	return q
}

func (q *Queue) Mode() Mode { return q.mode }

func (q *Queue) Stats() Snapshot { return q.stats.Snapshot() }

// RegisterHandler binds a job kind to its processing function. Must be
// called before Start.
func (q *Queue) RegisterHandler(kind string, h Handler) {
	q.handlersMu.Lock()
	defer q.handlersMu.Unlock()
	q.handlers[kind] = h
}

func (q *Queue) handlerFor(kind string) (Handler, bool) {
	q.handlersMu.RLock()
	defer q.handlersMu.RUnlock()
	h, ok := q.handlers[kind]
	return h, ok
}

// Start launches the worker pool and, in ModeRedis, the promotion and
// stall-sweep supervisor loops.
func (q *Queue) Start() {
	if q.mode == ModeDirect {
		return
	}

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.workerLoop()
	}

	q.wg.Add(1)
	go q.supervisorLoop()
}

func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) workerLoop() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		default:
		}

		qj, err := q.redisQueue.dequeue(q.ctx, 2*time.Second)
		if err != nil {
			if q.ctx.Err() != nil {
				return
			}
			q.logger.Error("queue: dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if qj == nil {
			continue
		}

		q.stats.DecWaiting()
		q.stats.IncActive()
		q.processJob(qj)
		q.stats.DecActive()
	}
}

func (q *Queue) processJob(qj *queuedJob) {
	if err := q.redisQueue.lock(q.ctx, qj); err != nil {
		q.logger.Error("queue: lock job", zap.Error(err))
	}

	handler, ok := q.handlerFor(qj.Kind)
	if !ok {
		q.redisQueue.deadLetter(q.ctx, qj, apperr.Fatal("queue: no handler registered", nil))
		return
	}

	jobCtx, cancel := context.WithTimeout(q.ctx, q.deadline)
	defer cancel()

	err := handler(jobCtx, &qj.Job)
	if err == nil {
		if uerr := q.redisQueue.unlock(q.ctx, qj.ID); uerr != nil {
			q.logger.Warn("queue: unlock completed job", zap.Error(uerr))
		}
		q.stats.IncCompleted()
		return
	}

	q.logger.Warn("queue: job handler failed", zap.String("job_id", qj.ID), zap.String("kind", qj.Kind), zap.Error(err))
	if rerr := q.redisQueue.requeueWithBackoff(q.ctx, qj, err); rerr != nil {
		q.logger.Error("queue: requeue after failure", zap.Error(rerr))
	}
}

func (q *Queue) supervisorLoop() {
	defer q.wg.Done()
	promote := time.NewTicker(time.Second)
	sweep := time.NewTicker(10 * time.Second)
	defer promote.Stop()
	defer sweep.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-promote.C:
			if err := q.redisQueue.PromoteDelayed(q.ctx); err != nil {
				q.logger.Error("queue: promote delayed jobs", zap.Error(err))
			}
		case <-sweep.C:
			if err := q.redisQueue.SweepStalled(q.ctx); err != nil {
				q.logger.Error("queue: sweep stalled jobs", zap.Error(err))
			}
		}
	}
}

// Enqueue adds a job to the queue. In ModeDirect it runs the job's handler
// synchronously in the caller's goroutine instead, per the degraded-mode
// design note — ingestion must still complete the request successfully.
func (q *Queue) Enqueue(ctx context.Context, kind string, priority Priority, payload interface{}, maxAttempts int) error {
	job, err := NewJob(kind, priority, payload, maxAttempts)
	if err != nil {
		return apperr.Fatal("queue: build job", err)
	}

	if q.mode == ModeDirect {
		handler, ok := q.handlerFor(kind)
		if !ok {
			return apperr.Fatal("queue: no handler registered for direct execution", nil)
		}
		q.stats.IncDirect()
		jobCtx, cancel := context.WithTimeout(ctx, q.deadline)
		defer cancel()
		return handler(jobCtx, job)
	}

	return q.redisQueue.Enqueue(ctx, job)
}
