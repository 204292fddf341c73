package queue

import (
	"sync/atomic"
	"time"

	metrics "github.com/armon/go-metrics"
)

// Stats tracks the counters spec §4.3 requires the queue to expose:
// waiting, active, completed, failed, dead-letter, and worker utilization.
// Counters are kept locally with atomics for cheap reads through
// Queue.Stats (the dashboard health endpoint reports only the queue mode,
// not these counters), and mirrored into armon/go-metrics gauges the way the
// reference server's main.go wires its in-memory metrics sink, so the
// same values are also visible to anything scraping that sink.
type Stats struct {
	waiting   int64
	active    int64
	completed int64
	failed    int64
	dead      int64
	direct    int64

	workerCount int64

	sink *metrics.InmemSink
}

func NewStats(workerCount int) *Stats {
	return &Stats{
		workerCount: int64(workerCount),
		sink:        metrics.NewInmemSink(10*time.Second, time.Minute),
	}
}

func (s *Stats) IncWaiting()      { atomic.AddInt64(&s.waiting, 1); s.gauge("waiting", s.waiting) }
func (s *Stats) DecWaiting()      { atomic.AddInt64(&s.waiting, -1); s.gauge("waiting", s.waiting) }
func (s *Stats) IncActive()       { atomic.AddInt64(&s.active, 1); s.gauge("active", s.active) }
func (s *Stats) DecActive()       { atomic.AddInt64(&s.active, -1); s.gauge("active", s.active) }
func (s *Stats) IncCompleted()    { atomic.AddInt64(&s.completed, 1); s.gauge("completed", s.completed) }
func (s *Stats) IncFailed()       { atomic.AddInt64(&s.failed, 1); s.gauge("failed", s.failed) }
func (s *Stats) IncDead()         { atomic.AddInt64(&s.dead, 1); s.gauge("dead_letter", s.dead) }
func (s *Stats) IncDirect()       { atomic.AddInt64(&s.direct, 1); s.gauge("direct_executions", s.direct) }

func (s *Stats) gauge(name string, v int64) {
	s.sink.SetGauge([]string{"job_queue", name}, float32(v))
}

// Snapshot is the read-only view returned by Queue.Stats. No HTTP endpoint
// serves it.
type Snapshot struct {
	Waiting           int64   `json:"waiting"`
	Active            int64   `json:"active"`
	Completed         int64   `json:"completed"`
	Failed            int64   `json:"failed"`
	DeadLetter        int64   `json:"dead_letter"`
	DirectExecutions  int64   `json:"direct_executions"`
	WorkerCount       int64   `json:"worker_count"`
	WorkerUtilization float64 `json:"worker_utilization"`
}

func (s *Stats) Snapshot() Snapshot {
	active := atomic.LoadInt64(&s.active)
	workers := atomic.LoadInt64(&s.workerCount)
	util := 0.0
	if workers > 0 {
		util = float64(active) / float64(workers)
	}
	return Snapshot{
		Waiting:           atomic.LoadInt64(&s.waiting),
		Active:            active,
		Completed:         atomic.LoadInt64(&s.completed),
		Failed:            atomic.LoadInt64(&s.failed),
		DeadLetter:        atomic.LoadInt64(&s.dead),
		DirectExecutions:  atomic.LoadInt64(&s.direct),
		WorkerCount:       workers,
		WorkerUtilization: util,
	}
}
