// Package queue implements the write-behind job queue: a priority queue
// backed by Redis sorted sets, a fixed worker pool, exponential backoff
// retries, stalled-job recovery, and a dead-letter set, following the
// write-behind pattern the specification describes in §4.3. When Redis is
// unavailable at startup the queue degrades to direct synchronous
// execution in the caller's goroutine, per the Design Notes' graceful
// degradation rule.
package queue

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"

	"github.com/flappyjet/telemetry-server/internal/events"
)

// Priority mirrors events.Priority but is queue-local so this package
// doesn't need to import events for anything but job routing.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

func PriorityFromEvent(p events.Priority) Priority {
	return Priority(p)
}

func (p Priority) key() string {
	switch p {
	case PriorityHigh:
		return "jobs:high"
	case PriorityMedium:
		return "jobs:medium"
	default:
		return "jobs:low"
	}
}

// Job is a unit of queued work: a reference to the event that triggered
// it, routed to a named handler registered with the worker pool.
type Job struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Payload    []byte    `json:"payload"`
	Priority   Priority  `json:"priority"`
	Attempts   int       `json:"attempts"`
	MaxAttempts int      `json:"max_attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func NewJob(kind string, priority Priority, payload interface{}, maxAttempts int) (*Job, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:          id.String(),
		Kind:        kind,
		Payload:     raw,
		Priority:    priority,
		Attempts:    maxAttempts,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}, nil
}

func (j *Job) Decode(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

// backoff implements the spec's exponential(base=2s), delay =
// base * 2^(3-attempts) on the attempts remaining after this failure.
func backoff(base time.Duration, attemptsRemaining int) time.Duration {
	if attemptsRemaining < 0 {
		attemptsRemaining = 0
	}
	exp := 3 - attemptsRemaining
	if exp < 0 {
		exp = 0
	}
	d := base
	for i := 0; i < exp; i++ {
		d *= 2
	}
	return d
}
