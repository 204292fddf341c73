package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/apperr"
	"github.com/flappyjet/telemetry-server/internal/events"
	"github.com/flappyjet/telemetry-server/internal/queue"
)

const JobKindProcessEvent = "process_event"

// BatchCap is the hard limit on events accepted per request, per §4.2.
const BatchCap = 100

type ItemRejection struct {
	Index  int    `json:"index"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

type Result struct {
	Received int             `json:"received"`
	Accepted int             `json:"accepted"`
	Rejected []ItemRejection `json:"rejected"`
}

// EventJobPayload is what gets enqueued per accepted event: just enough
// for aggregators to know a new row exists, since aggregators always
// re-read from the source of truth rather than trusting queue payloads.
type EventJobPayload struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
}

type Service struct {
	logger     *zap.Logger
	validator  *events.Validator
	repository *Repository
	queue      *queue.Queue
}

func NewService(logger *zap.Logger, validator *events.Validator, repository *Repository, q *queue.Queue) *Service {
	return &Service{logger: logger, validator: validator, repository: repository, queue: q}
}

// Ingest implements spec §4.2: validate every item, persist the valid ones
// in a single transaction, enqueue a job per persisted event, and return a
// result describing per-item outcomes. Only persistence failures escalate
// to an error (mapped to 5xx by the API layer); validation failures are
// always reported per-item with HTTP 200.
func (s *Service) Ingest(ctx context.Context, raws []events.RawEvent) (*Result, error) {
	received := len(raws)

	truncated := raws
	overflow := 0
	if len(truncated) > BatchCap {
		overflow = len(truncated) - BatchCap
		truncated = truncated[:BatchCap]
		s.logger.Warn("ingest: batch truncated to cap", zap.Int("received", received), zap.Int("cap", BatchCap))
	}

	result := &Result{Received: received, Rejected: []ItemRejection{}}

	normalizedByIndex := make(map[int]*events.Normalized, len(truncated))
	var normalized []*events.Normalized
	indexOrder := make([]int, 0, len(truncated))

	for i, raw := range truncated {
		n, err := s.validator.Validate(raw)
		if err != nil {
			field, reason := describeValidationError(err)
			result.Rejected = append(result.Rejected, ItemRejection{Index: i, Field: field, Reason: reason})
			continue
		}
		normalizedByIndex[i] = n
		normalized = append(normalized, n)
		indexOrder = append(indexOrder, i)
	}

	for i := 0; i < overflow; i++ {
		result.Rejected = append(result.Rejected, ItemRejection{
			Index:  BatchCap + i,
			Field:  "batch",
			Reason: "truncated: batch exceeds cap of 100",
		})
	}

	if len(normalized) == 0 {
		result.Accepted = 0
		return result, nil
	}

	stored, err := s.repository.InsertBatch(ctx, normalized)
	if err != nil {
		// Systemic failure: the spec requires 5xx here, not a per-item
		// rejection, since persistence is all-or-nothing per batch.
		return nil, err
	}

	result.Accepted = len(stored)

	for i, sev := range stored {
		payload := EventJobPayload{EventID: sev.ID.String(), EventType: string(sev.EventType)}
		priority := queue.PriorityFromEvent(events.PriorityFor(sev.EventType))
		if err := s.queue.Enqueue(ctx, JobKindProcessEvent, priority, payload, 3); err != nil {
			// Fire-and-forget: persistence already succeeded, so a queue
			// failure does not fail the request. Aggregators will pick the
			// event up on their next scheduled tick regardless.
			s.logger.Warn("ingest: enqueue failed, relying on aggregator timer", zap.Error(err), zap.Int("index", indexOrder[i]))
		}
	}

	return result, nil
}

func describeValidationError(err error) (field, reason string) {
	var ae *apperr.Error
	if e, ok := err.(*apperr.Error); ok {
		ae = e
	}
	if ae != nil {
		return ae.Field, ae.Message
	}
	return "", err.Error()
}
