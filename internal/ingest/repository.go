// Package ingest implements the event ingestion endpoint: validation,
// persistence, and enqueueing downstream work. It is the sole writer of
// the events table, per the ownership rules in the specification's data
// model section.
package ingest

import (
	"context"
	"encoding/json"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flappyjet/telemetry-server/internal/apperr"
	"github.com/flappyjet/telemetry-server/internal/events"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StoredEvent is an events row as persisted, returned after insert so the
// caller can enqueue a job referencing its ID.
type StoredEvent struct {
	ID         uuid.UUID
	EventType  events.Type
	UserID     string
	ReceivedAt int64
}

// InsertBatch persists every normalized event in a single transaction per
// spec §4.2 ("insert into events in a single transaction per batch"). It
// returns the stored rows in the same order as the input.
func (r *Repository) InsertBatch(ctx context.Context, normalized []*events.Normalized) ([]StoredEvent, error) {
	if len(normalized) == 0 {
		return nil, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Unavailable("ingest: begin transaction", err)
	}
	defer tx.Rollback(ctx)

	stored := make([]StoredEvent, 0, len(normalized))
	for _, n := range normalized {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, apperr.Fatal("ingest: generate uuid", err)
		}

		payloadJSON, err := json.Marshal(n.Payload)
		if err != nil {
			return nil, apperr.Validation("payload", "not JSON-serializable")
		}

		var receivedAt int64
		row := tx.QueryRow(ctx, `
			INSERT INTO events (id, event_type, user_id, payload, received_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING extract(epoch from received_at)::bigint`,
			id, string(n.EventType), n.UserID, payloadJSON, n.Timestamp)
		if err := row.Scan(&receivedAt); err != nil {
			return nil, apperr.Unavailable("ingest: insert event", err)
		}

		stored = append(stored, StoredEvent{
			ID:         id,
			EventType:  n.EventType,
			UserID:     n.UserID,
			ReceivedAt: receivedAt,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Unavailable("ingest: commit transaction", err)
	}
	return stored, nil
}
