package aggregator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/apperr"
	"github.com/flappyjet/telemetry-server/internal/cache"
	"github.com/flappyjet/telemetry-server/internal/events"
)

type TournamentAggregator struct {
	pool      *pgxpool.Pool
	logger    *zap.Logger
	cache     cache.QueryCache
	batchSize int
}

func NewTournamentAggregator(pool *pgxpool.Pool, logger *zap.Logger, c cache.QueryCache, batchSize int) *TournamentAggregator {
	return &TournamentAggregator{pool: pool, logger: logger, cache: c, batchSize: batchSize}
}

// ActiveTournament is the minimal shape this package needs to scope a
// scan; the tournament package owns the full Tournament type.
type ActiveTournament struct {
	ID      string
	StartAt time.Time
	EndAt   time.Time
}

// RunForTournament implements spec §4.5's algorithm for a single active
// tournament: scan game_ended events inside the tournament window that
// have no tournament_events link yet, upsert best-score per user, and
// insert the link with ON CONFLICT DO NOTHING so re-running concurrently
// or after a restart never double-counts an event (I3).
func (a *TournamentAggregator) RunForTournament(ctx context.Context, t ActiveTournament) (int, error) {
	var processed int

	err := pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT e.id, e.user_id, e.payload, e.received_at
			FROM events e
			WHERE e.event_type = $1
			  AND e.received_at BETWEEN $2 AND $3
			  AND NOT EXISTS (
			      SELECT 1 FROM tournament_events te
			      WHERE te.tournament_id = $4 AND te.event_id = e.id
			  )
			ORDER BY e.received_at ASC
			LIMIT $5
			FOR UPDATE OF e SKIP LOCKED`,
			string(events.TypeGameEnded), t.StartAt, t.EndAt, t.ID, a.batchSize)
		if err != nil {
			return apperr.Unavailable("tournament aggregator: scan events", err)
		}

		var scanned []scannedEvent
		for rows.Next() {
			var se scannedEvent
			var payloadRaw []byte
			if err := rows.Scan(&se.ID, &se.UserID, &payloadRaw, &se.ReceivedAt); err != nil {
				rows.Close()
				return apperr.Unavailable("tournament aggregator: scan row", err)
			}
			if err := json.Unmarshal(payloadRaw, &se.Payload); err != nil {
				a.logger.Warn("tournament aggregator: invalid payload JSON, skipping", zap.String("event_id", se.ID))
				continue
			}
			scanned = append(scanned, se)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return apperr.Unavailable("tournament aggregator: iterate rows", err)
		}

		for _, se := range scanned {
			score, ok := toInt64(se.Payload["score"])
			if !ok || score < 0 {
				a.logger.Warn("tournament aggregator: missing or invalid score, skipping", zap.String("event_id", se.ID))
				// Still link the event so it isn't rescanned forever.
				if _, err := tx.Exec(ctx, `
					INSERT INTO tournament_events (tournament_id, event_id) VALUES ($1, $2)
					ON CONFLICT DO NOTHING`, t.ID, se.ID); err != nil {
					return apperr.Unavailable("tournament aggregator: link invalid event", err)
				}
				continue
			}

			var nickname interface{}
			if nick, ok := se.Payload["nickname"].(string); ok && nick != "" {
				nickname = nick
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO tournament_leaderboard (tournament_id, user_id, nickname, best_score, attempts, last_attempt_at)
				VALUES ($1, $2, $3, $4, 1, $5)
				ON CONFLICT (tournament_id, user_id) DO UPDATE SET
					best_score = GREATEST(tournament_leaderboard.best_score, EXCLUDED.best_score),
					attempts = tournament_leaderboard.attempts + 1,
					last_attempt_at = GREATEST(tournament_leaderboard.last_attempt_at, EXCLUDED.last_attempt_at),
					nickname = COALESCE(tournament_leaderboard.nickname, EXCLUDED.nickname)`,
				t.ID, se.UserID, nickname, score, se.ReceivedAt)
			if err != nil {
				return apperr.Unavailable("tournament aggregator: upsert tournament row", err)
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO tournament_events (tournament_id, event_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, t.ID, se.ID); err != nil {
				return apperr.Unavailable("tournament aggregator: link event", err)
			}
		}

		processed = len(scanned)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if processed > 0 && a.cache != nil {
		a.cache.Invalidate(ctx, "tournament:"+t.ID+":leaderboard:")
	}
	return processed, nil
}
