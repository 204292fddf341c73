// Package aggregator implements the two incremental derivers described in
// spec §4.4 and §4.5: the global leaderboard aggregator and the
// tournament leaderboard aggregator. Both follow the teacher's
// leaderboard-upsert idiom (GREATEST for monotonic scores, COALESCE for
// nicknames) adapted from single-row RPC upserts to batched,
// transaction-scoped scans driven by the processed-watermark columns.
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

type GlobalAggregator struct {
	pool      *pgxpool.Pool
	logger    *zap.Logger
	cache     cache.QueryCache
	batchSize int
}

func NewGlobalAggregator(pool *pgxpool.Pool, logger *zap.Logger, c cache.QueryCache, batchSize int) *GlobalAggregator {
	return &GlobalAggregator{pool: pool, logger: logger, cache: c, batchSize: batchSize}
}

type scannedEvent struct {
	ID         string
	UserID     string
	Payload    map[string]interface{}
	ReceivedAt time.Time
}

type userAgg struct {
	maxScore      int64
	count         int64
	maxReceivedAt time.Time
	nickname      string
}

// Run executes one pass of spec §4.4's algorithm: scan up to batchSize
// unprocessed game_ended events with FOR UPDATE SKIP LOCKED, fold them in
// memory per user, upsert leaderboard_global, mark every scanned event
// processed, and commit — all inside a single transaction so partial
// progress is impossible (I1/I2).
func (a *GlobalAggregator) Run(ctx context.Context) (int, error) {
	var processed int

	err := pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, user_id, payload, received_at
			FROM events
			WHERE event_type = $1 AND processed_at IS NULL
			ORDER BY received_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED`,
			string(events.TypeGameEnded), a.batchSize)
		if err != nil {
			return apperr.Unavailable("global aggregator: scan events", err)
		}

		var scanned []scannedEvent
		for rows.Next() {
			var se scannedEvent
			var payloadRaw []byte
			if err := rows.Scan(&se.ID, &se.UserID, &payloadRaw, &se.ReceivedAt); err != nil {
				rows.Close()
				return apperr.Unavailable("global aggregator: scan row", err)
			}
			if err := json.Unmarshal(payloadRaw, &se.Payload); err != nil {
				a.logger.Warn("global aggregator: invalid payload JSON, skipping", zap.String("event_id", se.ID))
				continue
			}
			scanned = append(scanned, se)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return apperr.Unavailable("global aggregator: iterate rows", err)
		}

		if len(scanned) == 0 {
			return nil
		}

		byUser := map[string]*userAgg{}
		ids := make([]string, 0, len(scanned))
		for _, se := range scanned {
			ids = append(ids, se.ID)

			score, ok := toInt64(se.Payload["score"])
			if !ok || score < 0 {
				a.logger.Warn("global aggregator: missing or invalid score, skipping", zap.String("event_id", se.ID), zap.String("user_id", se.UserID))
				continue
			}

			agg, ok := byUser[se.UserID]
			if !ok {
				agg = &userAgg{}
				byUser[se.UserID] = agg
			}
			if score > agg.maxScore {
				agg.maxScore = score
			}
			agg.count++
			if se.ReceivedAt.After(agg.maxReceivedAt) {
				agg.maxReceivedAt = se.ReceivedAt
			}
			if nick, ok := se.Payload["nickname"].(string); ok && nick != "" {
				agg.nickname = nick
			}
		}

		for userID, agg := range byUser {
			var nickname interface{}
			if agg.nickname != "" {
				nickname = agg.nickname
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO leaderboard_global (user_id, nickname, high_score, games_played, last_played_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (user_id) DO UPDATE SET
					high_score = GREATEST(leaderboard_global.high_score, EXCLUDED.high_score),
					games_played = leaderboard_global.games_played + EXCLUDED.games_played,
					last_played_at = GREATEST(leaderboard_global.last_played_at, EXCLUDED.last_played_at),
					nickname = COALESCE(leaderboard_global.nickname, EXCLUDED.nickname)`,
				userID, nickname, agg.maxScore, agg.count, agg.maxReceivedAt)
			if err != nil {
				return apperr.Unavailable("global aggregator: upsert leaderboard row", err)
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE events SET processed_at = now() WHERE id = ANY($1)`, ids); err != nil {
			return apperr.Unavailable("global aggregator: mark processed", err)
		}

		processed = len(scanned)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if processed > 0 && a.cache != nil {
		a.cache.Invalidate(ctx, "leaderboard:global:")
	}
	return processed, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
