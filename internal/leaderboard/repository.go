package leaderboard

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flappyjet/telemetry-server/internal/apperr"
)

const maxPage = 100

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Top returns the global leaderboard ordered by high_score DESC, the same
// ordering the aggregator's index (idx_leaderboard_global_high_score)
// supports.
func (r *Repository) Top(ctx context.Context, limit, offset int) ([]Row, int, error) {
	if limit <= 0 || limit > maxPage {
		limit = maxPage
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM leaderboard_global`).Scan(&total); err != nil {
		return nil, 0, apperr.Unavailable("leaderboard: count global", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT user_id, nickname, high_score, games_played, last_played_at
		FROM leaderboard_global
		ORDER BY high_score DESC, user_id ASC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, apperr.Unavailable("leaderboard: query global", err)
	}
	defer rows.Close()

	out := make([]Row, 0, limit)
	rank := offset + 1
	for rows.Next() {
		var row Row
		var nickname *string
		if err := rows.Scan(&row.UserID, &nickname, &row.HighScore, &row.GamesPlayed, &row.LastPlayedAt); err != nil {
			return nil, 0, apperr.Unavailable("leaderboard: scan global row", err)
		}
		if nickname != nil {
			row.Nickname = *nickname
		}
		row.Rank = rank
		rank++
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// UserRank returns the rank of userID on the global leaderboard, or
// (0, false) if the user has no row yet.
func (r *Repository) UserRank(ctx context.Context, userID string) (int, bool, error) {
	var rank int
	err := r.pool.QueryRow(ctx, `
		SELECT rank FROM (
			SELECT user_id, RANK() OVER (ORDER BY high_score DESC, user_id ASC) AS rank
			FROM leaderboard_global
		) ranked
		WHERE user_id = $1`, userID).Scan(&rank)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, apperr.Unavailable("leaderboard: user rank", err)
	}
	return rank, true, nil
}
