package tournament

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/flappyjet/telemetry-server/internal/apperr"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new tournament. A unique (type, start_at) violation is
// returned as a Conflict error, which the scheduler logs and skips, per
// spec §7 "Conflict" semantics for duplicate tournament creation.
func (r *Repository) Create(ctx context.Context, t *Tournament) error {
	id, err := uuid.NewV4()
	if err != nil {
		return apperr.Fatal("tournament: generate uuid", err)
	}
	t.ID = id.String()

	distJSON, err := json.Marshal(t.PrizeDistribution)
	if err != nil {
		return apperr.Fatal("tournament: marshal prize distribution", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO tournaments (id, name, type, start_at, end_at, registration_start, registration_end,
			status, prize_pool, prize_distribution, game_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.Name, t.Type, t.StartAt, t.EndAt, t.RegistrationStart, t.RegistrationEnd,
		StatusUpcoming, t.PrizePool, distJSON, t.GameMode)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("tournament already scheduled for this (type, start_at)")
		}
		return apperr.Unavailable("tournament: insert", err)
	}
	t.Status = StatusUpcoming
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Tournament, error) {
	row := r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id)
	return scanTournament(row)
}

const selectColumns = `
	SELECT id, name, type, start_at, end_at, registration_start, registration_end,
		status, prize_pool, prize_distribution, game_mode, started_at, ended_at, created_at
	FROM tournaments`

func scanTournament(row pgx.Row) (*Tournament, error) {
	var t Tournament
	var distRaw []byte
	var status string
	if err := row.Scan(&t.ID, &t.Name, &t.Type, &t.StartAt, &t.EndAt, &t.RegistrationStart, &t.RegistrationEnd,
		&status, &t.PrizePool, &distRaw, &t.GameMode, &t.StartedAt, &t.EndedAt, &t.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("tournament not found")
		}
		return nil, apperr.Unavailable("tournament: scan", err)
	}
	t.Status = Status(status)
	if len(distRaw) > 0 {
		_ = json.Unmarshal(distRaw, &t.PrizeDistribution)
	}
	return &t, nil
}

// ActiveTournaments lists every tournament currently in the active state,
// used by the tournament aggregator's per-tournament scan loop.
func (r *Repository) ActiveTournaments(ctx context.Context) ([]*Tournament, error) {
	rows, err := r.pool.Query(ctx, selectColumns+` WHERE status = $1`, StatusActive)
	if err != nil {
		return nil, apperr.Unavailable("tournament: list active", err)
	}
	defer rows.Close()

	var out []*Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// NextUpcoming returns the soonest-starting upcoming tournament, used by
// Current's fallback when nothing is active.
func (r *Repository) NextUpcoming(ctx context.Context) (*Tournament, error) {
	row := r.pool.QueryRow(ctx, selectColumns+` WHERE status = $1 ORDER BY start_at ASC LIMIT 1`, StatusUpcoming)
	return scanTournament(row)
}

// ParticipantCount returns the number of distinct users with a leaderboard
// row for tournamentID.
func (r *Repository) ParticipantCount(ctx context.Context, tournamentID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tournament_leaderboard WHERE tournament_id = $1`, tournamentID).Scan(&count)
	if err != nil {
		return 0, apperr.Unavailable("tournament: participant count", err)
	}
	return count, nil
}

// DueForTransition returns upcoming tournaments whose start_at has passed
// and active tournaments whose end_at has passed, the two populations the
// scheduler's clock-driven sweep needs each tick.
func (r *Repository) DueForTransition(ctx context.Context, now time.Time) ([]*Tournament, error) {
	rows, err := r.pool.Query(ctx, selectColumns+`
		WHERE (status = $1 AND start_at <= $3) OR (status = $2 AND end_at <= $3)`,
		StatusUpcoming, StatusActive, now)
	if err != nil {
		return nil, apperr.Unavailable("tournament: due for transition", err)
	}
	defer rows.Close()

	var out []*Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// NextDeadline returns the earliest start_at among upcoming tournaments or
// end_at among active tournaments, used by the scheduler to arm a single
// timer instead of polling every minute once a deadline is known.
func (r *Repository) NextDeadline(ctx context.Context) (time.Time, bool) {
	var t time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MIN(deadline) FROM (
			SELECT start_at AS deadline FROM tournaments WHERE status = $1
			UNION ALL
			SELECT end_at AS deadline FROM tournaments WHERE status = $2
		) d`, StatusUpcoming, StatusActive).Scan(&t)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

// TransitionToActive flips status upcoming -> active under a row lock,
// satisfying the "all transitions use SELECT ... FOR UPDATE" concurrency
// rule. Returns (false, nil) if another process already made the
// transition — that is success, not an error (idempotent).
func (r *Repository) TransitionToActive(ctx context.Context, id string, now time.Time) (bool, error) {
	var applied bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM tournaments WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if err != nil {
			if err == pgx.ErrNoRows {
				return apperr.NotFound("tournament not found")
			}
			return apperr.Unavailable("tournament: lock row", err)
		}
		if Status(status) != StatusUpcoming {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE tournaments SET status = $1, started_at = $2 WHERE id = $3`, StatusActive, now, id)
		if err != nil {
			return apperr.Unavailable("tournament: activate", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// TransitionToEnded flips status active -> ended under a row lock.
func (r *Repository) TransitionToEnded(ctx context.Context, id string, now time.Time) (bool, error) {
	var applied bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM tournaments WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if err != nil {
			if err == pgx.ErrNoRows {
				return apperr.NotFound("tournament not found")
			}
			return apperr.Unavailable("tournament: lock row", err)
		}
		if Status(status) != StatusActive {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE tournaments SET status = $1, ended_at = $2 WHERE id = $3`, StatusEnded, now, id)
		if err != nil {
			return apperr.Unavailable("tournament: end", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// Leaderboard returns ranked rows ordered by best_score DESC,
// last_attempt_at ASC (earlier attempt wins ties), per spec §4.6.
func (r *Repository) Leaderboard(ctx context.Context, tournamentID string, limit, offset int) ([]LeaderboardRow, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tournament_leaderboard WHERE tournament_id = $1`, tournamentID).Scan(&total); err != nil {
		return nil, 0, apperr.Unavailable("tournament: count leaderboard", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT user_id, nickname, best_score, attempts, last_attempt_at
		FROM tournament_leaderboard
		WHERE tournament_id = $1
		ORDER BY best_score DESC, last_attempt_at ASC
		LIMIT $2 OFFSET $3`, tournamentID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Unavailable("tournament: query leaderboard", err)
	}
	defer rows.Close()

	var out []LeaderboardRow
	rank := offset + 1
	for rows.Next() {
		var row LeaderboardRow
		var nickname *string
		if err := rows.Scan(&row.UserID, &nickname, &row.BestScore, &row.Attempts, &row.LastAttemptAt); err != nil {
			return nil, 0, apperr.Unavailable("tournament: scan leaderboard row", err)
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

// UserRank returns the rank of userID in tournamentID, or (0, false) if
// the user has no leaderboard row.
func (r *Repository) UserRank(ctx context.Context, tournamentID, userID string) (int, bool, error) {
	var rank int
	err := r.pool.QueryRow(ctx, `
		SELECT rank FROM (
			SELECT user_id, RANK() OVER (ORDER BY best_score DESC, last_attempt_at ASC) AS rank
			FROM tournament_leaderboard
			WHERE tournament_id = $1
		) ranked
		WHERE user_id = $2`, tournamentID, userID).Scan(&rank)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, apperr.Unavailable("tournament: user rank", err)
	}
	return rank, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
