package prize

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flappyjet/telemetry-server/internal/apperr"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertBatch inserts one prize row per entry inside a single transaction,
// relying on the unique (tournament_id, user_id) constraint and
// ON CONFLICT DO NOTHING for I4 (prize uniqueness) instead of a
// check-then-insert race.
func (r *Repository) InsertBatch(ctx context.Context, prizes []*Prize) (int, error) {
	inserted := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, p := range prizes {
			id, err := uuid.NewV4()
			if err != nil {
				return apperr.Fatal("prize: generate uuid", err)
			}
			p.ID = id.String()

			tag, err := tx.Exec(ctx, `
				INSERT INTO prizes (id, tournament_id, user_id, rank, coins, gems)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (tournament_id, user_id) DO NOTHING`,
				p.ID, p.TournamentID, p.UserID, p.Rank, p.Coins, p.Gems)
			if err != nil {
				return apperr.Unavailable("prize: insert", err)
			}
			if tag.RowsAffected() > 0 {
				inserted++
			}
		}
		return nil
	})
	return inserted, err
}

// CountForTournament reports how many prize rows already exist for a
// tournament, used to make distribution idempotent under concurrent
// invocation (spec P4: concurrent distributePrizes calls converge on the
// same final set).
func (r *Repository) CountForTournament(ctx context.Context, tournamentID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM prizes WHERE tournament_id = $1`, tournamentID).Scan(&count)
	if err != nil {
		return 0, apperr.Unavailable("prize: count", err)
	}
	return count, nil
}

func (r *Repository) ListPending(ctx context.Context, userID string) ([]*Prize, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tournament_id, user_id, rank, coins, gems, created_at, claimed_at
		FROM prizes
		WHERE user_id = $1 AND claimed_at IS NULL
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, apperr.Unavailable("prize: list pending", err)
	}
	defer rows.Close()
	return scanPrizes(rows)
}

func (r *Repository) ListClaimed(ctx context.Context, userID string) ([]*Prize, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tournament_id, user_id, rank, coins, gems, created_at, claimed_at
		FROM prizes
		WHERE user_id = $1 AND claimed_at IS NOT NULL
		ORDER BY claimed_at DESC`, userID)
	if err != nil {
		return nil, apperr.Unavailable("prize: list history", err)
	}
	defer rows.Close()
	return scanPrizes(rows)
}

func scanPrizes(rows pgx.Rows) ([]*Prize, error) {
	var out []*Prize
	for rows.Next() {
		var p Prize
		if err := rows.Scan(&p.ID, &p.TournamentID, &p.UserID, &p.Rank, &p.Coins, &p.Gems, &p.CreatedAt, &p.ClaimedAt); err != nil {
			return nil, apperr.Unavailable("prize: scan", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Claim performs the compare-and-swap update backing I5/P5: at most one of
// two concurrent claims on the same prize ID can set claimed_at, because
// the WHERE clause only matches while it is still NULL.
func (r *Repository) Claim(ctx context.Context, prizeID, userID string, now time.Time) (*Prize, string, error) {
	var p Prize
	row := r.pool.QueryRow(ctx, `
		UPDATE prizes SET claimed_at = $3
		WHERE id = $1 AND user_id = $2 AND claimed_at IS NULL
		RETURNING id, tournament_id, user_id, rank, coins, gems, created_at, claimed_at`,
		prizeID, userID, now)
	err := row.Scan(&p.ID, &p.TournamentID, &p.UserID, &p.Rank, &p.Coins, &p.Gems, &p.CreatedAt, &p.ClaimedAt)
	if err == nil {
		return &p, "", nil
	}
	if err != pgx.ErrNoRows {
		return nil, "", apperr.Unavailable("prize: claim", err)
	}

	// The update matched no row: disambiguate why, for the structured
	// claimed:false response spec §4.7 requires.
	existing, lookupErr := r.lookup(ctx, prizeID)
	if lookupErr != nil {
		return nil, "", lookupErr
	}
	if existing == nil {
		return nil, ReasonNotFound, nil
	}
	if existing.UserID != userID {
		return nil, ReasonNotOwner, nil
	}
	return nil, ReasonAlreadyClaimed, nil
}

func (r *Repository) lookup(ctx context.Context, prizeID string) (*Prize, error) {
	var p Prize
	row := r.pool.QueryRow(ctx, `
		SELECT id, tournament_id, user_id, rank, coins, gems, created_at, claimed_at
		FROM prizes WHERE id = $1`, prizeID)
	err := row.Scan(&p.ID, &p.TournamentID, &p.UserID, &p.Rank, &p.Coins, &p.Gems, &p.CreatedAt, &p.ClaimedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Unavailable("prize: lookup", err)
	}
	return &p, nil
}
