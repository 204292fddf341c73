package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flappyjet/telemetry-server/internal/apperr"
)

// statementTimeout bounds every analytics query at the store level,
// independent of the 8s client-facing timeout enforced by the HTTP
// server, per the dashboard's query-timeout constraint.
const statementTimeout = 10 * time.Second

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, statementTimeout)
}

func (r *Repository) Overview(ctx context.Context) (*Overview, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var o Overview
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM leaderboard_global),
			(SELECT count(DISTINCT user_id) FROM events WHERE received_at >= date_trunc('day', now())),
			(SELECT count(*) FROM events WHERE received_at >= date_trunc('day', now())),
			(SELECT COALESCE(SUM((payload->>'price_usd')::float8), 0) FROM events
				WHERE event_type = 'purchase_completed' AND received_at >= date_trunc('day', now()))
	`).Scan(&o.TotalUsers, &o.ActiveUsersToday, &o.EventsToday, &o.RevenueToday)
	if err != nil {
		return nil, apperr.Unavailable("dashboard: overview", err)
	}
	return &o, nil
}

func (r *Repository) DAUTrend(ctx context.Context, days int) ([]DAUPoint, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('day', received_at) AS day, count(DISTINCT user_id)
		FROM events
		WHERE received_at >= $1
		GROUP BY day
		ORDER BY day`, since)
	if err != nil {
		return nil, apperr.Unavailable("dashboard: dau trend", err)
	}
	defer rows.Close()

	var out []DAUPoint
	for rows.Next() {
		var p DAUPoint
		if err := rows.Scan(&p.Date, &p.DAU); err != nil {
			return nil, apperr.Unavailable("dashboard: scan dau point", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LevelPerformance aggregates level_completed/level_failed events for a
// single level (the "zone" query parameter maps onto the "level" payload
// field — no event schema carries a separate zone dimension). Attempts is
// every outcome (completed or failed); completions and average duration
// come from level_completed, the only one of the two that records
// duration_seconds.
func (r *Repository) LevelPerformance(ctx context.Context, zone int) ([]LevelStat, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	since := time.Now().UTC().AddDate(0, 0, -30)
	rows, err := r.pool.Query(ctx, `
		SELECT
			(payload->>'level')::int AS level,
			count(*) AS attempts,
			count(*) FILTER (WHERE event_type = 'level_completed') AS completions,
			AVG((payload->>'duration_seconds')::float8) FILTER (WHERE event_type = 'level_completed') AS avg_duration
		FROM events
		WHERE event_type IN ('level_completed', 'level_failed')
			AND (payload->>'level')::int = $1
			AND received_at >= $2
		GROUP BY level
		ORDER BY level`, zone, since)
	if err != nil {
		return nil, apperr.Unavailable("dashboard: level performance", err)
	}
	defer rows.Close()

	var out []LevelStat
	for rows.Next() {
		var s LevelStat
		var avgDuration *float64
		if err := rows.Scan(&s.Level, &s.Attempts, &s.Completions, &avgDuration); err != nil {
			return nil, apperr.Unavailable("dashboard: scan level stat", err)
		}
		s.AvgDuration = deref(avgDuration)
		if s.Attempts > 0 {
			s.CompletionRate = float64(s.Completions) / float64(s.Attempts)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Retention computes D1/D3/D7/D14/D30 return rates for install cohorts
// over the last 30 days, bounded to avoid a full event-log scan.
func (r *Repository) Retention(ctx context.Context) ([]RetentionCohort, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	since := time.Now().UTC().AddDate(0, 0, -30)
	rows, err := r.pool.Query(ctx, `
		WITH installs AS (
			SELECT user_id, date_trunc('day', MIN(received_at)) AS cohort_date
			FROM events
			WHERE event_type IN ('app_installed', 'user_installed') AND received_at >= $1
			GROUP BY user_id
		),
		activity AS (
			SELECT user_id, date_trunc('day', received_at) AS active_date
			FROM events
			WHERE received_at >= $1
			GROUP BY user_id, active_date
		)
		SELECT
			i.cohort_date,
			count(DISTINCT i.user_id) AS new_users,
			count(DISTINCT a1.user_id)::float8 / NULLIF(count(DISTINCT i.user_id), 0) AS d1,
			count(DISTINCT a3.user_id)::float8 / NULLIF(count(DISTINCT i.user_id), 0) AS d3,
			count(DISTINCT a7.user_id)::float8 / NULLIF(count(DISTINCT i.user_id), 0) AS d7,
			count(DISTINCT a14.user_id)::float8 / NULLIF(count(DISTINCT i.user_id), 0) AS d14,
			count(DISTINCT a30.user_id)::float8 / NULLIF(count(DISTINCT i.user_id), 0) AS d30
		FROM installs i
		LEFT JOIN activity a1 ON a1.user_id = i.user_id AND a1.active_date = i.cohort_date + INTERVAL '1 day'
		LEFT JOIN activity a3 ON a3.user_id = i.user_id AND a3.active_date = i.cohort_date + INTERVAL '3 day'
		LEFT JOIN activity a7 ON a7.user_id = i.user_id AND a7.active_date = i.cohort_date + INTERVAL '7 day'
		LEFT JOIN activity a14 ON a14.user_id = i.user_id AND a14.active_date = i.cohort_date + INTERVAL '14 day'
		LEFT JOIN activity a30 ON a30.user_id = i.user_id AND a30.active_date = i.cohort_date + INTERVAL '30 day'
		GROUP BY i.cohort_date
		ORDER BY i.cohort_date`, since)
	if err != nil {
		return nil, apperr.Unavailable("dashboard: retention", err)
	}
	defer rows.Close()

	var out []RetentionCohort
	for rows.Next() {
		var c RetentionCohort
		var d1, d3, d7, d14, d30 *float64
		if err := rows.Scan(&c.CohortDate, &c.NewUsers, &d1, &d3, &d7, &d14, &d30); err != nil {
			return nil, apperr.Unavailable("dashboard: scan cohort", err)
		}
		c.D1, c.D3, c.D7, c.D14, c.D30 = deref(d1), deref(d3), deref(d7), deref(d14), deref(d30)
		out = append(out, c)
	}
	return out, rows.Err()
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func (r *Repository) TopEvents(ctx context.Context, limit int) ([]EventCount, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	since := time.Now().UTC().AddDate(0, 0, -7)
	rows, err := r.pool.Query(ctx, `
		SELECT event_type, count(*) FROM events
		WHERE received_at >= $1
		GROUP BY event_type
		ORDER BY count(*) DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, apperr.Unavailable("dashboard: top events", err)
	}
	defer rows.Close()

	var out []EventCount
	for rows.Next() {
		var e EventCount
		if err := rows.Scan(&e.EventType, &e.Count); err != nil {
			return nil, apperr.Unavailable("dashboard: scan top event", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LevelEnds lists every level_completed/level_failed row for one level on
// one UTC day, the per-level outcome events (no event schema carries both
// a level and a cause_of_death; only game_ended has cause_of_death, and it
// has no level field).
func (r *Repository) LevelEnds(ctx context.Context, level int, date time.Time) ([]LevelEndRow, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	start := date.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	rows, err := r.pool.Query(ctx, `
		SELECT user_id,
			CASE WHEN event_type = 'level_completed' THEN 'completed' ELSE 'failed' END AS outcome,
			COALESCE((payload->>'duration_seconds')::bigint, 0),
			1
		FROM events
		WHERE event_type IN ('level_completed', 'level_failed')
			AND (payload->>'level')::int = $1
			AND received_at >= $2 AND received_at < $3
		ORDER BY received_at`, level, start, end)
	if err != nil {
		return nil, apperr.Unavailable("dashboard: level ends", err)
	}
	defer rows.Close()

	var out []LevelEndRow
	for rows.Next() {
		var row LevelEndRow
		if err := rows.Scan(&row.UserID, &row.Outcome, &row.DurationSeconds, &row.Attempts); err != nil {
			return nil, apperr.Unavailable("dashboard: scan level end", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repository) IAPFunnel(ctx context.Context, days int) ([]IAPFunnelPoint, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := r.pool.Query(ctx, `
		SELECT
			date_trunc('day', received_at) AS day,
			count(*) FILTER (WHERE event_type = 'purchase_initiated') AS initiated,
			count(*) FILTER (WHERE event_type = 'purchase_completed') AS completed
		FROM events
		WHERE event_type IN ('purchase_initiated', 'purchase_completed')
			AND received_at >= $1
		GROUP BY day
		ORDER BY day`, since)
	if err != nil {
		return nil, apperr.Unavailable("dashboard: iap funnel", err)
	}
	defer rows.Close()

	var out []IAPFunnelPoint
	for rows.Next() {
		var p IAPFunnelPoint
		if err := rows.Scan(&p.Date, &p.Initiated, &p.Completed); err != nil {
			return nil, apperr.Unavailable("dashboard: scan iap point", err)
		}
		if p.Initiated > 0 {
			p.Conversion = float64(p.Completed) / float64(p.Initiated)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) CurrencySinks(ctx context.Context, days int) ([]CurrencySinkRow, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := r.pool.Query(ctx, `
		SELECT
			payload->>'currency' AS currency,
			payload->>'source' AS source,
			COALESCE(SUM(CASE WHEN event_type = 'currency_earned' THEN (payload->>'amount')::bigint ELSE 0 END), 0) AS earned,
			COALESCE(SUM(CASE WHEN event_type = 'currency_spent' THEN (payload->>'amount')::bigint ELSE 0 END), 0) AS spent
		FROM events
		WHERE event_type IN ('currency_earned', 'currency_spent')
			AND received_at >= $1
		GROUP BY currency, source
		ORDER BY earned DESC`, since)
	if err != nil {
		return nil, apperr.Unavailable("dashboard: currency sinks", err)
	}
	defer rows.Close()

	var out []CurrencySinkRow
	for rows.Next() {
		var row CurrencySinkRow
		if err := rows.Scan(&row.Currency, &row.Source, &row.Earned, &row.Spent); err != nil {
			return nil, apperr.Unavailable("dashboard: scan currency sink", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
