// Package retention implements the scheduled cleanup of processed event
// rows, parameterized over an explicit (table, column) list rather than a
// single hardcoded table, resolving the ambiguity in the reference cron
// job's cleanup target.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Policy describes one table's retention rule: rows are eligible for
// deletion once thresholdColumn is non-null (has been processed) and
// ageColumn is older than retentionDays.
type Policy struct {
	Table           string
	AgeColumn       string
	ThresholdColumn string
	RetentionDays   int
}

type Job struct {
	pool     *pgxpool.Pool
	logger   *zap.Logger
	policies []Policy
	interval time.Duration
}

func NewJob(pool *pgxpool.Pool, logger *zap.Logger, interval time.Duration, policies ...Policy) *Job {
	return &Job{pool: pool, logger: logger, policies: policies, interval: interval}
}

// Run loops until ctx is cancelled, sweeping every configured policy once
// per tick. Deletion never touches rows where ThresholdColumn is still
// null, regardless of age (P6: unprocessed events are retained
// indefinitely).
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweepAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweepAll(ctx)
		}
	}
}

func (j *Job) sweepAll(ctx context.Context) {
	for _, p := range j.policies {
		if err := j.sweep(ctx, p); err != nil {
			j.logger.Error("retention: sweep failed", zap.String("table", p.Table), zap.Error(err))
		}
	}
}

func (j *Job) sweep(ctx context.Context, p Policy) error {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	threshold := time.Now().UTC().AddDate(0, 0, -p.RetentionDays)
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s IS NOT NULL AND %s < $1`, p.Table, p.ThresholdColumn, p.AgeColumn)
	tag, err := j.pool.Exec(sweepCtx, query, threshold)
	if err != nil {
		return err
	}
	if n := tag.RowsAffected(); n > 0 {
		j.logger.Info("retention: rows deleted", zap.String("table", p.Table), zap.Int64("count", n))
	}
	return nil
}
