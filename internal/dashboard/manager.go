package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/apperr"
	"github.com/flappyjet/telemetry-server/internal/cache"
	"github.com/flappyjet/telemetry-server/internal/queue"
	"github.com/flappyjet/telemetry-server/internal/store"
)

// HealthChecker abstracts the store/cache health snapshot the health
// endpoint reports, avoiding a direct dependency on *pgxpool.Pool here.
type HealthChecker interface {
	Saturated() bool
}

type Manager struct {
	repo   *Repository
	cache  cache.QueryCache
	queue  *queue.Queue
	store  *store.Store
	logger *zap.Logger
}

func NewManager(repo *Repository, qc cache.QueryCache, q *queue.Queue, st *store.Store, logger *zap.Logger) *Manager {
	return &Manager{repo: repo, cache: qc, queue: q, store: st, logger: logger}
}

// readThrough computes a cache key, serves it from cache on hit, or calls
// fn and populates the cache on miss, per spec §4.9's three-step read
// contract.
func readThrough[T any](ctx context.Context, m *Manager, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if raw, ok := m.cache.Get(ctx, key); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	v, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	if raw, err := json.Marshal(v); err == nil {
		m.cache.Set(ctx, key, raw, ttl)
	}
	return v, nil
}

func (m *Manager) Overview(ctx context.Context) (*Overview, error) {
	return readThrough(ctx, m, "dashboard:overview", cache.TTLOverviewAndTrends, func(ctx context.Context) (*Overview, error) {
		o, err := m.repo.Overview(ctx)
		if err != nil {
			return nil, err
		}
		o.LastUpdated = time.Now().UTC()
		return o, nil
	})
}

func (m *Manager) DAUTrend(ctx context.Context, days int) (*DAUTrend, error) {
	if days <= 0 || days > 90 {
		return nil, apperr.Validation("days", "must be between 1 and 90")
	}
	key := fmt.Sprintf("dashboard:dau-trend:%d", days)
	return readThrough(ctx, m, key, cache.TTLOverviewAndTrends, func(ctx context.Context) (*DAUTrend, error) {
		points, err := m.repo.DAUTrend(ctx, days)
		if err != nil {
			return nil, err
		}
		return &DAUTrend{Days: days, Points: points, LastUpdated: time.Now().UTC()}, nil
	})
}

func (m *Manager) LevelPerformance(ctx context.Context, zone int) (*LevelPerformance, error) {
	if zone <= 0 {
		return nil, apperr.Validation("zone", "must be positive")
	}
	key := fmt.Sprintf("dashboard:level-performance:%d", zone)
	return readThrough(ctx, m, key, cache.TTLOverviewAndTrends, func(ctx context.Context) (*LevelPerformance, error) {
		levels, err := m.repo.LevelPerformance(ctx, zone)
		if err != nil {
			return nil, err
		}
		return &LevelPerformance{Zone: zone, Levels: levels, LastUpdated: time.Now().UTC()}, nil
	})
}

func (m *Manager) Retention(ctx context.Context) (*Retention, error) {
	return readThrough(ctx, m, "dashboard:retention", cache.TTLOverviewAndTrends, func(ctx context.Context) (*Retention, error) {
		cohorts, err := m.repo.Retention(ctx)
		if err != nil {
			return nil, err
		}
		return &Retention{Cohorts: cohorts, LastUpdated: time.Now().UTC()}, nil
	})
}

func (m *Manager) TopEvents(ctx context.Context, limit int) (*TopEvents, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	key := fmt.Sprintf("dashboard:top-events:%d", limit)
	return readThrough(ctx, m, key, cache.TTLOverviewAndTrends, func(ctx context.Context) (*TopEvents, error) {
		events, err := m.repo.TopEvents(ctx, limit)
		if err != nil {
			return nil, err
		}
		return &TopEvents{Events: events, LastUpdated: time.Now().UTC()}, nil
	})
}

func (m *Manager) LevelEnds(ctx context.Context, level int, date time.Time) (*LevelEnds, error) {
	if level <= 0 {
		return nil, apperr.Validation("level", "must be positive")
	}
	key := fmt.Sprintf("dashboard:level-ends:%d:%s", level, date.Format("2006-01-02"))
	return readThrough(ctx, m, key, cache.TTLOverviewAndTrends, func(ctx context.Context) (*LevelEnds, error) {
		rows, err := m.repo.LevelEnds(ctx, level, date)
		if err != nil {
			return nil, err
		}
		return &LevelEnds{Level: level, Date: date.Format("2006-01-02"), Rows: rows, LastUpdated: time.Now().UTC()}, nil
	})
}

func (m *Manager) IAPFunnel(ctx context.Context, days int) (*IAPFunnel, error) {
	if days <= 0 || days > 90 {
		return nil, apperr.Validation("days", "must be between 1 and 90")
	}
	key := fmt.Sprintf("dashboard:iap-funnel:%d", days)
	return readThrough(ctx, m, key, cache.TTLOverviewAndTrends, func(ctx context.Context) (*IAPFunnel, error) {
		points, err := m.repo.IAPFunnel(ctx, days)
		if err != nil {
			return nil, err
		}
		return &IAPFunnel{Days: days, Points: points, LastUpdated: time.Now().UTC()}, nil
	})
}

func (m *Manager) CurrencySinks(ctx context.Context, days int) (*CurrencySinks, error) {
	if days <= 0 || days > 90 {
		return nil, apperr.Validation("days", "must be between 1 and 90")
	}
	key := fmt.Sprintf("dashboard:currency-sinks:%d", days)
	return readThrough(ctx, m, key, cache.TTLOverviewAndTrends, func(ctx context.Context) (*CurrencySinks, error) {
		rows, err := m.repo.CurrencySinks(ctx, days)
		if err != nil {
			return nil, err
		}
		return &CurrencySinks{Days: days, Rows: rows, LastUpdated: time.Now().UTC()}, nil
	})
}

// RefreshCache invalidates every dashboard cache entry, forcing the next
// read of each endpoint to recompute from the store.
func (m *Manager) RefreshCache(ctx context.Context) {
	m.cache.Invalidate(ctx, "dashboard:")
}

func (m *Manager) Health(ctx context.Context) *Health {
	h := &Health{
		Status:       "ok",
		DBHealthy:    !m.store.Saturated(),
		CacheHealthy: m.cache.Healthy(),
		QueueMode:    m.queue.Mode().String(),
		LastUpdated:  time.Now().UTC(),
	}
	if !h.DBHealthy {
		h.Status = "degraded"
	}
	return h
}
