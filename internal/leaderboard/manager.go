package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flappyjet/telemetry-server/internal/cache"
)

type Manager struct {
	repo  *Repository
	cache cache.QueryCache
}

func NewManager(repo *Repository, qc cache.QueryCache) *Manager {
	return &Manager{repo: repo, cache: qc}
}

// Top serves the cached top-K global leaderboard, per spec §4.8's
// "global leaderboard top-K: 300s" cache entry.
func (m *Manager) Top(ctx context.Context, limit, offset int) (*GlobalLeaderboard, error) {
	key := fmt.Sprintf("leaderboard:global:%d:%d", limit, offset)
	if raw, ok := m.cache.Get(ctx, key); ok {
		var v GlobalLeaderboard
		if err := json.Unmarshal(raw, &v); err == nil {
			return &v, nil
		}
	}

	rows, total, err := m.repo.Top(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	v := &GlobalLeaderboard{Total: total, Rows: rows, CachedAt: time.Now().UTC()}

	if raw, err := json.Marshal(v); err == nil {
		m.cache.Set(ctx, key, raw, cache.TTLGlobalLeaderboardTopK)
	}
	return v, nil
}

func (m *Manager) UserRank(ctx context.Context, userID string) (int, bool, error) {
	return m.repo.UserRank(ctx, userID)
}
