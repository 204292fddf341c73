// Package cache implements the read-through query cache (spec §4.8) and
// the Job Queue's Redis backing store's connection lifecycle, as a
// two-backend facade: a real Redis-backed implementation and a no-op
// fallback, matching the Design Notes' "graceful degradation of the
// cache" re-architecture. A failed cache is never allowed to break
// correctness — only to make reads slower.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// QueryCache is the facade every read path depends on. Values are stored
// already-serialized; Get/Set never (de)serialize on the caller's behalf.
type QueryCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Invalidate(ctx context.Context, prefix string)
	Healthy() bool
}

// Default TTLs per spec §4.8, overridable by callers that pass an explicit
// ttl to Set.
const (
	TTLOverviewAndTrends        = 300 * time.Second
	TTLGlobalLeaderboardTopK    = 300 * time.Second
	TTLTournamentLeaderboardTop = 240 * time.Second
	TTLActivityFeed             = 30 * time.Second
)

// NewClient connects to CACHE_URL. A connection or ping failure is not
// fatal: the caller should fall back to NewNoop and keep serving reads
// directly from the database, per spec §4.3/§4.8.
func NewClient(ctx context.Context, url string, logger *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
