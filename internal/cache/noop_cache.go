package cache

import (
	"context"
	"time"
)

// NoopCache is the fallback backend used when the cache is unreachable.
// Get always misses, Set is a no-op, and every read path must therefore
// work correctly against the database alone (spec §4.8).
type NoopCache struct{}

func NewNoop() *NoopCache { return &NoopCache{} }

func (NoopCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (NoopCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {}
func (NoopCache) Invalidate(ctx context.Context, prefix string)                        {}
func (NoopCache) Healthy() bool                                                        { return false }
