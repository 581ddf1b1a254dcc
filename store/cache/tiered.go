package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// TieredCache implements a three-tier read path:
//   - L1: in-memory LRU (always on)
//   - L2: Redis (optional, shared between instances)
//   - L3: the Fetcher, usually the database
//
// Concurrent misses for the same key share a single L3 fetch.
type TieredCache struct {
	l1    *MemoryCache
	l2    L2
	l1TTL time.Duration
	l2TTL time.Duration
	group singleflight.Group

	l1Hits  atomic.Int64
	l2Hits  atomic.Int64
	fetches atomic.Int64
}

// Fetcher loads a value from the source of truth (L3).
type Fetcher func(ctx context.Context, key string) ([]byte, error)

// TieredCacheConfig holds the configuration for the tiered cache.
type TieredCacheConfig struct {
	L1MaxItems int           // Max items in L1 memory cache
	L1TTL      time.Duration // TTL for L1 cache entries
	L2TTL      time.Duration // TTL for L2 Redis cache entries
}

// DefaultTieredConfig returns the default tiered cache configuration.
func DefaultTieredConfig() *TieredCacheConfig {
	return &TieredCacheConfig{
		L1MaxItems: 1000,
		L1TTL:      10 * time.Minute,
		L2TTL:      30 * time.Minute,
	}
}

// NewTieredCache creates a tiered cache. l2 may be nil.
func NewTieredCache(config *TieredCacheConfig, l2 L2) *TieredCache {
	if config == nil {
		config = DefaultTieredConfig()
	}
	return &TieredCache{
		l1:    NewMemoryCache(config.L1MaxItems, config.L1TTL),
		l2:    l2,
		l1TTL: config.L1TTL,
		l2TTL: config.L2TTL,
	}
}

// Get returns the value for key, checking L1, then L2, then fetch.
// Values found lower down are promoted to the faster tiers.
func (t *TieredCache) Get(ctx context.Context, key string, fetch Fetcher) ([]byte, error) {
	if value, ok := t.l1.Get(key); ok {
		t.l1Hits.Add(1)
		return value, nil
	}

	if t.l2 != nil {
		if value, ok := t.l2.Get(ctx, key); ok {
			t.l2Hits.Add(1)
			t.l1.Set(key, value, t.l1TTL)
			return value, nil
		}
	}

	if fetch == nil {
		return nil, errors.Errorf("cache miss for %q", key)
	}

	v, err, _ := t.group.Do(key, func() (any, error) {
		t.fetches.Add(1)
		value, err := fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		t.Set(ctx, key, value)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Set stores a value in both tiers.
func (t *TieredCache) Set(ctx context.Context, key string, value []byte) {
	t.l1.Set(key, value, t.l1TTL)
	if t.l2 != nil {
		t.l2.SetWithTTL(ctx, key, value, t.l2TTL)
	}
}

// Delete removes a value from both tiers.
func (t *TieredCache) Delete(ctx context.Context, key string) {
	t.l1.Delete(key)
	if t.l2 != nil {
		t.l2.Delete(ctx, key)
	}
}

// Stats reports cache activity.
type Stats struct {
	L1Size    int   `json:"l1_size"`
	L2Enabled bool  `json:"l2_enabled"`
	L1Hits    int64 `json:"l1_hits"`
	L2Hits    int64 `json:"l2_hits"`
	Fetches   int64 `json:"fetches"`
}

// Stats returns cache statistics.
func (t *TieredCache) Stats() Stats {
	return Stats{
		L1Size:    t.l1.Size(),
		L2Enabled: t.l2 != nil,
		L1Hits:    t.l1Hits.Load(),
		L2Hits:    t.l2Hits.Load(),
		Fetches:   t.fetches.Load(),
	}
}

// Close releases the L2 connection.
func (t *TieredCache) Close() error {
	t.l1.Clear()
	if t.l2 != nil {
		return t.l2.Close()
	}
	return nil
}
