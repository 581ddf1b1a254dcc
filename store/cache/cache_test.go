package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_LRU(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)
	c.Set("a", []byte("1"), 0)
	c.Set("b", []byte("2"), 0)

	// Touch a so b becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", []byte("3"), 0)

	_, ok = c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	assert.Equal(t, 2, c.Size())
}

func TestMemoryCache_TTL(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	clock := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Set("k", []byte("v"), time.Second)
	_, ok := c.Get("k")
	require.True(t, ok)

	clock = clock.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Size())
}

func TestMemoryCache_Invalidate(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	c.Set("graph:a", nil, 0)
	c.Set("graph:b", nil, 0)
	c.Set("other", nil, 0)

	assert.Equal(t, 2, c.Invalidate("graph:*"))
	assert.Equal(t, 1, c.Invalidate("other"))
	assert.Equal(t, 0, c.Invalidate("missing"))
	assert.Zero(t, c.Size())
}

// mapL2 is an in-memory stand-in for Redis.
type mapL2 struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool
}

func newMapL2() *mapL2 { return &mapL2{data: map[string][]byte{}} }

func (m *mapL2) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *mapL2) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *mapL2) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func (m *mapL2) Close() error {
	m.closed = true
	return nil
}

func TestTieredCache_ReadThrough(t *testing.T) {
	ctx := context.Background()
	l2 := newMapL2()
	tc := NewTieredCache(nil, l2)

	var calls atomic.Int32
	fetch := func(context.Context, string) ([]byte, error) {
		calls.Add(1)
		return []byte("graph"), nil
	}

	v, err := tc.Get(ctx, "graph:go-101", fetch)
	require.NoError(t, err)
	assert.Equal(t, []byte("graph"), v)

	_, ok := l2.Get(ctx, "graph:go-101")
	assert.True(t, ok, "fetched values are written to L2")

	_, err = tc.Get(ctx, "graph:go-101", fetch)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	// A fresh L1 finds the value in L2 without fetching.
	other := NewTieredCache(nil, l2)
	_, err = other.Get(ctx, "graph:go-101", fetch)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 1, other.Stats().L2Hits)

	tc.Delete(ctx, "graph:go-101")
	_, ok = l2.Get(ctx, "graph:go-101")
	assert.False(t, ok)

	require.NoError(t, tc.Close())
	assert.True(t, l2.closed)
}

func TestTieredCache_CoalescesFetches(t *testing.T) {
	tc := NewTieredCache(nil, nil)
	release := make(chan struct{})
	var calls atomic.Int32

	fetch := func(context.Context, string) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := tc.Get(context.Background(), "k", fetch)
			assert.NoError(t, err)
			assert.Equal(t, []byte("v"), v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	assert.False(t, tc.Stats().L2Enabled)
}

func TestTieredCache_FetchError(t *testing.T) {
	tc := NewTieredCache(nil, nil)
	boom := errors.New("db down")

	_, err := tc.Get(context.Background(), "k", func(context.Context, string) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, tc.Stats().L1Size, "errors are not cached")

	_, err = tc.Get(context.Background(), "k", nil)
	assert.Error(t, err)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 200 * time.Millisecond

	_, err := NewRedisCache(cfg)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
