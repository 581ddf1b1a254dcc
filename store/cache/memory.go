package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// MemoryCache is the L1 tier: an in-process LRU cache with per-entry TTL.
type MemoryCache struct {
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time
	mu         sync.Mutex

	entries map[string]*entry
	order   *list.List // front = most recently used
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	element   *list.Element
}

// NewMemoryCache creates an LRU cache holding at most capacity entries.
func NewMemoryCache(capacity int, defaultTTL time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	return &MemoryCache{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		now:        time.Now,
		entries:    make(map[string]*entry),
		order:      list.New(),
	}
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.removeEntry(e)
		return nil, false
	}

	c.order.MoveToFront(e.element)
	return e.value, true
}

// Set stores a value. A ttl of zero or less uses the default.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = c.now().Add(ttl)
		c.order.MoveToFront(e.element)
		return
	}

	for len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	e := &entry{
		key:       key,
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	e.element = c.order.PushFront(e)
	c.entries[key] = e
}

// Delete removes a key.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeEntry(e)
	}
}

// Invalidate removes entries matching the pattern.
// Supports * wildcard at the end (e.g., "graph:*").
func (c *MemoryCache) Invalidate(pattern string) int {
	if !strings.HasSuffix(pattern, "*") {
		c.mu.Lock()
		defer c.mu.Unlock()
		if e, ok := c.entries[pattern]; ok {
			c.removeEntry(e)
			return 1
		}
		return 0
	}

	prefix := strings.TrimSuffix(pattern, "*")
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeEntry(e)
			count++
		}
	}
	return count
}

// Size returns the number of entries in the cache.
func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order.Init()
}

// evictOldest removes the least recently used entry. Caller holds mu.
func (c *MemoryCache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.removeEntry(oldest.Value.(*entry))
}

// removeEntry removes an entry. Caller holds mu.
func (c *MemoryCache) removeEntry(e *entry) {
	c.order.Remove(e.element)
	delete(c.entries, e.key)
}
