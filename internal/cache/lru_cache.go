package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// lruEntry wraps the cached data with its expiry
type lruEntry[V any] struct {
	Data      V
	ExpiresAt time.Time
}

// expiringLRU is a size-bounded LRU whose entries also expire after ttl.
type expiringLRU[V any] struct {
	lru    *lru.Cache[string, *lruEntry[V]]
	ttl    time.Duration
	clock  clock
	mu     sync.Mutex
	hits   uint64
	misses uint64
}

func newExpiringLRU[V any](size int, ttl time.Duration) (*expiringLRU[V], error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid LRU size %d", size)
	}
	l, err := lru.New[string, *lruEntry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache: %w", err)
	}
	return &expiringLRU[V]{lru: l, ttl: ttl, clock: systemClock{}}, nil
}

func (c *expiringLRU[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return zero, false
	}
	if c.clock.Now().After(entry.ExpiresAt) {
		c.lru.Remove(key)
		c.misses++
		return zero, false
	}
	c.hits++
	return entry.Data, true
}

func (c *expiringLRU[V]) add(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, &lruEntry[V]{Data: v, ExpiresAt: c.clock.Now().Add(c.ttl)})
}

func (c *expiringLRU[V]) remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

func (c *expiringLRU[V]) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *expiringLRU[V]) stats() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]uint64{
		"hits":   c.hits,
		"misses": c.misses,
		"size":   uint64(c.lru.Len()),
	}
}
