// cache.go implements the expiring caches used by DocProvider.

package flow

import (
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	value     V
	createdAt time.Time
}

// ttlCache maps keys to values that expire once strictly older than ttl.
// Expired entries are dropped when read and swept on Put.
type ttlCache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   func() time.Time
	entries map[string]cacheEntry[V]
}

func newTTLCache[V any](ttl time.Duration, clock func() time.Time) *ttlCache[V] {
	return &ttlCache[V]{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry[V]),
	}
}

func (c *ttlCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	now := c.clock()
	if !c.expired(entry, now) {
		return entry.value, true
	}

	c.mu.Lock()
	if current, ok := c.entries[key]; ok && c.expired(current, now) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return zero, false
}

func (c *ttlCache[V]) Put(key string, value V) {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, entry := range c.entries {
		if c.expired(entry, now) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry[V]{value: value, createdAt: now}
}

func (c *ttlCache[V]) expired(entry cacheEntry[V], now time.Time) bool {
	return now.Sub(entry.createdAt) > c.ttl
}

func (c *ttlCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
