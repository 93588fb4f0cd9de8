package aggregate

import (
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	value   V
	expires time.Time
}

// TTLCache is a memory-only map whose entries expire a fixed duration after
// they are stored. Expired entries are evicted by the read that finds them.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[K]cacheEntry[V]
}

func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]cacheEntry[V]),
	}
}

// SetClock replaces the time source (for testing).
func (c *TTLCache[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *TTLCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, expires: c.now().Add(c.ttl)}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(key)
}

func (c *TTLCache[K, V]) ContainsKey(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookup(key)
	return ok
}

// Len counts stored entries, including expired ones not yet evicted.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTLCache[K, V]) lookup(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}
