// Package cache provides a small in-process TTL cache. It is injected into
// the display read path rather than held as module-level state, so the TTL is
// testable and requests share no hidden coupling.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is a TTL-bounded key/value store. Expired entries are evicted lazily
// on access and in bulk whenever the entry count crosses maxEntries.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// Option configures a Cache
type Option func(*Cache)

// WithClock overrides the time source, used by tests to step through the TTL
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMaxEntries caps the number of live entries before a sweep runs
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// New creates a Cache with the given TTL
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: 1024,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key, or false if absent or expired
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have raced the expiry.
		if cur, still := c.entries[key]; still && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for the cache's TTL
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		now := c.now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Delete removes a key
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, expired or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
