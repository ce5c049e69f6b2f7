// Package memo holds time boxed helpers guarding expensive or noisy calls:
// a TTL memoization cache and debounce/throttle wrappers.
package memo

import (
	"sync"
	"time"
)

// DefaultTTL is the time to live of entries memoized without an explicit ttl
const DefaultTTL = 5 * time.Second

type entry struct {
	value      any
	computedAt time.Time
	ttl        time.Duration
}

func (e *entry) valid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.computedAt) < ttl
}

// New returns a new Cache instance
func New(opts ...Option) *Cache {
	o := newOptions(opts)
	return &Cache{
		entries: make(map[string]*entry),
		ttl:     o.ttl,
		clock:   o.clock,
		m:       &sync.Mutex{},
	}
}

// Cache memoizes computations under string keys for a bounded time.
// Expired entries are only removed by SweepExpired or Clear, there is no
// background work.
type Cache struct {
	entries map[string]*entry
	ttl     time.Duration
	clock   Clock
	m       *sync.Mutex
}

// Memoize returns the value cached under key when it was computed less than
// ttl ago, otherwise it calls compute and caches its result.
// A ttl <= 0 uses the cache default.
// compute runs without the cache lock held, concurrent misses on the same key
// may each call it.
func (c *Cache) Memoize(key string, compute func() any, ttl time.Duration) any {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.m.Lock()
	e, ok := c.entries[key]
	if ok && e.valid(c.clock.Now(), ttl) {
		c.m.Unlock()
		return e.value
	}
	c.m.Unlock()

	v := compute()

	c.m.Lock()
	c.entries[key] = &entry{
		value:      v,
		computedAt: c.clock.Now(),
		ttl:        ttl,
	}
	c.m.Unlock()

	return v
}

// Get is a typed Memoize. A cached value of another type is recomputed.
// For an interface T a cached nil is returned as the zero value.
func Get[T any](c *Cache, key string, compute func() T, ttl time.Duration) T {
	var zero T
	v := c.Memoize(key, func() any { return compute() }, ttl)
	if t, ok := v.(T); ok {
		return t
	}
	if v == nil && any(zero) == nil {
		return zero
	}
	c.Delete(key)
	if t, ok := c.Memoize(key, func() any { return compute() }, ttl).(T); ok {
		return t
	}
	return zero
}

// Delete removes a single entry
func (c *Cache) Delete(key string) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries
func (c *Cache) Clear() {
	c.m.Lock()
	defer c.m.Unlock()
	c.entries = make(map[string]*entry)
}

// SweepExpired removes entries older than their ttl and returns how many
// were removed
func (c *Cache) SweepExpired() int {
	c.m.Lock()
	defer c.m.Unlock()

	now := c.clock.Now()
	removed := 0
	for k, e := range c.entries {
		if !e.valid(now, e.ttl) {
			delete(c.entries, k)
			removed++
		}
	}

	return removed
}

// Len returns the number of entries, expired or not
func (c *Cache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.entries)
}
