package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// sweepEvery is the number of writes between two sweeps of expired entries
const sweepEvery = 100

// Cache stores values of type V with an expiration time.
type Cache[V any] struct {
	items           sync.Map
	writes          atomic.Uint32
	defaultDuration time.Duration
	now             func() time.Time
}

type item[V any] struct {
	data    V
	expires int64
}

// New creates a cache whose entries live for defaultDuration unless Set says
// otherwise. Expired entries are swept every few writes.
func New[V any](defaultDuration time.Duration) *Cache[V] {
	if defaultDuration <= 0 {
		defaultDuration = 10 * time.Minute
	}

	return &Cache[V]{
		defaultDuration: defaultDuration,
		now:             time.Now,
	}
}

// WithClock replaces the time source, for tests
func (c *Cache[V]) WithClock(now func() time.Time) *Cache[V] {
	c.now = now
	return c
}

// Set stores value under key. A zero duration uses the default; a negative
// one keeps the value forever.
func (c *Cache[V]) Set(key string, value V, duration time.Duration) {
	var expires int64

	if duration == 0 {
		duration = c.defaultDuration
	}

	if duration > 0 {
		expires = c.now().Add(duration).UnixNano()
	}

	c.items.Store(key, item[V]{
		data:    value,
		expires: expires,
	})

	if c.writes.Add(1) >= sweepEvery {
		c.DeleteExpired()
		c.writes.Store(0)
	}
}

// Get returns the value for key if present and not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	obj, exists := c.items.Load(key)
	if !exists {
		return zero, false
	}

	it := obj.(item[V])

	if it.expires > 0 && c.now().UnixNano() > it.expires {
		c.items.Delete(key)
		return zero, false
	}

	return it.data, true
}

func (c *Cache[V]) DeleteExpired() {
	now := c.now().UnixNano()

	c.items.Range(func(key, value any) bool {
		it := value.(item[V])
		if it.expires > 0 && now > it.expires {
			c.items.Delete(key)
		}
		return true
	})
}

// Delete deletes the key and its value from the cache.
func (c *Cache[V]) Delete(key string) {
	c.items.Delete(key)
}

// Len counts the entries, expired ones included until they are swept
func (c *Cache[V]) Len() int {
	n := 0
	c.items.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
