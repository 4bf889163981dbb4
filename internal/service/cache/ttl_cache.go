package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type item[V any] struct {
	val     V
	expires time.Time
}

func (it item[V]) live(now time.Time) bool {
	return it.expires.IsZero() || now.Before(it.expires)
}

// TTLCache memoises upstream lookups per key for a fixed TTL. Concurrent
// misses on the same key share one load.
type TTLCache[V any] struct {
	mu    sync.RWMutex
	items map[string]item[V]
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group
}

// NewTTLCache returns a cache whose entries never expire when ttl <= 0.
func NewTTLCache[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{items: make(map[string]item[V]), ttl: ttl, now: time.Now}
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if ok && it.live(c.now()) {
		return it.val, true
	}
	var zero V
	return zero, false
}

func (c *TTLCache[V]) Set(key string, v V) {
	it := item[V]{val: v}
	if c.ttl > 0 {
		it.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
}

// GetOrLoad returns the cached value or the result of load. Failed loads
// are not cached.
func (c *TTLCache[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return v, err
		}
		c.Set(key, v)
		return v, nil
	})
	v, _ := res.(V)
	return v, err
}
