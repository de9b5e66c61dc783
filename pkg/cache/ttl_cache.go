// Package cache provides a generic in-memory TTL cache.
//
// Entries expire after a fixed TTL and are physically removed by a periodic
// sweep. Reads never return stale entries: Get checks the deadline even if
// the sweeper has not run yet. An optional OnExpire hook fires when the
// sweeper removes an entry; the typing registry uses it to emit
// user_stopped_typing for clients that died mid-type.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe cache whose entries expire after a fixed TTL.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration

	// onExpire runs outside the lock, once per swept entry.
	onExpire func(key K, value V)

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New creates a TTLCache and starts its sweep goroutine. cleanupInterval
// should be shorter than ttl, otherwise the map grows needlessly between
// sweeps.
func New[K comparable, V any](ttl, cleanupInterval time.Duration) *TTLCache[K, V] {
	c := &TTLCache[K, V]{
		entries:     make(map[K]entry[V]),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.evictExpired()
			case <-c.stopCleanup:
				return
			}
		}
	}()

	return c
}

// OnExpire registers a hook invoked for every entry the sweeper removes.
// Must be called before the cache is shared between goroutines.
func (c *TTLCache[K, V]) OnExpire(fn func(key K, value V)) {
	c.onExpire = fn
}

// Get returns (value, true) if key exists and has not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set writes a value, resetting its TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes a key. The OnExpire hook does not fire for explicit deletes.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// DeleteFunc removes every key matching the predicate.
func (c *TTLCache[K, V]) DeleteFunc(predicate func(key K) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if predicate(key) {
			delete(c.entries, key)
		}
	}
}

// Keys returns the unexpired keys.
func (c *TTLCache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	keys := make([]K, 0, len(c.entries))
	for key, e := range c.entries {
		if now.Before(e.expiresAt) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Len returns the number of entries, expired ones included.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Close stops the sweep goroutine. Safe to call more than once.
func (c *TTLCache[K, V]) Close() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

// evictExpired removes expired entries and fires OnExpire for each, outside
// the lock so hooks may call back into the cache.
func (c *TTLCache[K, V]) evictExpired() {
	now := time.Now()

	c.mu.Lock()
	var expired []struct {
		key   K
		value V
	}
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			expired = append(expired, struct {
				key   K
				value V
			}{key, e.value})
			delete(c.entries, key)
		}
	}
	hook := c.onExpire
	c.mu.Unlock()

	if hook == nil {
		return
	}
	for _, e := range expired {
		hook(e.key, e.value)
	}
}
