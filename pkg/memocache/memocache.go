package memocache

import (
	"sync"
	"time"
)

// Entry is a cached value together with its bookkeeping metadata.
type Entry[V any] struct {
	Value     V
	CreatedAt time.Time
	ExpiresAt time.Time
	HitCount  int64
	LastHitAt time.Time
}

func (e *Entry[V]) expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Stats is a point-in-time partition of the cache contents. Live and Expired
// always sum to Total. HitRate is sum(hits) / (sum(hits) + total), the ratio
// used by the monitoring dashboards.
type Stats struct {
	Total   int     `json:"total"`
	Live    int     `json:"live"`
	Expired int     `json:"expired"`
	HitRate float64 `json:"hitRate"`
}

// Cache is a mutex-guarded memoizing key/value store with per-entry TTLs and
// hit accounting. It is safe for concurrent use. An entry whose expiry has
// passed is treated as absent even before it has been swept.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*Entry[V]
}

// New returns an empty cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]*Entry[V])}
}

// Get returns the live value for key. On a hit it increments the entry's hit
// count and refreshes its last-hit time.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || entry.expired(now) {
		var zero V
		return zero, false
	}

	entry.HitCount++
	entry.LastHitAt = now
	return entry.Value, true
}

// Set inserts or replaces the entry for key, resetting its hit count. A ttl
// of zero or less produces an entry that is already expired.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &Entry[V]{
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// GetOrCompute returns the cached value when a live entry exists, otherwise it
// invokes compute, stores the result with the given ttl, and returns it.
// Concurrent callers racing on the same key may each invoke compute; compute
// must therefore be pure, and the last writer wins.
func (c *Cache[K, V]) GetOrCompute(key K, ttl time.Duration, compute func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	c.Set(key, value, ttl)
	return value, nil
}

// Invalidate removes the entry for key if present.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateExpired deletes every entry whose expiry has passed and returns
// the number removed. Intended to run as a periodic sweep.
func (c *Cache[K, V]) InvalidateExpired() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats summarises the cache contents at call time.
func (c *Cache[K, V]) Stats() Stats {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Total: len(c.entries)}
	var hits int64
	for _, entry := range c.entries {
		if entry.expired(now) {
			stats.Expired++
		} else {
			stats.Live++
		}
		hits += entry.HitCount
	}
	if denominator := float64(hits) + float64(stats.Total); denominator > 0 {
		stats.HitRate = float64(hits) / denominator
	}
	return stats
}

// Len reports the number of physically present entries, expired included.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
