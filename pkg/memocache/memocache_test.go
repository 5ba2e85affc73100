package memocache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetMissOnEmpty(t *testing.T) {
	cache := New[string, int]()

	_, ok := cache.Get("missing")
	assert.False(t, ok)
}

func TestCacheSetThenGet(t *testing.T) {
	cache := New[string, int]()
	cache.Set("answer", 42, time.Minute)

	value, ok := cache.Get("answer")
	require.True(t, ok)
	assert.Equal(t, 42, value)
}

func TestCacheZeroTTLIsImmediatelyExpired(t *testing.T) {
	cache := New[string, int]()
	cache.Set("ephemeral", 1, 0)

	_, ok := cache.Get("ephemeral")
	assert.False(t, ok, "ttl=0 entries must be treated as expired")

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 0, stats.Live)
}

func TestCacheGetOrComputeIdempotent(t *testing.T) {
	cache := New[string, string]()
	calls := 0
	compute := func() (string, error) {
		calls++
		return "computed", nil
	}

	first, err := cache.GetOrCompute("key", time.Minute, compute)
	require.NoError(t, err)
	second, err := cache.GetOrCompute("key", time.Minute, compute)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "second call must be served from cache")

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Total)
	// One hit (second call) over one hit plus one entry.
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestCacheGetOrComputeErrorNotStored(t *testing.T) {
	cache := New[string, string]()
	boom := errors.New("boom")

	_, err := cache.GetOrCompute("key", time.Minute, func() (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Len())
}

func TestCacheSetResetsHitCount(t *testing.T) {
	cache := New[string, int]()
	cache.Set("key", 1, time.Minute)
	_, _ = cache.Get("key")
	_, _ = cache.Get("key")
	cache.Set("key", 2, time.Minute)

	stats := cache.Stats()
	assert.Equal(t, 0.0, stats.HitRate, "replacing an entry resets its hit count")
}

func TestCacheInvalidate(t *testing.T) {
	cache := New[string, int]()
	cache.Set("key", 1, time.Minute)
	cache.Invalidate("key")

	_, ok := cache.Get("key")
	assert.False(t, ok)
}

func TestCacheInvalidateExpiredSweep(t *testing.T) {
	cache := New[string, int]()
	cache.Set("live", 1, time.Minute)
	cache.Set("dead-1", 2, 0)
	cache.Set("dead-2", 3, -time.Second)

	removed := cache.InvalidateExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, cache.Len())

	value, ok := cache.Get("live")
	require.True(t, ok)
	assert.Equal(t, 1, value)
}

func TestCacheStatsHitRate(t *testing.T) {
	cache := New[string, int]()
	cache.Set("a", 1, time.Minute)
	cache.Set("b", 2, time.Minute)

	// Three hits on "a", none on "b".
	for i := 0; i < 3; i++ {
		_, ok := cache.Get("a")
		require.True(t, ok)
	}

	stats := cache.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Live)
	assert.InDelta(t, 3.0/5.0, stats.HitRate, 1e-9)
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := New[int, int]()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := (seed + i) % 16
				_, _ = cache.GetOrCompute(key, time.Minute, func() (int, error) {
					return key * 2, nil
				})
			}
		}(g)
	}
	wg.Wait()

	for key := 0; key < 16; key++ {
		value, ok := cache.Get(key)
		require.True(t, ok)
		assert.Equal(t, key*2, value, "racing computes must converge on the same pure value")
	}
}
