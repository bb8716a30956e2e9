package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/recall-go/memory/cache"
)

func TestCache_ExactHit(t *testing.T) {
	c := cache.New[[]string](cache.Config{})

	c.Put("database optimization", []string{"r1", "r2"})

	results, ok := c.Get("database optimization", 0.85)
	require.True(t, ok)
	assert.Equal(t, []string{"r1", "r2"}, results)

	// Exact matching normalizes case and surrounding whitespace.
	results, ok = c.Get("  Database Optimization  ", 0.85)
	require.True(t, ok)
	assert.Equal(t, []string{"r1", "r2"}, results)

	stats := c.Stats()
	assert.EqualValues(t, 2, stats.Hits)
	assert.EqualValues(t, 0, stats.Misses)
}

func TestCache_Miss(t *testing.T) {
	c := cache.New[[]string](cache.Config{})

	_, ok := c.Get("never stored", 0.85)
	assert.False(t, ok)

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.TotalQueries)
	assert.Zero(t, stats.HitRate)
}

func TestCache_SemanticHit(t *testing.T) {
	c := cache.New[[]string](cache.Config{})

	c.Put("python error handling", []string{"r1"})

	// Close query: matches at a relaxed threshold, not at a strict one.
	similarity := cache.QuerySimilarity("python error handling", "python error handling tips")
	require.Greater(t, similarity, 0.7)
	require.Less(t, similarity, 0.9)

	results, ok := c.Get("python error handling tips", 0.7)
	require.True(t, ok)
	assert.Equal(t, []string{"r1"}, results)

	_, ok = c.Get("python error handling tips", 0.9)
	assert.False(t, ok)
}

func TestCache_EvictsExactlyOneLRU(t *testing.T) {
	c := cache.New[int](cache.Config{MaxSize: 3})

	c.Put("alpha", 1)
	c.Put("bravo", 2)
	c.Put("charlie", 3)

	// Touch "alpha" so "bravo" becomes least recently used.
	_, ok := c.Get("alpha", 0.99)
	require.True(t, ok)

	c.Put("delta", 4)

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Evictions)
	assert.Equal(t, 3, stats.CacheSize)

	_, ok = c.Get("bravo", 0.99)
	assert.False(t, ok, "least recently used entry must be gone")
	_, ok = c.Get("alpha", 0.99)
	assert.True(t, ok)
}

func TestCache_OverwriteDoesNotEvict(t *testing.T) {
	c := cache.New[int](cache.Config{MaxSize: 2})

	c.Put("alpha", 1)
	c.Put("bravo", 2)
	c.Put("alpha", 3)

	stats := c.Stats()
	assert.Zero(t, stats.Evictions)
	assert.Equal(t, 2, stats.CacheSize)

	v, ok := c.Get("alpha", 0.99)
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := cache.New[int](cache.Config{TTL: 20 * time.Millisecond})

	c.Put("ephemeral", 1)
	time.Sleep(50 * time.Millisecond)

	_, ok := c.Get("ephemeral", 0.99)
	assert.False(t, ok, "expired entry must not hit")
}

func TestCache_ClearExpired(t *testing.T) {
	c := cache.New[int](cache.Config{TTL: 20 * time.Millisecond})

	c.Put("old", 1)
	time.Sleep(50 * time.Millisecond)
	c.Put("fresh", 2)

	removed := c.ClearExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("fresh", 0.99)
	assert.True(t, ok)
}

func TestCache_AccessRefreshesTTL(t *testing.T) {
	c := cache.New[int](cache.Config{TTL: 60 * time.Millisecond})

	c.Put("refreshed", 1)
	for i := 0; i < 3; i++ {
		time.Sleep(30 * time.Millisecond)
		_, ok := c.Get("refreshed", 0.99)
		require.True(t, ok, "access %d should keep the entry alive", i)
	}
}

func TestCache_Clear(t *testing.T) {
	c := cache.New[int](cache.Config{})

	c.Put("alpha", 1)
	c.Put("bravo", 2)
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("alpha", 0.99)
	assert.False(t, ok)
}

func TestQuerySimilarity(t *testing.T) {
	testCases := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{name: "identical", a: "database design", b: "database design", min: 1, max: 1},
		{name: "identical ignoring case", a: "Database Design", b: "database design", min: 1, max: 1},
		{name: "either empty", a: "", b: "database design", min: 0, max: 0},
		{name: "both empty", a: "", b: "", min: 0, max: 0},
		{name: "disjoint", a: "qqq", b: "zzz", min: 0, max: 0},
		{name: "partial overlap", a: "python error handling", b: "python exception handling", min: 0.3, max: 0.95},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := cache.QuerySimilarity(tc.a, tc.b)
			assert.GreaterOrEqual(t, got, tc.min)
			assert.LessOrEqual(t, got, tc.max)

			// Symmetric by construction.
			assert.InDelta(t, got, cache.QuerySimilarity(tc.b, tc.a), 1e-12)
		})
	}
}
