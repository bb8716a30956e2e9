// Package cache implements the semantic query cache: a bounded LRU keyed by
// normalized query hash that also serves "close enough" queries via a
// lightweight text-similarity match.
package cache

import (
	"container/list"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

// Config holds cache tuning knobs. Zero fields take DefaultConfig values.
type Config struct {
	// MaxSize caps the number of entries; inserting beyond it evicts the
	// least-recently-used entry.
	MaxSize int

	// TTL expires entries this long after their last access.
	TTL time.Duration

	// WordWeight and CharWeight combine the word-level Jaccard similarity
	// and the character-overlap ratio into the query similarity score.
	// They are tunable, not load-bearing; defaults come from the original
	// retrieval system.
	WordWeight float64
	CharWeight float64
}

// DefaultConfig is the stock cache configuration.
var DefaultConfig = Config{
	MaxSize:    1000,
	TTL:        24 * time.Hour,
	WordWeight: 0.7,
	CharWeight: 0.3,
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Evictions    int64   `json:"evictions"`
	TotalQueries int64   `json:"total_queries"`
	HitRate      float64 `json:"hit_rate"`
	CacheSize    int     `json:"cache_size"`
	MaxSize      int     `json:"max_size"`
}

// entry is one cached query with its computed results.
type entry[R any] struct {
	queryHash   string
	queryText   string
	results     R
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int64
}

func (e *entry[R]) expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.lastAccess) > ttl
}

// Cache is a mutex-guarded semantic LRU cache. The element list runs from
// least recently used (front) to most recently used (back), tracked by use,
// not by timestamp sorting.
//
// The cached result type is a parameter so the cache has no dependency on
// the retrieval engine's types.
type Cache[R any] struct {
	mu    sync.Mutex
	cfg   Config
	ll    *list.List               // of *entry[R]; front = LRU
	items map[string]*list.Element // queryHash -> element

	hits      int64
	misses    int64
	evictions int64
}

// New creates a cache with cfg, filling zero fields from DefaultConfig.
func New[R any](cfg Config) *Cache[R] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig.MaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig.TTL
	}
	if cfg.WordWeight == 0 && cfg.CharWeight == 0 {
		cfg.WordWeight = DefaultConfig.WordWeight
		cfg.CharWeight = DefaultConfig.CharWeight
	}
	return &Cache[R]{
		cfg:   cfg,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

// Get returns cached results for query. It first tries an exact match on
// the normalized query hash, then scans live entries oldest-first for one
// whose query similarity reaches threshold. A hit bumps the entry's access
// bookkeeping and promotes it to most recently used.
func (c *Cache[R]) Get(query string, threshold float64) (R, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if elem, ok := c.items[hashQuery(query)]; ok {
		ent := elem.Value.(*entry[R])
		if !ent.expired(c.cfg.TTL, now) {
			c.touch(elem, ent, now)
			c.hits++
			return ent.results, true
		}
		c.removeElement(elem)
	}

	for elem := c.ll.Front(); elem != nil; elem = elem.Next() {
		ent := elem.Value.(*entry[R])
		if ent.expired(c.cfg.TTL, now) {
			continue
		}
		if c.querySimilarity(query, ent.queryText) >= threshold {
			c.touch(elem, ent, now)
			c.hits++
			return ent.results, true
		}
	}

	c.misses++
	var zero R
	return zero, false
}

// Put inserts or overwrites the entry for query. Inserting a new key at
// capacity evicts exactly one entry, the least recently used.
func (c *Cache[R]) Put(query string, results R) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	queryHash := hashQuery(query)

	if elem, ok := c.items[queryHash]; ok {
		ent := elem.Value.(*entry[R])
		ent.results = results
		ent.createdAt = now
		c.touch(elem, ent, now)
		return
	}

	if c.ll.Len() >= c.cfg.MaxSize {
		if oldest := c.ll.Front(); oldest != nil {
			c.removeElement(oldest)
			c.evictions++
		}
	}

	ent := &entry[R]{
		queryHash:  queryHash,
		queryText:  query,
		results:    results,
		createdAt:  now,
		lastAccess: now, // creation counts as first access for TTL
	}
	c.items[queryHash] = c.ll.PushBack(ent)
}

// touch updates access bookkeeping and promotes elem to MRU.
func (c *Cache[R]) touch(elem *list.Element, ent *entry[R], now time.Time) {
	ent.accessCount++
	ent.lastAccess = now
	c.ll.MoveToBack(elem)
}

func (c *Cache[R]) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry[R])
	delete(c.items, ent.queryHash)
	c.ll.Remove(elem)
}

// ClearExpired removes every expired entry and reports how many were
// dropped.
func (c *Cache[R]) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.ll.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*entry[R]).expired(c.cfg.TTL, now) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Clear removes all entries. The retrieval engine calls this on every
// fragment mutation so cached results are never stale relative to the index.
func (c *Cache[R]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[string]*list.Element)
}

// Len returns the number of live entries.
func (c *Cache[R]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns cache counters. TotalQueries counts lookups (hits plus
// misses), matching the HitRate denominator.
func (c *Cache[R]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:         c.hits,
		Misses:       c.misses,
		Evictions:    c.evictions,
		TotalQueries: total,
		HitRate:      hitRate,
		CacheSize:    c.ll.Len(),
		MaxSize:      c.cfg.MaxSize,
	}
}

// querySimilarity scores two queries with the configured weights.
func (c *Cache[R]) querySimilarity(a, b string) float64 {
	return weightedQuerySimilarity(a, b, c.cfg.WordWeight, c.cfg.CharWeight)
}

// hashQuery produces the exact-match cache key for a query, ignoring case
// and surrounding whitespace.
func hashQuery(query string) string {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	return fmt.Sprintf("%016x", h.Sum64())
}
