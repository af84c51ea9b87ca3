// Package enhance resolves flat data-API records into enriched view-models:
// foreign keys are collected, referenced collections batch-loaded, and the
// joins done in memory. Results are served from a coarse time-based cache.
package enhance

import (
	"sync"
	"time"
)

// DefaultCacheTTL is applied when configuration leaves the TTL unset.
const DefaultCacheTTL = 5 * time.Minute

// DefaultMaxCacheSize bounds the number of cached entries.
const DefaultMaxCacheSize = 1000

// CacheStats reports cache effectiveness for the health endpoint.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Clears  int64 `json:"clears"`
	Entries int   `json:"entries"`
}

type cacheEntry struct {
	value    interface{}
	storedAt time.Time
}

// Cache is a deliberately coarse read cache. Expiry and overflow both drop
// the whole map: entries are cheap to rebuild and a full clear keeps the
// semantics trivial. There is no partial invalidation.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	maxSize int

	hits   int64
	misses int64
	clears int64
}

// NewCache creates a cache with the given TTL and entry bound.
// Zero values fall back to defaults.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxCacheSize
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the cached value for key. An entry past the TTL drops the
// entire cache and counts as a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	if time.Since(entry.storedAt) > c.ttl {
		c.clearLocked()
		c.misses++
		return nil, false
	}

	c.hits++
	return entry.value, true
}

// Set stores a value. Inserting past the size bound clears everything first;
// the bound is a counter, not an eviction policy.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.clearLocked()
	}
	c.entries[key] = cacheEntry{value: value, storedAt: time.Now()}
}

// Invalidate drops every entry. Called after writes through the admin API.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		Clears:  c.clears,
		Entries: len(c.entries),
	}
}

func (c *Cache) clearLocked() {
	if len(c.entries) > 0 {
		c.clears++
	}
	c.entries = make(map[string]cacheEntry)
}
