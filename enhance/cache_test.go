package enhance

import (
	"fmt"
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	cache := NewCache(time.Minute, 10)

	if _, ok := cache.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}

	cache.Set("quotes:list", []string{"a"})
	value, ok := cache.Get("quotes:list")
	if !ok {
		t.Fatal("expected hit")
	}
	if got := value.([]string); len(got) != 1 || got[0] != "a" {
		t.Errorf("unexpected cached value: %v", got)
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %d / %d", stats.Hits, stats.Misses)
	}
}

func TestCacheTTLClearsEverything(t *testing.T) {
	cache := NewCache(10*time.Millisecond, 10)
	cache.Set("a", 1)
	cache.Set("b", 2)

	time.Sleep(20 * time.Millisecond)

	// Reading one expired entry drops the whole cache
	if _, ok := cache.Get("a"); ok {
		t.Error("expected miss on expired entry")
	}
	if got := cache.Stats().Entries; got != 0 {
		t.Errorf("expected full clear, %d entries remain", got)
	}
	if cache.Stats().Clears != 1 {
		t.Errorf("expected 1 clear, got %d", cache.Stats().Clears)
	}
}

func TestCacheMaxSizeClearsBeforeInsert(t *testing.T) {
	cache := NewCache(time.Minute, 3)
	for i := 0; i < 3; i++ {
		cache.Set(fmt.Sprintf("key-%d", i), i)
	}
	if got := cache.Stats().Entries; got != 3 {
		t.Fatalf("expected 3 entries, got %d", got)
	}

	// Fourth insert clears everything first
	cache.Set("key-3", 3)
	stats := cache.Stats()
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry after overflow clear, got %d", stats.Entries)
	}
	if stats.Clears != 1 {
		t.Errorf("expected 1 clear, got %d", stats.Clears)
	}

	// Overwriting an existing key never triggers the bound
	cache.Set("key-3", 33)
	if cache.Stats().Clears != 1 {
		t.Error("overwrite should not clear")
	}
}

func TestCacheInvalidate(t *testing.T) {
	cache := NewCache(time.Minute, 10)
	cache.Set("a", 1)
	cache.Invalidate()

	if _, ok := cache.Get("a"); ok {
		t.Error("expected miss after invalidate")
	}
	if cache.Stats().Clears != 1 {
		t.Errorf("expected 1 clear, got %d", cache.Stats().Clears)
	}

	// Invalidating an empty cache is not counted as a clear
	cache.Invalidate()
	if cache.Stats().Clears != 1 {
		t.Error("empty invalidate should not count")
	}
}

func TestCacheDefaults(t *testing.T) {
	cache := NewCache(0, 0)
	if cache.ttl != DefaultCacheTTL {
		t.Errorf("expected default TTL, got %v", cache.ttl)
	}
	if cache.maxSize != DefaultMaxCacheSize {
		t.Errorf("expected default max size, got %d", cache.maxSize)
	}
}
