package index

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ResultCacheKey identifies one L1 cache entry (§3.4).
type ResultCacheKey struct {
	ProjectHash string
	Query       string
	Limit       int
	PathFilter  string
}

type resultCacheEntry struct {
	results  []*Result
	cachedAt time.Time
}

// ResultCache is the bounded, TTL-evicting L1 search result cache shared
// across every open project. A commit against a project invalidates only
// that project's entries.
type ResultCache struct {
	mu    sync.Mutex
	cache *lru.Cache[ResultCacheKey, resultCacheEntry]
	ttl   time.Duration
}

// NewResultCache builds an L1 cache with the given capacity (entry count)
// and time-to-live.
func NewResultCache(capacity int, ttl time.Duration) (*ResultCache, error) {
	c, err := lru.New[ResultCacheKey, resultCacheEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &ResultCache{cache: c, ttl: ttl}, nil
}

// Get returns the cached results for key if present and not older than the
// TTL as of now. A stale hit is evicted rather than returned.
func (c *ResultCache) Get(key ResultCacheKey, now time.Time) ([]*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if now.Sub(entry.cachedAt) > c.ttl {
		c.cache.Remove(key)
		return nil, false
	}
	return entry.results, true
}

// Put inserts or replaces the entry for key, evicting the least recently
// used entry if the cache is at capacity.
func (c *ResultCache) Put(key ResultCacheKey, results []*Result, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, resultCacheEntry{results: results, cachedAt: now})
}

// InvalidateProject drops every entry keyed under projectHash, leaving
// other projects' entries untouched.
func (c *ResultCache) InvalidateProject(projectHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.cache.Keys() {
		if key.ProjectHash == projectHash {
			c.cache.Remove(key)
		}
	}
}

// Len reports the current number of cached entries, across all projects.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
