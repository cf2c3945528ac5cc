// internal/orchestration/cache.go
package orchestration

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * TTL-bounded caches for rule evaluation.
 *
 * ResultCache holds per-rule results keyed by rule ID plus an FNV hash of
 * the pricing-relevant input subset {age, gender, territory, premium};
 * inputs outside that subset do not invalidate entries by design. The
 * pipeline cache (OPTIMIZED strategy) keys a whole execution by ordered
 * rule IDs plus the same input subset.
 *
 * Concurrency: RWMutex-protected map with atomic hit/miss counters; safe
 * for concurrent get/set during parallel rule execution. Expired entries
 * are dropped lazily on read and swept when the cache is full.
 */

// cacheKeyFields is the input subset participating in cache keys.
var cacheKeyFields = []string{"age", "gender", "territory", "premium"}

type cacheEntry struct {
	result    types.RuleExecutionResult
	expiresAt time.Time
}

// ResultCache caches per-rule execution results with a TTL.
type ResultCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64
}

// NewResultCache creates a cache. A non-positive TTL disables caching.
func NewResultCache(ttl time.Duration, maxEntries int) *ResultCache {
	return &ResultCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Key builds the cache key for one rule against the current input.
func (c *ResultCache) Key(ruleID types.RuleID, input map[string]any) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|", ruleID)
	for _, field := range cacheKeyFields {
		fmt.Fprintf(h, "%s=%v|", field, input[field])
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// PipelineKey builds the full-pipeline cache key for an ordered rule list.
func (c *ResultCache) PipelineKey(order []types.RuleID, input map[string]any) string {
	h := fnv.New64a()
	for _, id := range order {
		fmt.Fprintf(h, "%s,", id)
	}
	fmt.Fprint(h, "|")
	for _, field := range cacheKeyFields {
		fmt.Fprintf(h, "%s=%v|", field, input[field])
	}
	return fmt.Sprintf("p%016x", h.Sum64())
}

// Get returns a cached result if present and unexpired.
func (c *ResultCache) Get(key string) (types.RuleExecutionResult, bool) {
	if c.ttl <= 0 {
		return types.RuleExecutionResult{}, false
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		c.misses.Add(1)
		return types.RuleExecutionResult{}, false
	}
	c.hits.Add(1)
	return entry.result, true
}

// Set stores a result with the configured TTL.
func (c *ResultCache) Set(key string, result types.RuleExecutionResult) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.sweepLocked()
	}
	c.entries[key] = cacheEntry{result: result, expiresAt: time.Now().Add(c.ttl)}
}

// sweepLocked drops expired entries; when nothing expired, drops the
// oldest-expiring entries to make room. Caller holds the write lock.
func (c *ResultCache) sweepLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if c.maxEntries <= 0 || len(c.entries) < c.maxEntries {
		return
	}

	type aged struct {
		key       string
		expiresAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		all = append(all, aged{key, entry.expiresAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].expiresAt.Before(all[j].expiresAt) })
	evict := len(c.entries) - c.maxEntries + 1
	for i := 0; i < evict && i < len(all); i++ {
		delete(c.entries, all[i].key)
	}
}

type pipelineEntry struct {
	results   []types.RuleExecutionResult
	expiresAt time.Time
}

// pipelineCache caches whole-plan executions for the OPTIMIZED strategy.
type pipelineCache struct {
	mu         sync.RWMutex
	entries    map[string]pipelineEntry
	ttl        time.Duration
	maxEntries int
}

func newPipelineCache(ttl time.Duration, maxEntries int) *pipelineCache {
	return &pipelineCache{
		entries:    make(map[string]pipelineEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Get returns a copy of cached results with CacheHit set on each entry.
func (c *pipelineCache) Get(key string) ([]types.RuleExecutionResult, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	out := make([]types.RuleExecutionResult, len(entry.results))
	copy(out, entry.results)
	for i := range out {
		out[i].CacheHit = true
	}
	return out, true
}

// Set stores a copy of a whole-plan execution.
func (c *pipelineCache) Set(key string, results []types.RuleExecutionResult) {
	if c.ttl <= 0 {
		return
	}

	stored := make([]types.RuleExecutionResult, len(results))
	copy(stored, results)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		now := time.Now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = pipelineEntry{results: stored, expiresAt: time.Now().Add(c.ttl)}
}

// Stats snapshots cache activity.
func (c *ResultCache) Stats() types.CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	return types.CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}
