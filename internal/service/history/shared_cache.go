package history

import (
	"sort"
	"sync"
	"time"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
)

// SharedCache is the partitioned store of fetched bar ranges shared by all
// sessions. Keys are disjoint by (partition, symbol, timeframe), so writers
// for different sessions never contend on the same entry.
type SharedCache struct {
	mu      sync.RWMutex
	entries map[models.CacheKey]*models.CacheEntry
	maxBars int
	metrics drepo.Metrics
	now     func() time.Time
}

// NewSharedCache creates an empty cache. maxBars caps each entry's series.
func NewSharedCache(maxBars int, metrics drepo.Metrics) *SharedCache {
	return &SharedCache{
		entries: make(map[models.CacheKey]*models.CacheEntry),
		maxBars: maxBars,
		metrics: metrics,
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock for freshness checks in tests.
func (c *SharedCache) SetNowFunc(now func() time.Time) { c.now = now }

// Lookup answers whether a cached entry can serve a request. covers holds
// when the entry spans [fromMs, toMs], or, for last-N requests (fromMs and
// toMs both zero), when the series is at least minBars long. fresh holds
// when the entry's age is within maxAge. A request may be served from cache
// only when both hold.
func (c *SharedCache) Lookup(key models.CacheKey, fromMs, toMs int64, minBars int, maxAge time.Duration) (*models.CacheEntry, bool, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || len(e.Bars) == 0 {
		c.metrics.RecordCacheLookup(false)
		return nil, false, false
	}

	var covers bool
	if fromMs == 0 && toMs == 0 {
		covers = len(e.Bars) >= minBars
	} else {
		covers = e.MinTs() <= fromMs && e.MaxTs() >= toMs
	}
	fresh := c.now().UnixMilli()-e.UpdatedAtMs <= maxAge.Milliseconds()

	c.metrics.RecordCacheLookup(covers && fresh)

	out := *e
	out.Bars = models.CopyBars(e.Bars)
	return &out, covers, fresh
}

// Store upserts an entry. The covered range is merged with any existing
// bars so it never shrinks; updatedAtMs advances to now.
func (c *SharedCache) Store(entry models.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := entry
	if prev, ok := c.entries[entry.Key]; ok {
		stored.Bars = models.MergeSeries(prev.Bars, entry.Bars, c.maxBars)
		if stored.LastHistoryFetchAtMs < prev.LastHistoryFetchAtMs {
			stored.LastHistoryFetchAtMs = prev.LastHistoryFetchAtMs
		}
		if stored.LastFullHistoryFetchAtMs < prev.LastFullHistoryFetchAtMs {
			stored.LastFullHistoryFetchAtMs = prev.LastFullHistoryFetchAtMs
		}
	} else {
		stored.Bars = models.MergeSeries(nil, entry.Bars, c.maxBars)
	}
	stored.UpdatedAtMs = c.now().UnixMilli()
	c.entries[entry.Key] = &stored
}

// Clear removes entries for one partition, or every entry when partition is
// empty. This is the only operation that shrinks coverage.
func (c *SharedCache) Clear(partition string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.entries {
		if partition == "" || k.Partition == partition {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len reports the number of live entries.
func (c *SharedCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Partitions lists the distinct partition keys currently held, sorted.
func (c *SharedCache) Partitions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range c.entries {
		seen[k.Partition] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Export copies every entry keyed by its string form, for persistence.
func (c *SharedCache) Export() map[string]models.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]models.CacheEntry, len(c.entries))
	for k, e := range c.entries {
		cp := *e
		cp.Bars = models.CopyBars(e.Bars)
		out[k.String()] = cp
	}
	return out
}

// Import seeds the cache from hydrated entries without touching freshness
// stamps; existing entries win over imports.
func (c *SharedCache) Import(entries map[models.CacheKey]models.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range entries {
		if _, ok := c.entries[k]; ok {
			continue
		}
		cp := e
		cp.Bars = models.CopyBars(e.Bars)
		c.entries[k] = &cp
	}
}
