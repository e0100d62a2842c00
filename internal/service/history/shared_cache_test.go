package history

import (
	"testing"
	"time"

	"ChartPulse/internal/domain/models"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string)            {}
func (nopMetrics) RecordCacheLookup(bool)        {}
func (nopMetrics) RecordHydrate(bool)            {}
func (nopMetrics) RecordFlushFailure(error)      {}
func (nopMetrics) RecordPatternEvent(string)     {}
func (nopMetrics) RecordDedupeSuppressed()       {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

func testKey(symbol string) models.CacheKey {
	return models.CacheKey{Partition: "broker|acct", Symbol: symbol, Timeframe: "1h"}
}

func testBars(start int64, n int) []models.Bar {
	out := make([]models.Bar, 0, n)
	for i := 0; i < n; i++ {
		t := start + int64(i)*3_600_000
		out = append(out, models.Bar{T: t, O: 1, H: 2, L: 0.5, C: 1.5, V: 10})
	}
	return out
}

func TestLookupCoverageAndFreshness(t *testing.T) {
	c := NewSharedCache(2000, nopMetrics{})
	now := time.UnixMilli(1_000_000_000)
	c.SetNowFunc(func() time.Time { return now })

	c.Store(models.CacheEntry{Key: testKey("EURUSD"), Bars: testBars(0, 10)})

	_, covers, fresh := c.Lookup(testKey("EURUSD"), 0, 0, 10, time.Minute)
	if !covers || !fresh {
		t.Fatalf("expected covers && fresh, got covers=%v fresh=%v", covers, fresh)
	}

	_, covers, _ = c.Lookup(testKey("EURUSD"), 0, 0, 11, time.Minute)
	if covers {
		t.Fatal("11 bars requested but only 10 cached; covers must be false")
	}

	now = now.Add(2 * time.Minute)
	_, _, fresh = c.Lookup(testKey("EURUSD"), 0, 0, 10, time.Minute)
	if fresh {
		t.Fatal("entry aged past maxAge must not be fresh")
	}

	e, covers, _ := c.Lookup(testKey("EURUSD"), 0, 9*3_600_000, 0, time.Minute)
	if !covers {
		t.Fatal("range inside cached span must be covered")
	}
	if e == nil || len(e.Bars) != 10 {
		t.Fatalf("expected entry with 10 bars, got %+v", e)
	}
}

func TestStoreNeverShrinksCoverage(t *testing.T) {
	c := NewSharedCache(2000, nopMetrics{})

	c.Store(models.CacheEntry{Key: testKey("EURUSD"), Bars: testBars(0, 10)})
	// A narrower fetch of only the 2 most recent bars must not drop history.
	c.Store(models.CacheEntry{Key: testKey("EURUSD"), Bars: testBars(8*3_600_000, 2)})

	e, _, _ := c.Lookup(testKey("EURUSD"), 0, 0, 1, time.Hour)
	if len(e.Bars) != 10 {
		t.Fatalf("coverage shrank: expected 10 bars, got %d", len(e.Bars))
	}
}

func TestStoreKeepsMaxFetchStamps(t *testing.T) {
	c := NewSharedCache(2000, nopMetrics{})

	c.Store(models.CacheEntry{Key: testKey("EURUSD"), Bars: testBars(0, 2), LastHistoryFetchAtMs: 500, LastFullHistoryFetchAtMs: 500})
	c.Store(models.CacheEntry{Key: testKey("EURUSD"), Bars: testBars(0, 2), LastHistoryFetchAtMs: 100})

	e, _, _ := c.Lookup(testKey("EURUSD"), 0, 0, 1, time.Hour)
	if e.LastHistoryFetchAtMs != 500 || e.LastFullHistoryFetchAtMs != 500 {
		t.Fatalf("fetch stamps regressed: %d %d", e.LastHistoryFetchAtMs, e.LastFullHistoryFetchAtMs)
	}
}

func TestClearByPartition(t *testing.T) {
	c := NewSharedCache(2000, nopMetrics{})

	c.Store(models.CacheEntry{Key: models.CacheKey{Partition: "a|1", Symbol: "EURUSD", Timeframe: "1h"}, Bars: testBars(0, 1)})
	c.Store(models.CacheEntry{Key: models.CacheKey{Partition: "b|2", Symbol: "EURUSD", Timeframe: "1h"}, Bars: testBars(0, 1)})

	if n := c.Clear("a|1"); n != 1 {
		t.Fatalf("expected 1 entry cleared, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", c.Len())
	}
	if ps := c.Partitions(); len(ps) != 1 || ps[0] != "b|2" {
		t.Fatalf("unexpected partitions %v", ps)
	}
	if n := c.Clear(""); n != 1 {
		t.Fatalf("expected full clear to remove 1, got %d", n)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	c := NewSharedCache(2000, nopMetrics{})
	c.Store(models.CacheEntry{Key: testKey("EURUSD"), Bars: testBars(0, 5)})
	c.Store(models.CacheEntry{Key: testKey("XAUUSD"), Bars: testBars(0, 3)})

	exported := c.Export()
	if len(exported) != 2 {
		t.Fatalf("expected 2 exported entries, got %d", len(exported))
	}

	hydrated := make(map[models.CacheKey]models.CacheEntry, len(exported))
	for _, e := range exported {
		hydrated[e.Key] = e
	}

	fresh := NewSharedCache(2000, nopMetrics{})
	fresh.Import(hydrated)
	e, _, _ := fresh.Lookup(testKey("EURUSD"), 0, 0, 1, time.Hour)
	if e == nil || len(e.Bars) != 5 {
		t.Fatalf("round trip lost bars: %+v", e)
	}

	// An existing entry wins over an import of the same key.
	fresh.Store(models.CacheEntry{Key: testKey("EURUSD"), Bars: testBars(0, 7)})
	fresh.Import(hydrated)
	e, _, _ = fresh.Lookup(testKey("EURUSD"), 0, 0, 1, time.Hour)
	if len(e.Bars) != 7 {
		t.Fatalf("import overwrote live entry: %d bars", len(e.Bars))
	}
}
