package patterns

import (
	"fmt"
	"sync"
	"testing"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
)

type countingMetrics struct {
	mu         sync.Mutex
	events     map[string]int
	suppressed int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{events: make(map[string]int)}
}

func (m *countingMetrics) RecordFetch(string)       {}
func (m *countingMetrics) RecordCacheLookup(bool)   {}
func (m *countingMetrics) RecordHydrate(bool)       {}
func (m *countingMetrics) RecordFlushFailure(error) {}
func (m *countingMetrics) RecordPatternEvent(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[source]++
}
func (m *countingMetrics) RecordDedupeSuppressed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressed++
}
func (m *countingMetrics) RecordError(string)            {}
func (m *countingMetrics) RecordLatency(string, float64) {}

// anchorDetector emits one event anchored at every bar it sees, which makes
// window filtering and forming-bar exclusion directly observable.
type anchorDetector struct{}

func (anchorDetector) Family() string { return "anchor" }

func (anchorDetector) Detect(bars []models.Bar) []models.RawPatternEvent {
	out := make([]models.RawPatternEvent, 0, len(bars))
	for _, b := range bars {
		out = append(out, models.RawPatternEvent{
			Family:    "anchor",
			Direction: "bull",
			AnchorTs:  []int64{b.T},
			Price:     b.C,
		})
	}
	return out
}

func hourBars(n int) []models.Bar {
	out := make([]models.Bar, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Bar{T: int64(i+1) * 3_600_000, O: 1, H: 2, L: 0.5, C: 1.5})
	}
	return out
}

func detectCtx(source models.DetectionSource, backfill int) Context {
	return Context{Symbol: "EURUSD", Timeframe: "1h", Source: source, BackfillBars: backfill}
}

func TestDetectExcludesFormingBarAndBoundsWindow(t *testing.T) {
	m := newCountingMetrics()
	p := New([]drepo.Detector{anchorDetector{}}, 0, m)

	bars := hourBars(20)
	events := p.Detect(bars, detectCtx(models.DetectRefresh, 6))

	if len(events) != 6 {
		t.Fatalf("expected 6 windowed events, got %d", len(events))
	}
	forming := bars[len(bars)-1].T
	closedEnd := bars[len(bars)-2].T
	for _, ev := range events {
		if ev.AnchorTs[0] == forming {
			t.Fatal("forming bar leaked into detection")
		}
	}
	if got := events[len(events)-1].AnchorTs[0]; got != closedEnd {
		t.Fatalf("window must end at the last closed bar, got %d want %d", got, closedEnd)
	}
	if m.events["refresh"] != 6 {
		t.Fatalf("expected 6 refresh events recorded, got %d", m.events["refresh"])
	}
}

func TestDetectTooFewBars(t *testing.T) {
	p := New([]drepo.Detector{anchorDetector{}}, 0, newCountingMetrics())
	if events := p.Detect(hourBars(1), detectCtx(models.DetectLive, 6)); events != nil {
		t.Fatalf("single-bar series must yield nothing, got %d", len(events))
	}
	if events := p.Detect(nil, detectCtx(models.DetectLive, 6)); events != nil {
		t.Fatalf("empty series must yield nothing, got %d", len(events))
	}
}

func TestDetectDeduplicatesAcrossPasses(t *testing.T) {
	m := newCountingMetrics()
	p := New([]drepo.Detector{anchorDetector{}}, 0, m)

	bars := hourBars(10)
	first := p.Detect(bars, detectCtx(models.DetectStartupBackfill, 6))
	if len(first) != 6 {
		t.Fatalf("expected 6 events on first pass, got %d", len(first))
	}

	second := p.Detect(bars, detectCtx(models.DetectRefresh, 6))
	if len(second) != 0 {
		t.Fatalf("identical pass must be fully suppressed, got %d", len(second))
	}
	if m.suppressed != 6 {
		t.Fatalf("expected 6 suppressions recorded, got %d", m.suppressed)
	}

	// One new closed bar shifts the window by one and emits exactly one event.
	grown := append(models.CopyBars(bars), models.Bar{T: 11 * 3_600_000, O: 1, H: 2, L: 0.5, C: 1.5})
	third := p.Detect(grown, detectCtx(models.DetectLive, 6))
	if len(third) != 1 {
		t.Fatalf("expected exactly the newly closed bar's event, got %d", len(third))
	}
	if m.events["live"] != 1 {
		t.Fatalf("expected 1 live event recorded, got %d", m.events["live"])
	}
}

func TestDedupeEvictsOldestFirst(t *testing.T) {
	c := newKeyCache(3)
	for i := 0; i < 3; i++ {
		if c.Seen(fmt.Sprintf("k%d", i)) {
			t.Fatalf("k%d seen before insert", i)
		}
	}
	// k0 is oldest; inserting k3 must evict it.
	if c.Seen("k3") {
		t.Fatal("k3 seen before insert")
	}
	if c.Len() != 3 {
		t.Fatalf("capacity exceeded: %d", c.Len())
	}
	if c.Seen("k0") {
		t.Fatal("k0 should have been evicted")
	}
	// Re-seeing k2 refreshes it to most-recently-used; next eviction hits k3.
	if !c.Seen("k2") {
		t.Fatal("k2 should still be cached")
	}
	if c.Seen("k5") {
		t.Fatal("k5 seen before insert")
	}
	if !c.Seen("k2") {
		t.Fatal("refreshed k2 evicted out of order")
	}
}

func TestResetDedupeAllowsReemission(t *testing.T) {
	p := New([]drepo.Detector{anchorDetector{}}, 0, newCountingMetrics())
	bars := hourBars(10)

	if got := len(p.Detect(bars, detectCtx(models.DetectRefresh, 6))); got != 6 {
		t.Fatalf("first pass: %d", got)
	}
	p.ResetDedupe()
	if p.DedupeLen() != 0 {
		t.Fatalf("reset left %d keys", p.DedupeLen())
	}
	if got := len(p.Detect(bars, detectCtx(models.DetectRefresh, 6))); got != 6 {
		t.Fatalf("post-reset pass: %d", got)
	}
}

func TestEngulfingDetector(t *testing.T) {
	bars := []models.Bar{
		{T: 1, O: 1.00, H: 1.06, L: 0.99, C: 1.05}, // bull
		{T: 2, O: 1.06, H: 1.07, L: 0.94, C: 0.95}, // bear engulfing
	}
	events := EngulfingDetector{}.Detect(bars)
	if len(events) != 1 {
		t.Fatalf("expected 1 engulfing, got %d", len(events))
	}
	ev := events[0]
	if ev.Direction != "bear" || len(ev.AnchorTs) != 2 || ev.AnchorTs[0] != 1 || ev.AnchorTs[1] != 2 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestPinbarDetector(t *testing.T) {
	bars := []models.Bar{
		{T: 1, O: 1.00, H: 1.01, L: 0.90, C: 0.99}, // long lower wick
		{T: 2, O: 1.00, H: 1.01, L: 0.995, C: 1.005}, // no signal
	}
	events := PinbarDetector{}.Detect(bars)
	if len(events) != 1 {
		t.Fatalf("expected 1 pinbar, got %d", len(events))
	}
	if events[0].Direction != "bull" || events[0].AnchorTs[0] != 1 {
		t.Fatalf("unexpected event %+v", events[0])
	}
}
