package persistence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ChartPulse/internal/domain/models"
	internalrepo "ChartPulse/internal/repository"
	xlogger "ChartPulse/pkg/logger"
)

type countingMetrics struct {
	mu            sync.Mutex
	hydrateHits   int
	hydrateMisses int
	flushFailures int
}

func (m *countingMetrics) RecordFetch(string)     {}
func (m *countingMetrics) RecordCacheLookup(bool) {}
func (m *countingMetrics) RecordHydrate(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hydrateHits++
	} else {
		m.hydrateMisses++
	}
}
func (m *countingMetrics) RecordFlushFailure(error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushFailures++
}
func (m *countingMetrics) RecordPatternEvent(string)     {}
func (m *countingMetrics) RecordDedupeSuppressed()       {}
func (m *countingMetrics) RecordError(string)            {}
func (m *countingMetrics) RecordLatency(string, float64) {}

type failingStore struct {
	mu   sync.Mutex
	sets int
}

func (s *failingStore) GetItem(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (s *failingStore) SetItem(context.Context, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	return fmt.Errorf("storage unavailable")
}
func (s *failingStore) RemoveItem(context.Context, string) error { return nil }

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func sampleEntries() map[string]models.CacheEntry {
	key := models.CacheKey{Partition: "broker|acct", Symbol: "EURUSD", Timeframe: "1h"}
	return map[string]models.CacheEntry{
		key.String(): {
			Key:                  key,
			Bars:                 []models.Bar{{T: 3_600_000, O: 1, H: 2, L: 0.5, C: 1.5, V: 3}},
			LastHistoryFetchAtMs: 42,
		},
	}
}

func TestFlushHydrateRoundTrip(t *testing.T) {
	store := internalrepo.NewMemorySnapshotStore()
	m := &countingMetrics{}
	p := New(store, m, testLogger(t))

	if err := p.Flush(context.Background(), p.Serialize(sampleEntries())); err != nil {
		t.Fatalf("flush: %v", err)
	}

	out := p.Hydrate(context.Background())
	if len(out) != 1 {
		t.Fatalf("expected 1 hydrated entry, got %d", len(out))
	}
	key := models.CacheKey{Partition: "broker|acct", Symbol: "EURUSD", Timeframe: "1h"}
	e, ok := out[key]
	if !ok {
		t.Fatalf("hydrated entries missing key: %v", out)
	}
	if len(e.Bars) != 1 || e.Bars[0].T != 3_600_000 || e.LastHistoryFetchAtMs != 42 {
		t.Fatalf("entry mangled in round trip: %+v", e)
	}
	if m.hydrateHits != 1 {
		t.Fatalf("expected 1 hydrate hit, got %d", m.hydrateHits)
	}
}

func TestHydrateMissingSnapshot(t *testing.T) {
	m := &countingMetrics{}
	p := New(internalrepo.NewMemorySnapshotStore(), m, testLogger(t))

	out := p.Hydrate(context.Background())
	if len(out) != 0 {
		t.Fatalf("expected empty map, got %d entries", len(out))
	}
	if m.hydrateMisses != 1 {
		t.Fatalf("expected 1 hydrate miss, got %d", m.hydrateMisses)
	}
}

func TestHydrateCorruptSnapshot(t *testing.T) {
	store := internalrepo.NewMemorySnapshotStore()
	if err := store.SetItem(context.Background(), "chartpulse:frame_cache:v1", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := &countingMetrics{}
	p := New(store, m, testLogger(t))

	if out := p.Hydrate(context.Background()); len(out) != 0 {
		t.Fatalf("corrupt snapshot must hydrate empty, got %d entries", len(out))
	}
	if m.hydrateMisses != 1 {
		t.Fatalf("expected hydrate miss, got %+v", m)
	}
}

func TestHydrateVersionMismatch(t *testing.T) {
	store := internalrepo.NewMemorySnapshotStore()
	if err := store.SetItem(context.Background(), "chartpulse:frame_cache:v1",
		`{"version":99,"savedAtMs":1,"entries":{}}`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	p := New(store, &countingMetrics{}, testLogger(t))

	if out := p.Hydrate(context.Background()); len(out) != 0 {
		t.Fatalf("version mismatch must hydrate empty, got %d entries", len(out))
	}
}

func TestFlushFailureIsIsolatedAndCounted(t *testing.T) {
	store := &failingStore{}
	m := &countingMetrics{}
	p := New(store, m, testLogger(t))

	if err := p.Flush(context.Background(), p.Serialize(sampleEntries())); err == nil {
		t.Fatal("expected flush error")
	}
	if m.flushFailures != 1 {
		t.Fatalf("expected exactly 1 recorded failure, got %d", m.flushFailures)
	}
}

func TestScheduleCoalescesBursts(t *testing.T) {
	store := internalrepo.NewMemorySnapshotStore()
	p := New(store, &countingMetrics{}, testLogger(t), WithDebounce(30*time.Millisecond))

	var mu sync.Mutex
	calls := 0
	source := func() map[string]models.CacheEntry {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return sampleEntries()
	}

	for i := 0; i < 5; i++ {
		p.Schedule(source)
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 1 {
		t.Fatalf("burst of schedules must collapse into 1 flush, got %d", got)
	}

	if _, ok, _ := store.GetItem(context.Background(), "chartpulse:frame_cache:v1"); !ok {
		t.Fatal("debounced flush never reached the store")
	}
}

func TestCloseFlushesPendingState(t *testing.T) {
	store := internalrepo.NewMemorySnapshotStore()
	p := New(store, &countingMetrics{}, testLogger(t), WithDebounce(time.Hour))

	p.Schedule(func() map[string]models.CacheEntry { return sampleEntries() })
	p.Close()

	if _, ok, _ := store.GetItem(context.Background(), "chartpulse:frame_cache:v1"); !ok {
		t.Fatal("close must flush the armed snapshot")
	}
}

func TestClearRemovesSnapshotAndPendingFlush(t *testing.T) {
	store := internalrepo.NewMemorySnapshotStore()
	p := New(store, &countingMetrics{}, testLogger(t), WithDebounce(20*time.Millisecond))

	if err := p.Flush(context.Background(), p.Serialize(sampleEntries())); err != nil {
		t.Fatalf("flush: %v", err)
	}
	p.Schedule(func() map[string]models.CacheEntry { return sampleEntries() })
	if err := p.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	if _, ok, _ := store.GetItem(context.Background(), "chartpulse:frame_cache:v1"); ok {
		t.Fatal("snapshot survived clear")
	}
}
