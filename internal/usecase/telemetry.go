package usecase

import (
	"sync"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
)

// Telemetry counts engine outcomes for the operational dashboard and
// mirrors every event into the process metrics recorder. It implements
// domain/repository.Metrics so the cache, persistence and pattern layers
// report through a single sink.
type Telemetry struct {
	mu sync.Mutex

	hydrateAttempts int64
	hydrateHits     int64
	flushFailures   int64
	lastFlushError  string
	fetchFull       int64
	fetchIncr       int64
	fetchNoBars     int64
	patternLive     int64
	patternRefresh  int64
	patternStartup  int64
	dedupeSupp      int64

	inner drepo.Metrics
}

// NewTelemetry creates a collector mirroring into inner (may be nil).
func NewTelemetry(inner drepo.Metrics) *Telemetry {
	return &Telemetry{inner: inner}
}

func (t *Telemetry) RecordFetch(classification string) {
	t.mu.Lock()
	switch classification {
	case ClassificationFull:
		t.fetchFull++
	case ClassificationIncremental:
		t.fetchIncr++
	case ClassificationNoBars:
		t.fetchNoBars++
	}
	t.mu.Unlock()
	if t.inner != nil {
		t.inner.RecordFetch(classification)
	}
}

func (t *Telemetry) RecordCacheLookup(hit bool) {
	if t.inner != nil {
		t.inner.RecordCacheLookup(hit)
	}
}

func (t *Telemetry) RecordHydrate(hit bool) {
	t.mu.Lock()
	t.hydrateAttempts++
	if hit {
		t.hydrateHits++
	}
	t.mu.Unlock()
	if t.inner != nil {
		t.inner.RecordHydrate(hit)
	}
}

func (t *Telemetry) RecordFlushFailure(err error) {
	t.mu.Lock()
	t.flushFailures++
	if err != nil {
		t.lastFlushError = err.Error()
	}
	t.mu.Unlock()
	if t.inner != nil {
		t.inner.RecordFlushFailure(err)
	}
}

func (t *Telemetry) RecordPatternEvent(source string) {
	t.mu.Lock()
	switch models.DetectionSource(source) {
	case models.DetectLive:
		t.patternLive++
	case models.DetectRefresh:
		t.patternRefresh++
	case models.DetectStartupBackfill:
		t.patternStartup++
	}
	t.mu.Unlock()
	if t.inner != nil {
		t.inner.RecordPatternEvent(source)
	}
}

func (t *Telemetry) RecordDedupeSuppressed() {
	t.mu.Lock()
	t.dedupeSupp++
	t.mu.Unlock()
	if t.inner != nil {
		t.inner.RecordDedupeSuppressed()
	}
}

func (t *Telemetry) RecordError(kind string) {
	if t.inner != nil {
		t.inner.RecordError(kind)
	}
}

func (t *Telemetry) RecordLatency(op string, seconds float64) {
	if t.inner != nil {
		t.inner.RecordLatency(op, seconds)
	}
}

// ResetPersistence zeroes the hydrate/persist counters after the durable
// snapshot has been cleared.
func (t *Telemetry) ResetPersistence() {
	t.mu.Lock()
	t.hydrateAttempts = 0
	t.hydrateHits = 0
	t.flushFailures = 0
	t.lastFlushError = ""
	t.mu.Unlock()
}

// Snapshot assembles the read-only telemetry aggregate.
func (t *Telemetry) Snapshot(entries int, partitions []string) models.FrameCacheTelemetry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out models.FrameCacheTelemetry
	out.Hydrate.Attempts = t.hydrateAttempts
	out.Hydrate.Hits = t.hydrateHits
	out.Persist.FlushFailures = t.flushFailures
	out.Persist.LastFlushError = t.lastFlushError
	out.FetchMix.Full = t.fetchFull
	out.FetchMix.Incremental = t.fetchIncr
	out.FetchMix.NoBars = t.fetchNoBars
	out.Entries = entries
	out.Partitions = partitions
	out.PatternDetection.FromLive = t.patternLive
	out.PatternDetection.FromRefresh = t.patternRefresh
	out.PatternDetection.FromStartupBackfill = t.patternStartup
	out.PatternDetection.DedupeSuppressed = t.dedupeSupp
	return out
}
