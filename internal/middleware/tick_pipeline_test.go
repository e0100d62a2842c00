package middleware

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ChartPulse/internal/domain/models"
)

type recordingSink struct {
	mu    sync.Mutex
	ticks []*models.Tick
	err   error
}

func (s *recordingSink) Process(_ context.Context, t *models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.ticks = append(s.ticks, t)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

type nopPipelineMetrics struct{}

func (nopPipelineMetrics) RecordFetch(string)            {}
func (nopPipelineMetrics) RecordCacheLookup(bool)        {}
func (nopPipelineMetrics) RecordHydrate(bool)            {}
func (nopPipelineMetrics) RecordFlushFailure(error)      {}
func (nopPipelineMetrics) RecordPatternEvent(string)     {}
func (nopPipelineMetrics) RecordDedupeSuppressed()       {}
func (nopPipelineMetrics) RecordError(string)            {}
func (nopPipelineMetrics) RecordLatency(string, float64) {}

func tick(symbol string, msc int64) *models.Tick {
	return &models.Tick{Symbol: symbol, TimeMsc: msc, Bid: 1.1, Ask: 1.1001}
}

func TestProcessRejectsInvalidTicks(t *testing.T) {
	sink := &recordingSink{}
	p := NewTickPipeline(sink, nopPipelineMetrics{})

	if err := p.Process(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil tick")
	}
	if err := p.Process(context.Background(), tick("", 100)); err == nil {
		t.Fatalf("expected error for empty symbol")
	}
	if err := p.Process(context.Background(), tick("EURUSD", 0)); err == nil {
		t.Fatalf("expected error for zero timestamp")
	}
	if sink.count() != 0 {
		t.Fatalf("invalid ticks reached sink: %d", sink.count())
	}
}

func TestProcessDropsNonMonotonicTicks(t *testing.T) {
	sink := &recordingSink{}
	p := NewTickPipeline(sink, nopPipelineMetrics{})
	p.maxRPS = 0 // isolate the monotonic filter from the throttle

	if err := p.Process(context.Background(), tick("EURUSD", 1000)); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	// Same and older timestamps are dropped without error.
	if err := p.Process(context.Background(), tick("EURUSD", 1000)); err != nil {
		t.Fatalf("duplicate tick: %v", err)
	}
	if err := p.Process(context.Background(), tick("EURUSD", 900)); err != nil {
		t.Fatalf("stale tick: %v", err)
	}
	if err := p.Process(context.Background(), tick("EURUSD", 1100)); err != nil {
		t.Fatalf("newer tick: %v", err)
	}
	if sink.count() != 2 {
		t.Fatalf("expected 2 forwarded ticks, got %d", sink.count())
	}
}

func TestProcessThrottlesPerSymbol(t *testing.T) {
	sink := &recordingSink{}
	p := NewTickPipeline(sink, nopPipelineMetrics{}, WithMaxRPS(1))

	if err := p.Process(context.Background(), tick("EURUSD", 1000)); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if err := p.Process(context.Background(), tick("EURUSD", 1001)); err != nil {
		t.Fatalf("throttled tick: %v", err)
	}
	// A different symbol has its own budget.
	if err := p.Process(context.Background(), tick("GBPUSD", 1001)); err != nil {
		t.Fatalf("other symbol: %v", err)
	}
	if sink.count() != 2 {
		t.Fatalf("expected 2 forwarded ticks, got %d", sink.count())
	}
}

func TestProcessBuffersOnDownstreamError(t *testing.T) {
	sink := &recordingSink{err: fmt.Errorf("engine busy")}
	p := NewTickPipeline(sink, nopPipelineMetrics{}, WithBufferSize(10))
	p.maxRPS = 0

	if err := p.Process(context.Background(), tick("EURUSD", 1000)); err == nil {
		t.Fatalf("expected downstream error")
	}
	if len(p.bufCh) != 1 {
		t.Fatalf("expected 1 buffered tick, got %d", len(p.bufCh))
	}

	// Once downstream recovers, Start drains the buffer.
	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()
	p.Start(context.Background())
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("buffered tick never flushed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
