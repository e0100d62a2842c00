package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
	xlogger "ChartPulse/pkg/logger"
)

const defaultStorageKey = "chartpulse:frame_cache:v1"

// FramePersistence writes the shared frame cache into a durable key-value
// slot and hydrates it back at startup. Writes are debounced so a burst of
// bar updates collapses into a single flush; the timer is owned here and
// cancelled on Close, so no callback can fire after teardown.
type FramePersistence struct {
	store    drepo.SnapshotStore
	key      string
	debounce time.Duration
	metrics  drepo.Metrics
	logger   *xlogger.Logger

	mu     sync.Mutex
	timer  *time.Timer
	source func() map[string]models.CacheEntry
	closed bool
	now    func() time.Time
}

// Option configures FramePersistence.
type Option func(*FramePersistence)

// WithStorageKey overrides the durable slot key.
func WithStorageKey(key string) Option {
	return func(p *FramePersistence) {
		if key != "" {
			p.key = key
		}
	}
}

// WithDebounce overrides the flush coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(p *FramePersistence) {
		if d > 0 {
			p.debounce = d
		}
	}
}

// New creates a FramePersistence over the given store.
func New(store drepo.SnapshotStore, metrics drepo.Metrics, logger *xlogger.Logger, opts ...Option) *FramePersistence {
	p := &FramePersistence{
		store:    store,
		key:      defaultStorageKey,
		debounce: 400 * time.Millisecond,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Serialize builds the durable snapshot image from exported cache entries.
func (p *FramePersistence) Serialize(entries map[string]models.CacheEntry) models.PersistedSnapshot {
	return models.PersistedSnapshot{
		Version:   models.SnapshotVersion,
		SavedAtMs: p.now().UnixMilli(),
		Entries:   entries,
	}
}

// Hydrate reads the persisted snapshot and returns its entries keyed by
// CacheKey. It is best-effort: a missing, unreadable or corrupt snapshot
// yields an empty map and never propagates an error past this boundary.
func (p *FramePersistence) Hydrate(ctx context.Context) map[models.CacheKey]models.CacheEntry {
	out := make(map[models.CacheKey]models.CacheEntry)

	raw, ok, err := p.store.GetItem(ctx, p.key)
	if err != nil {
		p.metrics.RecordHydrate(false)
		p.logger.Warn("frame cache hydrate read failed", xlogger.Error(err))
		return out
	}
	if !ok || raw == "" {
		p.metrics.RecordHydrate(false)
		return out
	}

	var snap models.PersistedSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		p.metrics.RecordHydrate(false)
		p.logger.Warn("frame cache snapshot corrupt", xlogger.Error(err))
		return out
	}
	if snap.Version != models.SnapshotVersion {
		p.metrics.RecordHydrate(false)
		p.logger.Warn("frame cache snapshot version mismatch",
			xlogger.Int("version", snap.Version))
		return out
	}

	for _, e := range snap.Entries {
		if e.Key.Symbol == "" || e.Key.Timeframe == "" {
			continue
		}
		out[e.Key] = e
	}
	p.metrics.RecordHydrate(len(out) > 0)
	return out
}

// Schedule arms (or re-arms) the debounced flush. source is called at fire
// time so the snapshot reflects the latest cache state, not the state when
// the burst began.
func (p *FramePersistence) Schedule(source func() map[string]models.CacheEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.source = source
	if p.timer != nil {
		p.timer.Reset(p.debounce)
		return
	}
	p.timer = time.AfterFunc(p.debounce, p.fire)
}

func (p *FramePersistence) fire() {
	p.mu.Lock()
	src := p.source
	closed := p.closed
	p.mu.Unlock()

	if closed || src == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.Flush(ctx, p.Serialize(src()))
}

// Flush writes one snapshot synchronously. A storage failure degrades
// durability only: it is counted, logged once, and the in-memory cache is
// left untouched.
func (p *FramePersistence) Flush(ctx context.Context, snap models.PersistedSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		p.metrics.RecordFlushFailure(err)
		p.logger.Warn("frame cache snapshot encode failed", xlogger.Error(err))
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := p.store.SetItem(ctx, p.key, string(data)); err != nil {
		p.metrics.RecordFlushFailure(err)
		p.logger.Warn("frame cache flush failed", xlogger.Error(err))
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// Clear removes the durable snapshot and cancels any pending flush.
func (p *FramePersistence) Clear(ctx context.Context) error {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.source = nil
	p.mu.Unlock()

	if err := p.store.RemoveItem(ctx, p.key); err != nil {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// Close cancels the debounce timer; pending state is flushed one last time
// when a source is armed.
func (p *FramePersistence) Close() {
	p.mu.Lock()
	src := p.source
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	if src != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Flush(ctx, p.Serialize(src()))
	}
}
