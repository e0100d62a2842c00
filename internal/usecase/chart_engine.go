package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
	"ChartPulse/internal/service/history"
	"ChartPulse/internal/service/patterns"
	"ChartPulse/internal/service/persistence"
	xlogger "ChartPulse/pkg/logger"
	xutil "ChartPulse/pkg/util"
)

// EngineConfig tunes the session manager.
type EngineConfig struct {
	MaxBars             int
	DefaultBackfillBars int
	PatternBackfillBars int
	CacheMaxAge         time.Duration
	FetchTimeout        time.Duration
}

type refreshTrigger int

const (
	triggerStartup refreshTrigger = iota
	triggerScheduled
	triggerForced
	triggerLive
)

type watchKey struct {
	Symbol    string
	Timeframe string
}

// ChartEngine owns the set of active (symbol, timeframe) sessions. It is
// the only component that mutates session bars: every refresh funnels
// through the merge step, and per-session refreshes are serialized by an
// in-flight guard while different sessions refresh fully concurrently.
type ChartEngine struct {
	cfg       EngineConfig
	provider  drepo.HistoryProvider
	cache     *history.SharedCache
	persist   *persistence.FramePersistence
	pipeline  *patterns.Pipeline
	telemetry *Telemetry
	publisher drepo.EventPublisher // optional
	archive   drepo.BarArchive     // optional
	logger    *xlogger.Logger
	partition string

	mu       sync.RWMutex
	sessions map[string]*models.Session
	inflight map[string]bool
	watches  map[watchKey]int // value: backfill bars
	seq      int64
	now      func() time.Time
}

// NewChartEngine wires the engine. publisher and archive may be nil.
func NewChartEngine(
	cfg EngineConfig,
	provider drepo.HistoryProvider,
	cache *history.SharedCache,
	persist *persistence.FramePersistence,
	pipeline *patterns.Pipeline,
	telemetry *Telemetry,
	publisher drepo.EventPublisher,
	archive drepo.BarArchive,
	logger *xlogger.Logger,
) *ChartEngine {
	if cfg.MaxBars <= 0 {
		cfg.MaxBars = 2000
	}
	if cfg.DefaultBackfillBars <= 0 {
		cfg.DefaultBackfillBars = 300
	}
	if cfg.PatternBackfillBars <= 0 {
		cfg.PatternBackfillBars = patterns.DefaultRefreshBackfillBars
	}
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = 60 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 12 * time.Second
	}

	brokerID, accountID := provider.Identity()
	return &ChartEngine{
		cfg:       cfg,
		provider:  provider,
		cache:     cache,
		persist:   persist,
		pipeline:  pipeline,
		telemetry: telemetry,
		publisher: publisher,
		archive:   archive,
		logger:    logger,
		partition: drepo.PartitionKey(brokerID, accountID),
		sessions:  make(map[string]*models.Session),
		inflight:  make(map[string]bool),
		watches:   make(map[watchKey]int),
		now:       time.Now,
	}
}

// SetNowFunc overrides the engine clock in tests.
func (e *ChartEngine) SetNowFunc(now func() time.Time) { e.now = now }

// Partition returns the active cache partition key.
func (e *ChartEngine) Partition() string { return e.partition }

// Hydrate seeds the shared cache from the persisted snapshot. It must run
// before any session starts so hydrated sessions need zero provider calls.
func (e *ChartEngine) Hydrate(ctx context.Context) {
	entries := e.persist.Hydrate(ctx)
	if len(entries) == 0 {
		return
	}
	e.cache.Import(entries)
	e.logger.Info("frame cache hydrated", xlogger.Int("entries", len(entries)))
}

// StartSession registers a (symbol, timeframe) subscription. A cache hit
// with sufficient coverage and freshness serves bars synchronously with no
// network call; otherwise an asynchronous refresh is scheduled.
func (e *ChartEngine) StartSession(symbol, timeframe string, backfillBars int) (*models.StartSessionResult, error) {
	sym := drepo.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, fmt.Errorf("symbol required")
	}
	tf := string(drepo.NormalizeTimeframe(timeframe))
	backfill := xutil.ClampInt(backfillBars, e.cfg.DefaultBackfillBars, 1, e.cfg.MaxBars)

	key := models.CacheKey{Partition: e.partition, Symbol: sym, Timeframe: tf}
	entry, covers, fresh := e.cache.Lookup(key, 0, 0, backfill, e.cfg.CacheMaxAge)

	e.mu.Lock()
	e.seq++
	id := fmt.Sprintf("%s-%s-%d", sym, strings.ToUpper(tf), e.seq)
	s := &models.Session{
		ID:           id,
		Symbol:       sym,
		Timeframe:    tf,
		PartitionKey: e.partition,
		BackfillBars: backfill,
	}
	if entry != nil && len(entry.Bars) > 0 {
		s.Bars = models.TailBars(entry.Bars, e.cfg.MaxBars)
		s.LastHistoryFetchAtMs = entry.LastHistoryFetchAtMs
		s.LastFullHistoryFetchAtMs = entry.LastFullHistoryFetchAtMs
		s.Health.Source = models.SourceCache
	}
	e.sessions[id] = s
	result := &models.StartSessionResult{
		SessionID: id,
		Health:    s.Health,
		BarCount:  len(s.Bars),
	}
	e.mu.Unlock()

	if !(covers && fresh) {
		go e.refreshSession(id, triggerStartup)
	}
	return result, nil
}

// GetSnapshot returns a read-only tail view of a session. It never blocks
// on in-flight refreshes.
func (e *ChartEngine) GetSnapshot(sessionID string, barsLimit int) (*models.SessionSnapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("unknown session %q", sessionID)
	}
	return &models.SessionSnapshot{
		SessionID: s.ID,
		Symbol:    s.Symbol,
		Timeframe: s.Timeframe,
		BarCount:  len(s.Bars),
		BarsTail:  models.TailBars(s.Bars, barsLimit),
		Health:    s.Health,
	}, nil
}

// StopSession drops a session's in-memory bars; the shared cache entry
// survives until explicitly cleared.
func (e *ChartEngine) StopSession(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[sessionID]; !ok {
		return false
	}
	delete(e.sessions, sessionID)
	return true
}

// AddWatch registers a pair for scheduled refresh. Idempotent.
func (e *ChartEngine) AddWatch(symbol, timeframe string, backfillBars int) {
	sym := drepo.NormalizeSymbol(symbol)
	if sym == "" {
		return
	}
	tf := string(drepo.NormalizeTimeframe(timeframe))
	backfill := xutil.ClampInt(backfillBars, e.cfg.DefaultBackfillBars, 1, e.cfg.MaxBars)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.watches[watchKey{sym, tf}]; ok {
		return
	}
	e.watches[watchKey{sym, tf}] = backfill
}

// RefreshSessionsForSymbol refreshes every matching session. A session with
// a refresh already in flight is skipped, not queued; the next scheduled
// tick picks it up. Without force, a still-fresh covering cache entry makes
// the refresh a no-op.
func (e *ChartEngine) RefreshSessionsForSymbol(symbol string, timeframes []string, force bool) {
	sym := drepo.NormalizeSymbol(symbol)

	allowed := make(map[string]bool, len(timeframes))
	for _, tf := range timeframes {
		allowed[string(drepo.NormalizeTimeframe(tf))] = true
	}

	e.mu.RLock()
	var ids []string
	for id, s := range e.sessions {
		if s.Symbol != sym {
			continue
		}
		if len(allowed) > 0 && !allowed[s.Timeframe] {
			continue
		}
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	trigger := triggerScheduled
	if force {
		trigger = triggerForced
	}
	for _, id := range ids {
		go e.refreshSession(id, trigger)
	}
}

// RefreshTick drives one scheduler pass: every watched pair gets a session
// if it has none yet, then every session refreshes (freshness permitting).
func (e *ChartEngine) RefreshTick() {
	e.mu.RLock()
	missing := make(map[watchKey]int)
	for wk, backfill := range e.watches {
		found := false
		for _, s := range e.sessions {
			if s.Symbol == wk.Symbol && s.Timeframe == wk.Timeframe {
				found = true
				break
			}
		}
		if !found {
			missing[wk] = backfill
		}
	}
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	for wk, backfill := range missing {
		if _, err := e.StartSession(wk.Symbol, wk.Timeframe, backfill); err != nil {
			e.logger.Warn("watch session start failed",
				xlogger.String("symbol", wk.Symbol), xlogger.Error(err))
		}
	}
	for _, id := range ids {
		go e.refreshSession(id, triggerScheduled)
	}
}

// HandleTick reacts to a live quote push: when the tick's timestamp shows a
// watched session's forming bar has closed, a live-tagged refresh runs.
func (e *ChartEngine) HandleTick(symbol string, timeMsc int64) {
	sym := drepo.NormalizeSymbol(symbol)

	e.mu.RLock()
	var ids []string
	for id, s := range e.sessions {
		if s.Symbol != sym || len(s.Bars) == 0 {
			continue
		}
		barMs := drepo.TimeframeDuration(drepo.Timeframe(s.Timeframe)).Milliseconds()
		if timeMsc >= s.Bars[len(s.Bars)-1].T+barMs {
			ids = append(ids, id)
		}
	}
	e.mu.RUnlock()

	for _, id := range ids {
		go e.refreshSession(id, triggerLive)
	}
}

// refreshSession is the single write path for session bars.
func (e *ChartEngine) refreshSession(sessionID string, trigger refreshTrigger) {
	e.mu.Lock()
	s, ok := e.sessions[sessionID]
	if !ok || e.inflight[sessionID] {
		e.mu.Unlock()
		return
	}
	e.inflight[sessionID] = true
	sym, tf, backfill := s.Symbol, s.Timeframe, s.BackfillBars
	hadPriorFetch := s.LastHistoryFetchAtMs > 0
	hadBarsBefore := len(s.Bars) > 0
	existing := models.CopyBars(s.Bars)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, sessionID)
		e.mu.Unlock()
	}()

	key := models.CacheKey{Partition: e.partition, Symbol: sym, Timeframe: tf}
	if trigger == triggerScheduled {
		if _, covers, fresh := e.cache.Lookup(key, 0, 0, backfill, e.cfg.CacheMaxAge); covers && fresh {
			return
		}
	}

	start := e.now()
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.FetchTimeout)
	defer cancel()

	res, err := e.provider.GetHistorySeries(ctx, sym, tf, 0, 0, xutil.ClampInt(backfill, 2000, 50, 10000))
	if err == nil && res != nil && !res.OK {
		err = fmt.Errorf("provider rejected fetch: %s", res.Error)
	}
	if err != nil {
		// Stale bars beat an empty chart: leave the series untouched and
		// let the scheduler re-trigger on its next tick.
		e.telemetry.RecordError("fetch")
		e.logger.Warn("history fetch failed",
			xlogger.String("symbol", sym), xlogger.String("timeframe", tf), xlogger.Error(err))
		e.mu.Lock()
		if s, ok := e.sessions[sessionID]; ok {
			s.Health = models.SessionHealth{Source: models.SourceError, LastError: err.Error()}
		}
		e.mu.Unlock()
		return
	}

	merge := MergeFetch(existing, res.Bars, hadPriorFetch, e.cfg.MaxBars)
	e.telemetry.RecordFetch(merge.Classification)
	e.telemetry.RecordLatency("history_fetch", e.now().Sub(start).Seconds())
	if merge.NoOp {
		e.mu.Lock()
		if s, ok := e.sessions[sessionID]; ok {
			s.Health = models.SessionHealth{Source: models.SourceNetwork}
		}
		e.mu.Unlock()
		return
	}

	fetchedAt := res.FetchedAtMs
	if fetchedAt == 0 {
		fetchedAt = e.now().UnixMilli()
	}

	e.mu.Lock()
	s, ok = e.sessions[sessionID]
	if !ok {
		e.mu.Unlock()
		return
	}
	s.Bars = merge.Bars
	s.LastHistoryFetchAtMs = fetchedAt
	if merge.Classification == ClassificationFull {
		s.LastFullHistoryFetchAtMs = fetchedAt
	}
	s.Health = models.SessionHealth{Source: models.SourceNetwork}
	lastFull := s.LastFullHistoryFetchAtMs
	e.mu.Unlock()

	e.cache.Store(models.CacheEntry{
		Key:                      key,
		Bars:                     merge.Bars,
		LastHistoryFetchAtMs:     fetchedAt,
		LastFullHistoryFetchAtMs: lastFull,
	})
	e.persist.Schedule(e.cache.Export)

	if e.archive != nil {
		go func(bars []models.Bar) {
			actx, acancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer acancel()
			if err := e.archive.StoreBars(actx, key, bars); err != nil {
				e.telemetry.RecordError("archive")
				e.logger.Warn("bar archive store failed", xlogger.Error(err))
			}
		}(models.CopyBars(res.Bars))
	}

	// Detection provenance is computed from its own boolean, not reused
	// from the fetch classification: a cache-hydrated session is an
	// incremental fetch yet still a first detection pass.
	source := models.DetectRefresh
	switch {
	case trigger == triggerLive:
		source = models.DetectLive
	case !hadBarsBefore:
		source = models.DetectStartupBackfill
	}
	events := e.pipeline.Detect(merge.Bars, patterns.Context{
		Symbol:       sym,
		Timeframe:    tf,
		Source:       source,
		BackfillBars: e.cfg.PatternBackfillBars,
	})
	e.publishEvents(events)
}

func (e *ChartEngine) publishEvents(events []models.PatternEvent) {
	if e.publisher == nil || len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, ev := range events {
		if err := e.publisher.PublishPattern(ctx, ev); err != nil {
			e.telemetry.RecordError("publish")
			e.logger.Warn("pattern publish failed",
				xlogger.String("pattern", ev.PatternKey), xlogger.Error(err))
		}
	}
}

// ClearPersistedFrameCache wipes the shared cache and the durable snapshot,
// used for manual recovery after corruption. With dropSessionBars, every
// live session's in-memory series is emptied too.
func (e *ChartEngine) ClearPersistedFrameCache(ctx context.Context, dropSessionBars bool) models.ClearCacheResult {
	cleared := e.cache.Clear("")

	ok := true
	if err := e.persist.Clear(ctx); err != nil {
		ok = false
		e.telemetry.RecordError("persist_clear")
		e.logger.Warn("persisted frame cache clear failed", xlogger.Error(err))
	}
	e.telemetry.ResetPersistence()
	e.pipeline.ResetDedupe()

	if dropSessionBars {
		e.mu.Lock()
		for _, s := range e.sessions {
			s.Bars = nil
			s.LastHistoryFetchAtMs = 0
			s.LastFullHistoryFetchAtMs = 0
		}
		e.mu.Unlock()
	}

	return models.ClearCacheResult{OK: ok, EntriesCleared: cleared}
}

// FrameCacheTelemetry returns the read-only operational aggregate.
func (e *ChartEngine) FrameCacheTelemetry() models.FrameCacheTelemetry {
	return e.telemetry.Snapshot(e.cache.Len(), e.cache.Partitions())
}

// SessionCount reports the number of live sessions.
func (e *ChartEngine) SessionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Shutdown flushes pending persistence work and stops its timer.
func (e *ChartEngine) Shutdown() {
	e.persist.Close()
}
