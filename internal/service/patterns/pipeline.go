package patterns

import (
	"fmt"
	"strings"
	"time"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
)

// DefaultRefreshBackfillBars bounds the trailing window of closed bars a
// detection pass re-evaluates after a refresh.
const DefaultRefreshBackfillBars = 6

// anchorRoundMs rounds anchor timestamps for the dedupe key so that a
// provider nudging a bar's timestamp by less than a minute still yields the
// same structural fingerprint.
const anchorRoundMs = int64(60_000)

// Context carries per-pass metadata the pipeline stamps onto events.
type Context struct {
	Symbol       string
	Timeframe    string
	Source       models.DetectionSource
	BackfillBars int
}

// Pipeline runs the registered detectors over a bounded window of newly
// closed bars and deduplicates detections by their anchor-derived key.
type Pipeline struct {
	detectors []drepo.Detector
	seen      *keyCache
	metrics   drepo.Metrics
	now       func() time.Time
}

// New creates a pipeline with a process-global dedupe cache of the given
// capacity (<=0 selects the default 20,000).
func New(detectors []drepo.Detector, dedupeCapacity int, metrics drepo.Metrics) *Pipeline {
	return &Pipeline{
		detectors: detectors,
		seen:      newKeyCache(dedupeCapacity),
		metrics:   metrics,
		now:       time.Now,
	}
}

// SetNowFunc overrides the event clock in tests.
func (p *Pipeline) SetNowFunc(now func() time.Time) { p.now = now }

// Detect scans the trailing window of closed bars. The last bar of the
// series is still forming and is excluded; the window covers at most
// ctx.BackfillBars closed bars ending at closedBarIndex = len(bars)-2.
// Already-seen keys are suppressed and counted, never silently dropped.
func (p *Pipeline) Detect(bars []models.Bar, ctx Context) []models.PatternEvent {
	if len(bars) < 2 {
		return nil
	}
	closed := bars[:len(bars)-1]

	backfill := ctx.BackfillBars
	if backfill <= 0 {
		backfill = DefaultRefreshBackfillBars
	}
	// Detectors may need bars before the window for structural context, so
	// the full closed series is passed and events are filtered to the window.
	windowStart := int64(0)
	if len(closed) > backfill {
		windowStart = closed[len(closed)-backfill].T
	}

	var out []models.PatternEvent
	for _, d := range p.detectors {
		for _, raw := range d.Detect(closed) {
			if len(raw.AnchorTs) == 0 {
				continue
			}
			last := raw.AnchorTs[len(raw.AnchorTs)-1]
			if last < windowStart {
				continue
			}

			key := patternKey(ctx.Symbol, ctx.Timeframe, raw)
			if p.seen.Seen(key) {
				p.metrics.RecordDedupeSuppressed()
				continue
			}

			p.metrics.RecordPatternEvent(string(ctx.Source))
			out = append(out, models.PatternEvent{
				PatternKey:   key,
				Type:         raw.Family,
				Direction:    raw.Direction,
				Symbol:       ctx.Symbol,
				Timeframe:    ctx.Timeframe,
				AnchorTs:     append([]int64(nil), raw.AnchorTs...),
				Price:        raw.Price,
				DetectedAtMs: p.now().UnixMilli(),
				Source:       ctx.Source,
			})
		}
	}
	return out
}

// ResetDedupe clears the seen-key cache, used when the persisted frame
// cache is cleared for manual recovery.
func (p *Pipeline) ResetDedupe() { p.seen.Reset() }

// DedupeLen reports the number of cached keys.
func (p *Pipeline) DedupeLen() int { return p.seen.Len() }

// patternKey fingerprints a detection by family, direction and rounded
// anchor timestamps, so the same structure re-detected on a later pass
// produces an identical key.
func patternKey(symbol, timeframe string, raw models.RawPatternEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s", symbol, timeframe, raw.Family, raw.Direction)
	for _, ts := range raw.AnchorTs {
		fmt.Fprintf(&b, "|%d", (ts/anchorRoundMs)*anchorRoundMs)
	}
	return b.String()
}
