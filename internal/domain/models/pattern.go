package models

// DetectionSource tags the provenance of a detection pass. It is analytics
// metadata only and never feeds back into caching decisions.
type DetectionSource string

const (
	DetectLive            DetectionSource = "live"
	DetectRefresh         DetectionSource = "refresh"
	DetectStartupBackfill DetectionSource = "startup_backfill"
)

// RawPatternEvent is what a detector plug-in emits. Detectors are pure
// functions over a bar window; the pipeline owns windowing and dedupe.
type RawPatternEvent struct {
	Family    string  // e.g. "engulfing", "pinbar"
	Direction string  // "bull" or "bear"
	AnchorTs  []int64 // timestamps of the bars that define the structure
	Price     float64 // reference price at the trigger bar
}

// PatternEvent is a deduplicated, source-tagged detection.
type PatternEvent struct {
	PatternKey   string          `json:"patternKey"`
	Type         string          `json:"type"`
	Direction    string          `json:"direction"`
	Symbol       string          `json:"symbol"`
	Timeframe    string          `json:"timeframe"`
	AnchorTs     []int64         `json:"anchorTs"`
	Price        float64         `json:"price"`
	DetectedAtMs int64           `json:"detectedAtMs"`
	Source       DetectionSource `json:"source"`
}

// FrameCacheTelemetry is the read-only operational aggregate exposed by the
// engine for dashboards.
type FrameCacheTelemetry struct {
	Hydrate struct {
		Attempts int64 `json:"attempts"`
		Hits     int64 `json:"hits"`
	} `json:"hydrate"`
	Persist struct {
		FlushFailures  int64  `json:"flushFailures"`
		LastFlushError string `json:"lastFlushError,omitempty"`
	} `json:"persist"`
	FetchMix struct {
		Full        int64 `json:"full"`
		Incremental int64 `json:"incremental"`
		NoBars      int64 `json:"noBars"`
	} `json:"fetchMix"`
	Entries          int      `json:"entries"`
	Partitions       []string `json:"partitions"`
	PatternDetection struct {
		FromLive            int64 `json:"fromLive"`
		FromRefresh         int64 `json:"fromRefresh"`
		FromStartupBackfill int64 `json:"fromStartupBackfill"`
		DedupeSuppressed    int64 `json:"dedupeSuppressed"`
	} `json:"patternDetection"`
}
