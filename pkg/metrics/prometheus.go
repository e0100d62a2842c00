package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetches          *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	hydrates         *prometheus.CounterVec
	flushFailures    prometheus.Counter
	patternEvents    *prometheus.CounterVec
	dedupeSuppressed prometheus.Counter
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartpulse_history_fetches_total",
				Help: "History fetches by classification (full/incremental/no_bars)",
			},
			[]string{"classification"},
		),
		cacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartpulse_frame_cache_lookups_total",
				Help: "Shared history cache lookups by result",
			},
			[]string{"result"},
		),
		hydrates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartpulse_frame_cache_hydrates_total",
				Help: "Persisted snapshot hydrate attempts by result",
			},
			[]string{"result"},
		),
		flushFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chartpulse_frame_cache_flush_failures_total",
				Help: "Failed persisted snapshot writes",
			},
		),
		patternEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartpulse_pattern_events_total",
				Help: "Emitted pattern events by detection source",
			},
			[]string{"source"},
		),
		dedupeSuppressed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chartpulse_pattern_dedupe_suppressed_total",
				Help: "Pattern detections suppressed by the key cache",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chartpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records a classified history fetch.
func (r *Recorder) RecordFetch(classification string) {
	r.fetches.WithLabelValues(classification).Inc()
}

// RecordCacheLookup records a shared cache lookup result.
func (r *Recorder) RecordCacheLookup(hit bool) {
	r.cacheLookups.WithLabelValues(hitLabel(hit)).Inc()
}

// RecordHydrate records a hydrate attempt result.
func (r *Recorder) RecordHydrate(hit bool) {
	r.hydrates.WithLabelValues(hitLabel(hit)).Inc()
}

// RecordFlushFailure records a failed snapshot write.
func (r *Recorder) RecordFlushFailure(_ error) {
	r.flushFailures.Inc()
}

// RecordPatternEvent records an emitted pattern event.
func (r *Recorder) RecordPatternEvent(source string) {
	r.patternEvents.WithLabelValues(source).Inc()
}

// RecordDedupeSuppressed records a suppressed duplicate detection.
func (r *Recorder) RecordDedupeSuppressed() {
	r.dedupeSuppressed.Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
