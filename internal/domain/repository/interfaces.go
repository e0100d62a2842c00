package repository

import (
	"context"

	"ChartPulse/internal/domain/models"
)

// HistoryProvider is the pluggable broker-history source. Callers enforce the
// fetch timeout via ctx; a timeout is reported as a plain error.
type HistoryProvider interface {
	GetHistorySeries(ctx context.Context, symbol, resolution string, fromMs, toMs int64, limit int) (*models.HistoryResult, error)
	Identity() (brokerID, accountID string)
}

// SnapshotStore is the durable key-value slot for the persisted frame cache.
// SetItem failures must be catchable; they degrade durability only.
type SnapshotStore interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Detector is a pure pattern detector over a window of closed bars. The
// pipeline owns windowing, dedupe and source tagging; detectors do not.
type Detector interface {
	Family() string
	Detect(bars []models.Bar) []models.RawPatternEvent
}

// EventPublisher hands detected pattern events to a downstream bus.
type EventPublisher interface {
	PublishPattern(ctx context.Context, ev models.PatternEvent) error
	Close() error
}

// BarArchive is an optional long-term store for merged bar history.
type BarArchive interface {
	StoreBars(ctx context.Context, key models.CacheKey, bars []models.Bar) error
	Health(ctx context.Context) error
	Close() error
}

// TickStream delivers live quote pushes from the broker bridge.
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Metrics mirrors engine telemetry into the process metrics registry.
type Metrics interface {
	RecordFetch(classification string)
	RecordCacheLookup(hit bool)
	RecordHydrate(hit bool)
	RecordFlushFailure(err error)
	RecordPatternEvent(source string)
	RecordDedupeSuppressed()
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
