package di

import (
	"context"
	"fmt"
	"time"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
	"ChartPulse/internal/handler/api"
	mid "ChartPulse/internal/middleware"
	internalrepo "ChartPulse/internal/repository"
	"ChartPulse/internal/service/bridge"
	"ChartPulse/internal/service/history"
	"ChartPulse/internal/service/patterns"
	"ChartPulse/internal/service/persistence"
	"ChartPulse/internal/usecase"
	pkgch "ChartPulse/pkg/clickhouse"
	"ChartPulse/pkg/config"
	xhttp "ChartPulse/pkg/http"
	pkgkafka "ChartPulse/pkg/kafka"
	applogger "ChartPulse/pkg/logger"
	"ChartPulse/pkg/metrics"
	"ChartPulse/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// producerLogPublisher adapts the Kafka producer to the log collector.
type producerLogPublisher struct {
	p *pkgkafka.Producer
}

func (a producerLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return a.p.Publish(ctx, topic, nil, payload)
}

// ProvideLogger creates the application logger. With Kafka enabled,
// aggregated error logs ship to a side topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	l, err := applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "chartpulse.logs",
			Publisher:      producerLogPublisher{p: producer},
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus-backed metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideTelemetry creates the telemetry aggregate that mirrors counters
// into Prometheus.
func ProvideTelemetry(rec *metrics.Recorder) *usecase.Telemetry {
	return usecase.NewTelemetry(rec)
}

// ProvideSnapshotStore creates the durable snapshot slot, Redis-backed
// when configured and in-memory otherwise.
func ProvideSnapshotStore(cfg *config.Config) (drepo.SnapshotStore, error) {
	if !cfg.Redis.Enabled {
		return internalrepo.NewMemorySnapshotStore(), nil
	}
	store, err := internalrepo.NewRedisSnapshotStore(internalrepo.RedisSnapshotOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}
	return store, nil
}

// ProvideHistoryProvider creates the bridge history client.
func ProvideHistoryProvider(cfg *config.Config) drepo.HistoryProvider {
	httpClient := xhttp.NewClient(xhttp.WithTimeout(cfg.Engine.FetchTimeout))
	return bridge.NewClient(cfg.Bridge.BaseURL, cfg.Bridge.BrokerID, cfg.Bridge.AccountID, httpClient)
}

// ProvideTickStream creates the bridge tick stream, or nil when no
// websocket URL is configured.
func ProvideTickStream(cfg *config.Config) drepo.TickStream {
	if cfg.Bridge.WebSocketURL == "" {
		return nil
	}
	return bridge.NewStream(cfg.Bridge.WebSocketURL, cfg.Bridge.ReconnectDelay, cfg.Bridge.PingInterval)
}

// ProvideSharedCache creates the process-wide frame cache.
func ProvideSharedCache(cfg *config.Config, telemetry *usecase.Telemetry) *history.SharedCache {
	return history.NewSharedCache(cfg.Engine.MaxBars, telemetry)
}

// ProvideFramePersistence creates the debounced snapshot writer.
func ProvideFramePersistence(
	cfg *config.Config,
	store drepo.SnapshotStore,
	telemetry *usecase.Telemetry,
	logger *applogger.Logger,
) *persistence.FramePersistence {
	return persistence.New(store, telemetry, logger,
		persistence.WithDebounce(cfg.Engine.PersistDebounce),
	)
}

// ProvidePatternPipeline creates the detection pipeline with the built-in
// detector set.
func ProvidePatternPipeline(cfg *config.Config, telemetry *usecase.Telemetry) *patterns.Pipeline {
	detectors := []drepo.Detector{
		patterns.EngulfingDetector{},
		patterns.PinbarDetector{},
	}
	return patterns.New(detectors, cfg.Engine.DedupeCapacity, telemetry)
}

// ProvideEventPublisher creates the Kafka pattern publisher, or nil when
// Kafka is disabled.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) drepo.EventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
}

// ProvideClickHouseClient creates a ClickHouse client with the bar archive
// schema initialized, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.BarsSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideBarArchive creates the ClickHouse bar archive, or nil when
// disabled.
func ProvideBarArchive(client *pkgch.Client) drepo.BarArchive {
	if client == nil {
		return nil
	}
	return internalrepo.NewCHBarArchive(client)
}

// ProvideChartEngine creates the session manager.
func ProvideChartEngine(
	cfg *config.Config,
	provider drepo.HistoryProvider,
	cache *history.SharedCache,
	persist *persistence.FramePersistence,
	pipeline *patterns.Pipeline,
	telemetry *usecase.Telemetry,
	publisher drepo.EventPublisher,
	archive drepo.BarArchive,
	logger *applogger.Logger,
) *usecase.ChartEngine {
	return usecase.NewChartEngine(
		usecase.EngineConfig{
			MaxBars:             cfg.Engine.MaxBars,
			DefaultBackfillBars: cfg.Engine.DefaultBackfillBars,
			PatternBackfillBars: cfg.Engine.PatternBackfillBars,
			CacheMaxAge:         cfg.Engine.CacheMaxAge,
			FetchTimeout:        cfg.Engine.FetchTimeout,
		},
		provider, cache, persist, pipeline, telemetry, publisher, archive, logger,
	)
}

// engineTickSink forwards validated ticks into the engine's live trigger.
type engineTickSink struct {
	engine *usecase.ChartEngine
}

func (s engineTickSink) Process(_ context.Context, t *models.Tick) error {
	s.engine.HandleTick(t.Symbol, t.TimeMsc)
	return nil
}

// ProvideTickPipeline creates the throttling pipeline in front of the
// engine's live trigger.
func ProvideTickPipeline(cfg *config.Config, engine *usecase.ChartEngine, telemetry *usecase.Telemetry) *mid.TickPipeline {
	return mid.NewTickPipeline(engineTickSink{engine: engine}, telemetry,
		mid.WithMaxRPS(cfg.Bridge.MaxTicksPerSec),
		mid.WithBufferSize(2000),
	)
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(logger *applogger.Logger, engine *usecase.ChartEngine) xhttp.Handler {
	return api.NewChartsEchoHandler(logger, engine)
}

// ProvideApp assembles the application and registers closeable clients.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	engine *usecase.ChartEngine,
	pipeline *mid.TickPipeline,
	stream drepo.TickStream,
	handler xhttp.Handler,
	publisher drepo.EventPublisher,
	archive drepo.BarArchive,
	snapshotStore drepo.SnapshotStore,
) *server.App {
	app := server.New(cfg, logger, engine, pipeline, stream, handler)
	if publisher != nil {
		app.AddCloser(publisher)
	}
	if archive != nil {
		app.AddCloser(archive)
	}
	if closer, ok := snapshotStore.(interface{ Close() error }); ok {
		app.AddCloser(closer)
	}
	return app
}
