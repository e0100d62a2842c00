//go:build wireinject
// +build wireinject

package di

import (
	"ChartPulse/pkg/config"
	"ChartPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideSnapshotStore,

		// Observability
		ProvideLogger,
		ProvideMetrics,
		ProvideTelemetry,

		// Engine services
		ProvideHistoryProvider,
		ProvideTickStream,
		ProvideSharedCache,
		ProvideFramePersistence,
		ProvidePatternPipeline,
		ProvideEventPublisher,
		ProvideBarArchive,
		ProvideChartEngine,
		ProvideTickPipeline,

		// HTTP surface
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
