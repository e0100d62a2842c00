// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"ChartPulse/pkg/config"
	"ChartPulse/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := ProvideLogger(cfg, producer)
	if err != nil {
		return nil, err
	}
	historyProvider := ProvideHistoryProvider(cfg)
	recorder := ProvideMetrics()
	telemetry := ProvideTelemetry(recorder)
	sharedCache := ProvideSharedCache(cfg, telemetry)
	snapshotStore, err := ProvideSnapshotStore(cfg)
	if err != nil {
		return nil, err
	}
	framePersistence := ProvideFramePersistence(cfg, snapshotStore, telemetry, logger)
	pipeline := ProvidePatternPipeline(cfg, telemetry)
	eventPublisher := ProvideEventPublisher(cfg, producer)
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	barArchive := ProvideBarArchive(client)
	chartEngine := ProvideChartEngine(cfg, historyProvider, sharedCache, framePersistence, pipeline, telemetry, eventPublisher, barArchive, logger)
	tickPipeline := ProvideTickPipeline(cfg, chartEngine, telemetry)
	tickStream := ProvideTickStream(cfg)
	handler := ProvideHandler(logger, chartEngine)
	app := ProvideApp(cfg, logger, chartEngine, tickPipeline, tickStream, handler, eventPublisher, barArchive, snapshotStore)
	return app, nil
}
