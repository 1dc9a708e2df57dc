//go:build wireinject
// +build wireinject

package di

import (
	"MacroPulse/pkg/config"
	"MacroPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvideReportStore,
		ProvideReportPublisher,

		// Ingestion
		ProvideRetryConfig,
		ProvideLimiter,
		ProvideQueue,
		ProvideFetcher,
		ProvideStream,
		ProvideCollector,
		ProvideKafkaSamplesHandler,

		// Computation core
		ProvideRegistry,
		ProvideOrchestrator,
		ProvideBridge,
		ProvideHub,

		// Use cases and surfaces
		ProvideReportProcessor,
		ProvideRunner,
		ProvideDashboardHandler,
		ProvideApp,
	)
	return nil, nil
}
