//go:build wireinject
// +build wireinject

package di

import (
	"CoinPulse/pkg/config"
	"CoinPulse/pkg/server"

	"github.com/google/wire"
)

// InfrastructureSet opens the stores, caches and brokers.
var InfrastructureSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideKafkaPublisher,
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideMetricStore,
	ProvideDatabase,
	ProvideDirectory,
	ProvideCache,
	ProvideQueue,
	ProvideQueueService,
	ProvideEventPublisher,
	ProvideKafkaConsumer,
)

// ReportSet builds the report pipeline and everything it drives.
var ReportSet = wire.NewSet(
	ProvideTextModel,
	ProvideNarrator,
	ProvideChartRenderer,
	ProvidePDFClient,
	ProvideComposer,
	ProvideMailer,
	ProvideScoreHistory,
	ProvideReportPipeline,
	ProvideWelcomeReport,
	ProvideReportJobs,
	ProvideReportScheduler,
	ProvideScheduler,
	ProvideReportsHandler,
)

// IngestSet builds the metric sync consumer and the live price feed.
var IngestSet = wire.NewSet(
	ProvideIngestHandler,
	ProvideIngestPipeline,
	ProvidePriceSampler,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		InfrastructureSet,
		ReportSet,
		IngestSet,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeReporting wires the report pipeline without the HTTP server and
// background workers.
func InitializeReporting(cfg *config.Config) (*Reporting, error) {
	wire.Build(
		ProvideKafkaProducer,
		ProvideKafkaPublisher,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideMetricStore,
		ProvideDatabase,
		ProvideDirectory,
		ProvideCache,
		ProvideEventPublisher,
		ProvideTextModel,
		ProvideNarrator,
		ProvideChartRenderer,
		ProvidePDFClient,
		ProvideComposer,
		ProvideMailer,
		ProvideScoreHistory,
		ProvideReportPipeline,
		ProvideReporting,
	)
	return &Reporting{}, nil
}
