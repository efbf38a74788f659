//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinCast/pkg/config"
	"FinCast/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideRedisClient,
	ProvideCache,
	ProvideClickHouseClient,
	ProvideForecastStore,
	ProvideKafkaProducer,
	ProvideResultStore,
)

var pipelineSet = wire.NewSet(
	infraSet,
	ProvideRunStream,
	ProvideForecastPipeline,
	ProvideTextGenerator,
	ProvideInsightGenerator,
)

// InitializeApp wires the dashboard service.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		pipelineSet,
		ProvideChartCache,
		ProvideKafkaConsumer,
		ProvideForecastBuffer,
		ProvideKafkaForecastHandler,
		ProvideRunQueue,
		ProvideRunDispatcher,
		ProvideDashboardUseCase,
		ProvideDashboardHandler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeCLI wires what the one-shot commands need.
func InitializeCLI(cfg *config.Config) (*CLI, func(), error) {
	wire.Build(
		pipelineSet,
		ProvideCLI,
	)
	return nil, nil, nil
}
