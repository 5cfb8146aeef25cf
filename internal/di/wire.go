//go:build wireinject
// +build wireinject

package di

import (
	domsvc "StockSense/internal/domain/service"
	"StockSense/internal/usecase"
	"StockSense/pkg/config"
	"StockSense/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideRedisCache,
)

var coreSet = wire.NewSet(
	// Repositories
	ProvideEventPublisher,
	ProvideModelStore,
	ProvideSummaryStore,
	ProvideCHBarStore,
	ProvideParquetSource,
	ProvideMarketData,
	ProvideUniverse,

	// Training and inference
	ProvideTrainer,
	wire.Bind(new(domsvc.ModelTrainer), new(*usecase.Trainer)),
	ProvideQueue,
	ProvideJobEnqueuer,
	ProvidePredictor,
	ProvidePipeline,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		coreSet,

		// Use cases
		ProvideTrainSymbolJob,
		ProvideTrainMarketJob,
		ProvideStatusUseCase,
		ProvideFeaturesUseCase,

		wire.Bind(new(domsvc.ModelEvictor), new(*usecase.Predictor)),

		// HTTP
		ProvideAIHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil, nil
}

// InitializePipeline wires the bulk training pipeline for the train command.
func InitializePipeline(cfg *config.Config) (*usecase.Pipeline, func(), error) {
	wire.Build(infraSet, coreSet, ProvideNoModelEvictor)
	return &usecase.Pipeline{}, nil, nil
}

// InitializeImporter wires the parquet to ClickHouse import.
func InitializeImporter(cfg *config.Config) (*usecase.ImportBarsUseCase, func(), error) {
	wire.Build(
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideImporter,
	)
	return &usecase.ImportBarsUseCase{}, nil, nil
}
