//go:build wireinject
// +build wireinject

package di

import (
	"OptionScan/pkg/config"
	"OptionScan/pkg/server"

	"github.com/google/wire"
)

// ProviderSet groups every provider the application needs.
var ProviderSet = wire.NewSet(
	// Ambient
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,

	// Storage and quote sources
	ProvideRedisCache,
	ProvideCache,
	ProvideTickCache,
	ProvideClickHouseClient,
	ProvideCHQuoteSource,
	ProvidePolygonClient,
	ProvideQuoteSources,
	ProvideQuoteResolver,

	// Screening
	ProvideCatalog,
	ProvideScoreAdjuster,
	ProvideKafkaProducer,
	ProvideScanPublisher,
	ProvideLogShipper,
	ProvideScreener,
	ProvideQuoteService,
	ProvideStrategyService,
	ProvideHealthService,

	// HTTP
	ProvideRateLimiter,
	ProvideHTTPHandler,
	ProvideHTTPServer,

	// Tick ingestion
	ProvideTickPipeline,
	ProvideTickCollector,
	ProvideKafkaConsumer,
	ProvideKafkaTicksHandler,

	ProvideClosers,
	ProvideApp,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(ProviderSet)
	return &server.App{}, nil
}
