//go:build wireinject
// +build wireinject

package di

import (
	"TradeOrdu/pkg/config"
	"TradeOrdu/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideRedisCache,
	ProvideCache,
	ProvideClickHouseClient,
	ProvideQueue,
)

var marketSet = wire.NewSet(
	ProvideMarketData,
	ProvideSymbols,
	ProvideStreamManager,
	ProvideSentiment,
	ProvideBuilder,
	ProvideRefresher,
)

var decisionSet = wire.NewSet(
	ProvideRegistry,
	ProvideHistoryBook,
	ProvideAgentPool,
	ProvideEngine,
	ProvideProposer,
	ProvideStateStore,
	ProvideFeedbackStore,
	ProvideBoard,
	ProvideOrchestrator,
	ProvideOutcomeService,
)

var reportingSet = wire.NewSet(
	ProvideDecisionStore,
	ProvideDecisionLog,
	ProvideTelegram,
	ProvideReporting,
)

var intakeSet = wire.NewSet(
	ProvideKafkaConsumer,
	ProvideOutcomeHandler,
	ProvideHTTPServer,
)

// InitializeApp wires every component from the loaded configuration.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(infraSet, marketSet, decisionSet, reportingSet, intakeSet, ProvideApp)
	return &server.App{}, nil
}
