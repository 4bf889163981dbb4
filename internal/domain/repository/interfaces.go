package repository

import (
	"context"

	"TradeOrdu/internal/domain/models"
)

// MarketData is the REST side of the exchange.
type MarketData interface {
	Klines(ctx context.Context, symbol string, interval models.Interval, limit int) ([]models.Candle, error)
	Depth(ctx context.Context, symbol string, limit int) (models.OrderBook, error)
	FundingRates(ctx context.Context, symbol string, limit int) ([]models.FundingRate, error)
	OpenInterest(ctx context.Context, symbol string, limit int) ([]models.OpenInterest, error)
	PerpetualSymbols(ctx context.Context, quote string) ([]string, error)
}

// LiveFeed exposes the buffered streaming view of an instrument.
type LiveFeed interface {
	Candles(symbol string) []models.Candle
	OrderBook(symbol string) models.OrderBook
}

// SentimentSource supplies off-exchange scalars and whale transfers.
type SentimentSource interface {
	Sentiment(ctx context.Context, symbol string) (models.Sentiment, error)
	WhaleEvents(ctx context.Context, symbol string) ([]models.WhaleEvent, error)
}

// StateStore is a named key-value document store used by the feedback
// layer. Load returns models.ErrNotFound when nothing was saved yet.
type StateStore interface {
	Load(ctx context.Context, name string, dest any) error
	Save(ctx context.Context, name string, v any) error
}

// Reporter delivers one selected decision.
type Reporter interface {
	Name() string
	Report(ctx context.Context, r models.Report) error
}

// DecisionStore keeps decision history for later queries.
type DecisionStore interface {
	Reporter
	History(ctx context.Context, symbol string, limit int) ([]models.DecisionRecord, error)
}

type Metrics interface {
	RecordCycle(seconds float64, decisions int)
	RecordAgentLatency(agent string, seconds float64)
	RecordAgentFailure(agent, kind string)
	RecordStreamState(symbol string, feed models.FeedKind, state models.StreamState)
	RecordReconnect(symbol string, feed models.FeedKind)
	RecordDecision(class models.StrategyClass, direction models.Direction, safe bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
