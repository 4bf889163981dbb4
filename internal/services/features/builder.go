package features

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/internal/domain/repository"
	"TradeOrdu/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// BuilderConfig holds the fetch sizes of one bundle.
type BuilderConfig struct {
	Interval        models.Interval
	SecondaryFrames []models.Interval
	KlineLimit      int
	DepthLimit      int
	FundingLimit    int
	OILimit         int
	MinBars         int
	// FullBars is the series length the slowest average needs; shorter
	// stream buffers are backfilled from REST.
	FullBars        int
}

func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Interval:        models.Interval15m,
		SecondaryFrames: []models.Interval{models.Interval1h},
		KlineLimit:      210,
		DepthLimit:      50,
		FundingLimit:    10,
		OILimit:         24,
		MinBars:         30,
		FullBars:        200,
	}
}

// BuilderOption configures Builder.
type BuilderOption func(*Builder)

func WithSentiment(src repository.SentimentSource) BuilderOption {
	return func(b *Builder) { b.sentiment = src }
}

func WithDumpPumpThresholds(th DumpPumpThresholds) BuilderOption {
	return func(b *Builder) { b.dumpPump = th }
}

func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// Builder turns buffered stream data plus REST fallbacks into one frozen
// FeatureBundle per instrument.
type Builder struct {
	cfg       BuilderConfig
	live      repository.LiveFeed
	rest      repository.MarketData
	sentiment repository.SentimentSource
	dumpPump  DumpPumpThresholds
	logger    *logger.Logger
	now       func() time.Time
}

func NewBuilder(cfg BuilderConfig, live repository.LiveFeed, rest repository.MarketData, lgr *logger.Logger, opts ...BuilderOption) *Builder {
	if cfg.MinBars <= 0 {
		cfg.MinBars = 30
	}
	if cfg.FullBars <= 0 {
		cfg.FullBars = 200
	}
	b := &Builder{
		cfg:      cfg,
		live:     live,
		rest:     rest,
		dumpPump: DefaultDumpPumpThresholds,
		logger:   lgr,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build collects inputs for symbol and computes the bundle. Only a missing
// candle series fails the build; every other input degrades to empty.
func (b *Builder) Build(ctx context.Context, symbol string) (*models.FeatureBundle, error) {
	candles, err := b.candles(ctx, symbol)
	if err != nil {
		return nil, &models.InstrumentCycleFailure{Symbol: symbol, Stage: "candles", Err: err}
	}

	bundle := &models.FeatureBundle{
		Symbol:    symbol,
		Interval:  b.cfg.Interval,
		Timestamp: b.now().UTC(),
		Candles:   candles,
	}

	var g errgroup.Group
	b.spawn(&g, symbol, "depth", func() {
		bundle.OrderBook = b.orderBook(ctx, symbol)
	})
	if b.rest != nil {
		b.spawn(&g, symbol, "funding", func() {
			rates, err := b.rest.FundingRates(ctx, symbol, b.cfg.FundingLimit)
			if err != nil {
				b.logger.Warn("funding rates unavailable", logger.String("symbol", symbol), logger.Error(err))
				return
			}
			bundle.Funding = rates
		})
		b.spawn(&g, symbol, "open_interest", func() {
			oi, err := b.rest.OpenInterest(ctx, symbol, b.cfg.OILimit)
			if err != nil {
				b.logger.Warn("open interest unavailable", logger.String("symbol", symbol), logger.Error(err))
				return
			}
			bundle.OpenInterest = oi
		})
	}
	if b.sentiment != nil {
		b.spawn(&g, symbol, "sentiment", func() {
			s, err := b.sentiment.Sentiment(ctx, symbol)
			if err != nil {
				b.logger.Warn("sentiment unavailable", logger.String("symbol", symbol), logger.Error(err))
				return
			}
			bundle.Sentiment = s
		})
		b.spawn(&g, symbol, "whales", func() {
			w, err := b.sentiment.WhaleEvents(ctx, symbol)
			if err != nil {
				b.logger.Warn("whale events unavailable", logger.String("symbol", symbol), logger.Error(err))
				return
			}
			bundle.Whales = w
		})
	}
	views := make([]models.TimeframeView, len(b.cfg.SecondaryFrames))
	ok := make([]bool, len(b.cfg.SecondaryFrames))
	for i, iv := range b.cfg.SecondaryFrames {
		i, iv := i, iv
		if b.rest == nil || iv == b.cfg.Interval {
			continue
		}
		b.spawn(&g, symbol, "timeframe_"+string(iv), func() {
			kl, err := b.rest.Klines(ctx, symbol, iv, b.cfg.KlineLimit)
			if err != nil || len(kl) < b.cfg.MinBars {
				b.logger.Debug("secondary timeframe skipped", logger.String("symbol", symbol), logger.String("interval", string(iv)))
				return
			}
			views[i] = View(iv, kl)
			ok[i] = true
		})
	}
	_ = g.Wait()

	for i := range views {
		if ok[i] {
			bundle.Timeframes = append(bundle.Timeframes, views[i])
		}
	}

	b.derive(bundle)
	return bundle, nil
}

// spawn runs fn on g. A panicking input is logged and left empty; it
// never takes the process down.
func (b *Builder) spawn(g *errgroup.Group, symbol, input string, fn func()) {
	g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("bundle input panicked",
					logger.String("symbol", symbol),
					logger.String("input", input),
					logger.Error(&models.PanicError{Value: r}))
			}
		}()
		fn()
		return nil
	})
}

// derive fills every computed field, including the cross-agent flags, so
// the bundle is complete before any agent sees it.
func (b *Builder) derive(bundle *models.FeatureBundle) {
	tech := ComputeTechnicals(bundle.Candles)
	bundle.Indicators = tech.Indicators
	bundle.Time = tech.Time
	bundle.RSISeries = tech.RSI
	bundle.MACDSeries = tech.MACD
	bundle.MACDSignalSeries = tech.MACDSignal

	bundle.Patterns = DetectPatterns(bundle.Candles)
	bundle.Alerts = OscillatorAlerts(bundle.Indicators)
	bundle.OrderbookAnomaly = AnalyzeOrderBook(bundle.OrderBook)
	bundle.VolumeAnomaly = VolumeAnomaly(bundle.Volumes())

	dp := AssessDumpPump(bundle, b.dumpPump)
	bundle.DumpPumpFlag = dp.Flagged()
	bundle.Anomaly = bundle.OrderbookAnomaly.Spoofing || bundle.DumpPumpFlag
}

// candles prefers the stream buffer and tops it up from REST while it holds
// fewer than FullBars bars. The result holds at most KlineLimit bars.
func (b *Builder) candles(ctx context.Context, symbol string) ([]models.Candle, error) {
	var streamed []models.Candle
	if b.live != nil {
		streamed = b.live.Candles(symbol)
	}
	series := streamed
	if len(streamed) < b.cfg.FullBars {
		switch {
		case b.rest != nil:
			fetched, err := b.rest.Klines(ctx, symbol, b.cfg.Interval, b.cfg.KlineLimit)
			if err != nil {
				if len(streamed) < b.cfg.MinBars {
					return nil, err
				}
				b.logger.Warn("kline backfill failed, using stream only",
					logger.String("symbol", symbol), logger.Int("bars", len(streamed)), logger.Error(err))
				break
			}
			series = MergeCandles(fetched, streamed)
		case len(streamed) < b.cfg.MinBars:
			return nil, fmt.Errorf("only %d bars buffered and no rest fallback", len(streamed))
		}
	}
	if b.cfg.KlineLimit > 0 && len(series) > b.cfg.KlineLimit {
		series = series[len(series)-b.cfg.KlineLimit:]
	}
	if len(series) < b.cfg.MinBars {
		return nil, fmt.Errorf("need %d bars, have %d", b.cfg.MinBars, len(series))
	}
	if series[len(series)-1].Close <= 0 {
		return nil, errors.New("last close is not positive")
	}
	return series, nil
}

func (b *Builder) orderBook(ctx context.Context, symbol string) models.OrderBook {
	if b.live != nil {
		if book := b.live.OrderBook(symbol); !book.Empty() {
			return book
		}
	}
	if b.rest == nil {
		return models.OrderBook{Symbol: symbol}
	}
	book, err := b.rest.Depth(ctx, symbol, b.cfg.DepthLimit)
	if err != nil {
		b.logger.Warn("depth unavailable", logger.String("symbol", symbol), logger.Error(err))
		return models.OrderBook{Symbol: symbol}
	}
	return book
}

// MergeCandles unions two series by open time; entries of overlay win.
func MergeCandles(base, overlay []models.Candle) []models.Candle {
	byTime := make(map[int64]models.Candle, len(base)+len(overlay))
	for _, c := range base {
		byTime[c.OpenTime.UnixMilli()] = c
	}
	for _, c := range overlay {
		byTime[c.OpenTime.UnixMilli()] = c
	}
	out := make([]models.Candle, 0, len(byTime))
	for _, c := range byTime {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out
}
