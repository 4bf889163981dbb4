package binance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/internal/service/cache"
	"TradeOrdu/internal/service/metrics"
	"TradeOrdu/internal/service/ratelimit"
	"TradeOrdu/pkg/logger"

	"github.com/adshao/go-binance/v2/futures"
)

// FuturesAPI is the subset of the futures REST API the client calls.
type FuturesAPI interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]*futures.Kline, error)
	Depth(ctx context.Context, symbol string, limit int) (*futures.DepthResponse, error)
	FundingRates(ctx context.Context, symbol string, limit int) ([]*futures.FundingRate, error)
	OpenInterestHist(ctx context.Context, symbol, period string, limit int) ([]*futures.OpenInterestStatistic, error)
	ExchangeInfo(ctx context.Context) (*futures.ExchangeInfo, error)
}

type futuresAPI struct {
	client *futures.Client
}

// NewFuturesAPI wraps the go-binance futures client. Keys may be empty:
// every call used here is a public market data endpoint.
func NewFuturesAPI(apiKey, secret string) FuturesAPI {
	return &futuresAPI{client: futures.NewClient(apiKey, secret)}
}

func (a *futuresAPI) Klines(ctx context.Context, symbol, interval string, limit int) ([]*futures.Kline, error) {
	return a.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
}

func (a *futuresAPI) Depth(ctx context.Context, symbol string, limit int) (*futures.DepthResponse, error) {
	return a.client.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
}

func (a *futuresAPI) FundingRates(ctx context.Context, symbol string, limit int) ([]*futures.FundingRate, error) {
	return a.client.NewFundingRateService().Symbol(symbol).Limit(limit).Do(ctx)
}

func (a *futuresAPI) OpenInterestHist(ctx context.Context, symbol, period string, limit int) ([]*futures.OpenInterestStatistic, error) {
	return a.client.NewOpenInterestStatisticsService().Symbol(symbol).Period(period).Limit(limit).Do(ctx)
}

func (a *futuresAPI) ExchangeInfo(ctx context.Context) (*futures.ExchangeInfo, error) {
	return a.client.NewExchangeInfoService().Do(ctx)
}

type RestConfig struct {
	Timeout  time.Duration
	Rate     float64
	Burst    float64
	CacheTTL time.Duration
	OIPeriod string
}

func DefaultRestConfig() RestConfig {
	return RestConfig{Timeout: 8 * time.Second, Rate: 10, Burst: 20, CacheTTL: 5 * time.Minute, OIPeriod: "5m"}
}

// RestClient implements repository.MarketData. Funding and open interest
// are cached per instrument; every call is rate limited per instrument.
type RestClient struct {
	api     FuturesAPI
	cfg     RestConfig
	limiter *ratelimit.Limiter
	funding *cache.TTLCache[[]models.FundingRate]
	oi      *cache.TTLCache[[]models.OpenInterest]
	logger  *logger.Logger
}

func NewRestClient(api FuturesAPI, cfg RestConfig, lgr *logger.Logger) *RestClient {
	def := DefaultRestConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Rate <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.OIPeriod == "" {
		cfg.OIPeriod = def.OIPeriod
	}
	metrics.Register()
	return &RestClient{
		api:     api,
		cfg:     cfg,
		limiter: ratelimit.New(cfg.Burst, cfg.Rate),
		funding: cache.NewTTLCache[[]models.FundingRate](cfg.CacheTTL),
		oi:      cache.NewTTLCache[[]models.OpenInterest](cfg.CacheTTL),
		logger:  lgr,
	}
}

func (c *RestClient) call(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx, key); err != nil {
		return &models.TransportFailure{Op: op, Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	metrics.ObserveCall("binance", op, start, err)
	if err != nil {
		return &models.TransportFailure{Op: op, Err: err}
	}
	return nil
}

func (c *RestClient) Klines(ctx context.Context, symbol string, iv models.Interval, limit int) ([]models.Candle, error) {
	var raw []*futures.Kline
	err := c.call(ctx, "klines", symbol, func(ctx context.Context) (err error) {
		raw, err = c.api.Klines(ctx, symbol, string(iv), limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Candle, 0, len(raw))
	for _, k := range raw {
		if k == nil {
			continue
		}
		candle, err := ParseCandle(k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, fmt.Errorf("klines %s: %w", symbol, err)
		}
		out = append(out, candle)
	}
	return out, nil
}

func (c *RestClient) Depth(ctx context.Context, symbol string, limit int) (models.OrderBook, error) {
	var raw *futures.DepthResponse
	err := c.call(ctx, "depth", symbol, func(ctx context.Context) (err error) {
		raw, err = c.api.Depth(ctx, symbol, limit)
		return err
	})
	if err != nil {
		return models.OrderBook{}, err
	}
	book := models.OrderBook{Symbol: symbol, UpdatedAt: time.Now().UTC()}
	if raw == nil {
		return book, nil
	}
	if raw.Time > 0 {
		book.UpdatedAt = time.UnixMilli(raw.Time).UTC()
	}
	for _, b := range raw.Bids {
		lv, err := level(b.Price, b.Quantity)
		if err != nil {
			return models.OrderBook{}, fmt.Errorf("depth %s: %w", symbol, err)
		}
		book.Bids = append(book.Bids, lv)
	}
	for _, a := range raw.Asks {
		lv, err := level(a.Price, a.Quantity)
		if err != nil {
			return models.OrderBook{}, fmt.Errorf("depth %s: %w", symbol, err)
		}
		book.Asks = append(book.Asks, lv)
	}
	return book, nil
}

func level(price, qty string) (models.PriceLevel, error) {
	p, err := parseFloat("price", price)
	if err != nil {
		return models.PriceLevel{}, err
	}
	q, err := parseFloat("quantity", qty)
	if err != nil {
		return models.PriceLevel{}, err
	}
	return models.PriceLevel{Price: p, Quantity: q}, nil
}

// FundingRates returns the most recent funding history, oldest first.
func (c *RestClient) FundingRates(ctx context.Context, symbol string, limit int) ([]models.FundingRate, error) {
	return c.funding.GetOrLoad(fmt.Sprintf("%s:%d", symbol, limit), func() ([]models.FundingRate, error) {
		var raw []*futures.FundingRate
		err := c.call(ctx, "funding", symbol, func(ctx context.Context) (err error) {
			raw, err = c.api.FundingRates(ctx, symbol, limit)
			return err
		})
		if err != nil {
			return nil, err
		}
		out := make([]models.FundingRate, 0, len(raw))
		for _, f := range raw {
			if f == nil {
				continue
			}
			rate, err := parseFloat("funding rate", f.FundingRate)
			if err != nil {
				return nil, fmt.Errorf("funding %s: %w", symbol, err)
			}
			out = append(out, models.FundingRate{Rate: rate, Time: time.UnixMilli(f.FundingTime).UTC()})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
		return out, nil
	})
}

// OpenInterest returns the open interest history, oldest first.
func (c *RestClient) OpenInterest(ctx context.Context, symbol string, limit int) ([]models.OpenInterest, error) {
	return c.oi.GetOrLoad(fmt.Sprintf("%s:%d", symbol, limit), func() ([]models.OpenInterest, error) {
		var raw []*futures.OpenInterestStatistic
		err := c.call(ctx, "open_interest", symbol, func(ctx context.Context) (err error) {
			raw, err = c.api.OpenInterestHist(ctx, symbol, c.cfg.OIPeriod, limit)
			return err
		})
		if err != nil {
			return nil, err
		}
		out := make([]models.OpenInterest, 0, len(raw))
		for _, s := range raw {
			if s == nil {
				continue
			}
			v, err := parseFloat("open interest", s.SumOpenInterest)
			if err != nil {
				return nil, fmt.Errorf("open interest %s: %w", symbol, err)
			}
			notional, err := parseFloat("open interest value", s.SumOpenInterestValue)
			if err != nil {
				return nil, fmt.Errorf("open interest %s: %w", symbol, err)
			}
			out = append(out, models.OpenInterest{Value: v, Notional: notional, Time: time.UnixMilli(s.Timestamp).UTC()})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
		return out, nil
	})
}

// PerpetualSymbols lists trading perpetual contracts quoted in quote,
// sorted by name.
func (c *RestClient) PerpetualSymbols(ctx context.Context, quote string) ([]string, error) {
	var info *futures.ExchangeInfo
	err := c.call(ctx, "exchange_info", "exchange_info", func(ctx context.Context) (err error) {
		info, err = c.api.ExchangeInfo(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	var out []string
	for _, s := range info.Symbols {
		if s.ContractType == futures.ContractTypePerpetual && s.Status == "TRADING" && s.QuoteAsset == quote {
			out = append(out, s.Symbol)
		}
	}
	sort.Strings(out)
	c.logger.Debug("resolved perpetual symbols", logger.Int("count", len(out)), logger.String("quote", quote))
	return out, nil
}
