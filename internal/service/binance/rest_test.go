package binance

import (
	"context"
	"errors"
	"testing"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/pkg/logger"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	fundingCalls int
	err          error
}

func (f *fakeAPI) Klines(_ context.Context, symbol, interval string, limit int) ([]*futures.Kline, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*futures.Kline{
		{OpenTime: 0, CloseTime: 59999, Open: "1", High: "2", Low: "0.5", Close: "1.5", Volume: "10"},
		{OpenTime: 60000, CloseTime: 119999, Open: "1.5", High: "2.5", Low: "1", Close: "2", Volume: "11"},
	}, nil
}

func (f *fakeAPI) Depth(context.Context, string, int) (*futures.DepthResponse, error) {
	resp := &futures.DepthResponse{Time: 1700000000000}
	resp.Bids = append(resp.Bids, futures.Bid{Price: "99.5", Quantity: "3"})
	resp.Asks = append(resp.Asks, futures.Ask{Price: "100", Quantity: "4"})
	return resp, nil
}

func (f *fakeAPI) FundingRates(context.Context, string, int) ([]*futures.FundingRate, error) {
	f.fundingCalls++
	return []*futures.FundingRate{
		{FundingRate: "0.0002", FundingTime: 2000},
		{FundingRate: "0.0001", FundingTime: 1000},
	}, nil
}

func (f *fakeAPI) OpenInterestHist(_ context.Context, _, period string, _ int) ([]*futures.OpenInterestStatistic, error) {
	return []*futures.OpenInterestStatistic{
		{SumOpenInterest: "1200", SumOpenInterestValue: "5000000", Timestamp: 300000},
	}, nil
}

func (f *fakeAPI) ExchangeInfo(context.Context) (*futures.ExchangeInfo, error) {
	return &futures.ExchangeInfo{Symbols: []futures.Symbol{
		{Symbol: "ETHUSDT", Status: "TRADING", ContractType: futures.ContractTypePerpetual, QuoteAsset: "USDT"},
		{Symbol: "BTCUSDT", Status: "TRADING", ContractType: futures.ContractTypePerpetual, QuoteAsset: "USDT"},
		{Symbol: "BTCUSDT_250328", Status: "TRADING", ContractType: "CURRENT_QUARTER", QuoteAsset: "USDT"},
		{Symbol: "BTCUSDC", Status: "TRADING", ContractType: futures.ContractTypePerpetual, QuoteAsset: "USDC"},
		{Symbol: "LUNAUSDT", Status: "SETTLING", ContractType: futures.ContractTypePerpetual, QuoteAsset: "USDT"},
	}}, nil
}

func TestRestKlinesAndDepth(t *testing.T) {
	c := NewRestClient(&fakeAPI{}, DefaultRestConfig(), logger.Nop())
	ctx := context.Background()

	candles, err := c.Klines(ctx, "BTCUSDT", models.Interval1m, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 2.0, candles[1].Close)
	assert.Equal(t, int64(60000), candles[1].OpenTime.UnixMilli())

	book, err := c.Depth(ctx, "BTCUSDT", 5)
	require.NoError(t, err)
	assert.Equal(t, 99.5, book.Bids[0].Price)
	assert.Equal(t, 4.0, book.Asks[0].Quantity)
}

func TestRestFundingIsCachedAndSorted(t *testing.T) {
	api := &fakeAPI{}
	c := NewRestClient(api, DefaultRestConfig(), logger.Nop())
	ctx := context.Background()

	rates, err := c.FundingRates(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	_, err = c.FundingRates(ctx, "BTCUSDT", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, api.fundingCalls)
	assert.Equal(t, []float64{0.0001, 0.0002}, []float64{rates[0].Rate, rates[1].Rate})

	oi, err := c.OpenInterest(ctx, "BTCUSDT", 24)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, oi[0].Value)
	assert.Equal(t, 5e6, oi[0].Notional)
}

func TestRestErrorsAreTransportFailures(t *testing.T) {
	c := NewRestClient(&fakeAPI{err: errors.New("418 teapot")}, DefaultRestConfig(), logger.Nop())
	_, err := c.Klines(context.Background(), "BTCUSDT", models.Interval1m, 2)

	var tf *models.TransportFailure
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, "klines", tf.Op)
}

func TestPerpetualSymbols(t *testing.T) {
	c := NewRestClient(&fakeAPI{}, DefaultRestConfig(), logger.Nop())
	got, err := c.PerpetualSymbols(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)
}
