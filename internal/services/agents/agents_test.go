package agents

import (
	"context"
	"testing"
	"time"

	"TradeOrdu/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quietBundle is a flat market with neutral indicators.
func quietBundle() *models.FeatureBundle {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, 60)
	for i := range candles {
		candles[i] = models.Candle{OpenTime: start.Add(time.Duration(i) * 15 * time.Minute), Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 10}
	}
	return &models.FeatureBundle{
		Symbol:   "BTCUSDT",
		Interval: models.Interval15m,
		Candles:  candles,
		Indicators: models.Indicators{
			EMA9: 100, EMA21: 100, EMA55: 100, SMA200: 100,
			MACD: 0, MACDSignal: 0,
			RSI: 50, StochK: 50, CCI: 0, ROC: 0,
			ATR: 1, Volatility: 0.5,
		},
		VolumeAnomaly: 1,
		Time:          models.TimeFeatures{ATR: 1, Volatility: 0.5},
	}
}

func analyze(t *testing.T, a interface {
	DefaultParams() models.Params
	Analyze(context.Context, *models.FeatureBundle, models.Params, []models.HistoryEntry) (models.AgentResult, error)
}, b *models.FeatureBundle, history []models.HistoryEntry) models.AgentResult {
	t.Helper()
	res, err := a.Analyze(context.Background(), b, a.DefaultParams(), history)
	require.NoError(t, err)
	return res
}

func TestMomentumOversoldCrossIsLong(t *testing.T) {
	b := quietBundle()
	b.Indicators.RSI = 20
	b.Indicators.MACD, b.Indicators.MACDSignal = 0.2, 0.1
	b.Indicators.PrevMACD, b.Indicators.PrevMACDSignal = 0.05, 0.1
	b.Alerts = models.OscillatorAlerts{RSIOversold: true, MACDCrossUp: true}

	res := analyze(t, Momentum{}, b, nil)
	assert.Equal(t, models.DirectionLong, res.Direction)
	assert.Greater(t, res.Score, 0.5)
	assert.False(t, res.Anomaly)
	assert.InDelta(t, 0.57, res.Confidence, 1e-9)
	assert.Contains(t, res.Explanation, "MACD buy cross")
}

func TestOrderbookSpoofingTriggersShield(t *testing.T) {
	b := quietBundle()
	b.OrderbookAnomaly = models.OrderbookAnomaly{BigBid: 300000, Spoofing: true, Spread: 5}

	res := analyze(t, Orderbook{}, b, nil)
	assert.True(t, res.Anomaly)
	assert.GreaterOrEqual(t, res.Risk, 0.12)
	assert.InDelta(t, 0.34, res.Risk, 1e-9)
	assert.InDelta(t, (0.31-0.19)*0.19, res.Score, 1e-9)
	assert.InDelta(t, 0.5*0.67, res.Confidence, 1e-9)
	assert.True(t, res.Flags.Spoofing)
	assert.Equal(t, models.DirectionNone, res.Direction)
}

func TestScalpShieldDampsReversal(t *testing.T) {
	b := quietBundle()
	b.Indicators.RSI = 15
	b.Indicators.MACD, b.Indicators.MACDSignal = 0.3, 0.1
	b.Indicators.EMA9 = 100.1

	clean := analyze(t, Scalp{}, b, nil)
	assert.InDelta(t, 1.4, clean.Score, 1e-9)
	assert.Equal(t, models.DirectionLong, clean.Direction)

	b.OrderbookAnomaly.Spoofing = true
	shielded := analyze(t, Scalp{}, b, nil)
	assert.InDelta(t, 1.4*0.2, shielded.Score, 1e-9)
	assert.InDelta(t, clean.Confidence*0.5, shielded.Confidence, 1e-9)
	assert.Equal(t, models.DirectionNone, shielded.Direction)
}

func TestAgentsAreDeterministic(t *testing.T) {
	b := quietBundle()
	b.Patterns.Breakout = true
	b.VolumeAnomaly = 2
	b.Whales = []models.WhaleEvent{{Amount: 750000}, {Amount: 250000}}

	for _, a := range Roster() {
		first, err := a.Analyze(context.Background(), b, a.DefaultParams(), nil)
		require.NoError(t, err, a.Name())
		second, err := a.Analyze(context.Background(), b, a.DefaultParams(), nil)
		require.NoError(t, err, a.Name())
		assert.Equal(t, first, second, a.Name())
		assert.Equal(t, a.Name(), first.Agent)
		assert.Equal(t, a.Class(), first.Class)
		assert.NotEmpty(t, first.Signals, a.Name())
	}
}

func TestAgentsDoNotMutateBundle(t *testing.T) {
	b := quietBundle()
	b.Timeframes = []models.TimeframeView{{Interval: models.Interval1h, RSI: 30, MACD: 1, MACDSignal: 0, EMA9: 2, EMA21: 1}}
	before := *b
	before.Candles = append([]models.Candle(nil), b.Candles...)
	before.Timeframes = append([]models.TimeframeView(nil), b.Timeframes...)

	for _, a := range Roster() {
		_, err := a.Analyze(context.Background(), b, a.DefaultParams(), nil)
		require.NoError(t, err)
	}
	assert.Equal(t, before, *b)
}

func TestAnalyzeRejectsEmptyBundle(t *testing.T) {
	for _, a := range Roster() {
		_, err := a.Analyze(context.Background(), &models.FeatureBundle{}, a.DefaultParams(), nil)
		assert.ErrorIs(t, err, errEmptyBundle, a.Name())
	}
}

func TestAnalyzeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Scalp{}.Analyze(ctx, quietBundle(), Scalp{}.DefaultParams(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDumpPumpFlagsRegime(t *testing.T) {
	b := quietBundle()
	b.VolumeAnomaly = 3
	b.Candles[len(b.Candles)-1].Close = 104

	res := analyze(t, DumpPump{}, b, nil)
	assert.True(t, res.Anomaly)
	assert.True(t, res.Flags.DumpPump)
	assert.Less(t, res.Score, 0.0)
}

func TestVolumeReadsPrecomputedDumpPumpFlag(t *testing.T) {
	b := quietBundle()
	b.DumpPumpFlag = true

	res := analyze(t, Volume{}, b, nil)
	assert.True(t, res.Anomaly)
	assert.InDelta(t, 0.16, res.Risk, 1e-9)
	assert.InDelta(t, -0.21*0.24, res.Score, 1e-9)
}

func winningHistory(n int, dir models.Direction) []models.HistoryEntry {
	out := make([]models.HistoryEntry, n)
	for i := range out {
		out[i] = models.HistoryEntry{
			Result:   models.AgentResult{Direction: dir, Score: 0.8},
			Realized: dir,
		}
	}
	return out
}

func TestHistoryBoost(t *testing.T) {
	b := quietBundle()
	without := analyze(t, Volume{}, b, nil)
	with := analyze(t, Volume{}, b, winningHistory(11, models.DirectionLong))
	assert.InDelta(t, without.Score+0.07, with.Score, 1e-9)
	assert.InDelta(t, without.Confidence+0.04, with.Confidence, 1e-9)

	short := analyze(t, Volume{}, b, winningHistory(10, models.DirectionLong))
	assert.Equal(t, without.Score, short.Score)
}

func TestUnrealizedHistoryIsNotAWin(t *testing.T) {
	h := winningHistory(20, models.DirectionLong)
	for i := range h {
		h[i].Realized = ""
	}
	b := quietBundle()
	assert.Equal(t, analyze(t, Sentiment{}, b, nil).Score, analyze(t, Sentiment{}, b, h).Score)
}

func TestAnomalyDiscoveryCountsOutliers(t *testing.T) {
	b := quietBundle()
	b.Candles[len(b.Candles)-1].Close = 130

	res := analyze(t, AnomalyDiscovery{}, b, nil)
	assert.InDelta(t, 0.23, res.Score, 1e-9)
	assert.Contains(t, res.Signals[0], "price outlier 1x")
}
