package agents

import (
	"context"
	"math"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/internal/services/features"

	"gonum.org/v1/gonum/stat"
)

// Momentum is an oscillator ensemble with multi-timeframe agreement.
type Momentum struct{}

func (Momentum) Name() string { return "momentum" }
func (Momentum) Class() models.StrategyClass { return models.ClassScalp }

func (Momentum) DefaultParams() models.Params {
	return models.Params{
		"rsi_buy":               31,
		"rsi_sell":              69,
		"macd_cross_weight":     0.22,
		"stoch_buy":             13,
		"stoch_sell":            87,
		"roc_threshold":         2.6,
		"cci_buy":               -90,
		"cci_sell":              90,
		"slope_window":          10,
		"vol_spike_weight":      0.14,
		"osc_alert_bonus":       0.11,
		"momentum_spike_factor": 1.13,
		"whale_min":             1,
		"multi_timeframe_bonus": 0.21,
		"max_anomaly_risk":      0.24,
		"trend_strength_thresh": 0.0055,
		"pattern_conf_weight":   0.18,
		"past_win_boost":        0.17,
		"fakeout_penalty":       0.19,
		"history_boost_window":  12,
		"direction_threshold":   0.5,
	}
}

func (a Momentum) Analyze(ctx context.Context, b *models.FeatureBundle, p models.Params, history []models.HistoryEntry) (models.AgentResult, error) {
	if err := checkBundle(ctx, b); err != nil {
		return models.AgentResult{}, err
	}
	t := newTrace()
	ind := b.Indicators

	mtf := multiTimeframe(b)
	switch {
	case mtf > 0.5:
		t.add(p.Get("multi_timeframe_bonus"), "multi-timeframe upward momentum")
	case mtf < -0.5:
		t.add(-p.Get("multi_timeframe_bonus"), "multi-timeframe downward momentum")
	}

	if ind.RSI < p.Get("rsi_buy") {
		t.add(0.31, "RSI dip")
	}
	if ind.RSI > p.Get("rsi_sell") {
		t.add(-0.31, "RSI top")
	}
	if ind.StochK < p.Get("stoch_buy") {
		t.add(0.21, "stoch oversold")
	}
	if ind.StochK > p.Get("stoch_sell") {
		t.add(-0.21, "stoch overbought")
	}
	if ind.CCI < p.Get("cci_buy") {
		t.add(0.14, "CCI oversold")
	}
	if ind.CCI > p.Get("cci_sell") {
		t.add(-0.14, "CCI overbought")
	}
	if ind.ROC > p.Get("roc_threshold") {
		t.add(0.18, "ROC momentum up")
	}
	if ind.ROC < -p.Get("roc_threshold") {
		t.add(-0.18, "ROC momentum down")
	}
	if b.Alerts.MACDCrossUp {
		t.addConf(p.Get("macd_cross_weight"), 0.07, "MACD buy cross")
	}
	if b.Alerts.MACDCrossDown {
		t.addConf(-p.Get("macd_cross_weight"), 0.07, "MACD sell cross")
	}

	if b.VolumeAnomaly > p.Get("momentum_spike_factor") {
		t.add(p.Get("vol_spike_weight"), "volume spike")
	}
	if n := len(b.Whales); n > 0 && n >= p.Int("whale_min") {
		t.flags.WhaleTransfer = true
		t.addf(0.08*float64(n), "%dx whale momentum", n)
	}

	if slope := features.Slope(b.Closes(), p.Int("slope_window")); math.Abs(slope) > p.Get("trend_strength_thresh") {
		t.addf(sign(slope)*0.13, "slope trend %.5f", slope)
	}

	if b.Patterns.Breakout || b.Patterns.DoubleBottom {
		t.flags.Pattern = true
		t.add(p.Get("pattern_conf_weight"), "momentum + breakout pattern")
	}

	if n := b.Alerts.Count(); n > 0 {
		t.addf(p.Get("osc_alert_bonus")*float64(n), "%d oscillator alerts", n)
	}

	if ind.Volatility > 2.4*atrOr(ind.ATR, 1) {
		t.hazard(0.12, true, "volatility anomaly")
	}
	if b.OrderbookAnomaly.Spoofing || b.OrderbookAnomaly.Spread > 2.5 {
		t.flags.Spoofing = b.OrderbookAnomaly.Spoofing
		t.score -= p.Get("fakeout_penalty")
		t.hazard(0.14, true, "orderbook anomaly / fakeout penalty")
	}

	t.boost(history, p.Int("history_boost_window"), 6, p.Get("past_win_boost"), 0.07, "past momentum success")

	t.shield(p.Get("max_anomaly_risk"), 0.29, 0.6, "momentum anomaly shield")
	return t.result(a.Name(), a.Class(), p, p.Get("direction_threshold")), nil
}

// multiTimeframe averages the trend votes of the primary and every secondary
// timeframe: +1 for a bullish setup, -1 for a bearish one.
func multiTimeframe(b *models.FeatureBundle) float64 {
	ind := b.Indicators
	views := append([]models.TimeframeView{{
		Interval:   b.Interval,
		RSI:        ind.RSI,
		MACD:       ind.MACD,
		MACDSignal: ind.MACDSignal,
		EMA9:       ind.EMA9,
		EMA21:      ind.EMA21,
	}}, b.Timeframes...)

	votes := make([]float64, len(views))
	for i, v := range views {
		switch {
		case v.RSI < 40 && v.MACD > v.MACDSignal && v.EMA9 > v.EMA21:
			votes[i] = 1
		case v.RSI > 60 && v.MACD < v.MACDSignal && v.EMA9 < v.EMA21:
			votes[i] = -1
		}
	}
	return stat.Mean(votes, nil)
}
