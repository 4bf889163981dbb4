package agents

import (
	"context"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/internal/services/features"
)

// Midterm follows the EMA21/EMA55/SMA200 trend stack with slope, RSI and
// macro-pattern confirmation.
type Midterm struct{}

func (Midterm) Name() string { return "midterm" }
func (Midterm) Class() models.StrategyClass { return models.ClassMidterm }

func (Midterm) DefaultParams() models.Params {
	return models.Params{
		"ema_fast":            21,
		"ema_slow":            55,
		"ma_long":             200,
		"rsi_trend_high":      62,
		"rsi_trend_low":       38,
		"trend_slope_window":  24,
		"pattern_confirm":     1,
		"min_volume_spike":    1.4,
		"min_trend_strength":  0.006,
		"whale_min_delta":     2,
		"max_volatility":      4.5,
		"max_anomaly_risk":    0.4,
		"direction_threshold": 0.8,
	}
}

func (a Midterm) Analyze(ctx context.Context, b *models.FeatureBundle, p models.Params, _ []models.HistoryEntry) (models.AgentResult, error) {
	if err := checkBundle(ctx, b); err != nil {
		return models.AgentResult{}, err
	}
	t := newTrace()
	ind := b.Indicators
	slope := features.Slope(b.Closes(), p.Int("trend_slope_window"))
	strength := p.Get("min_trend_strength")

	switch {
	case ind.EMA21 > ind.EMA55 && ind.EMA55 > ind.SMA200 && slope > strength:
		t.addConf(1.2, 0.2, "strong uptrend (EMA>EMA>MA, slope)")
	case ind.EMA21 < ind.EMA55 && ind.EMA55 < ind.SMA200 && slope < -strength:
		t.addConf(-1.2, 0.2, "strong downtrend (EMA<EMA<MA, slope)")
	}

	if ind.RSI > p.Get("rsi_trend_high") {
		t.add(0.35, "RSI trend high")
	}
	if ind.RSI < p.Get("rsi_trend_low") {
		t.add(-0.35, "RSI trend low")
	}

	if p.Enabled("pattern_confirm") {
		pt := b.Patterns
		if pt.DoubleBottom {
			t.addConf(0.6, 0.08, "double bottom")
		}
		if pt.DoubleTop {
			t.addConf(-0.6, 0.08, "double top")
		}
		if pt.Breakout {
			t.add(0.45, "major breakout")
		}
		if pt.Breakdown {
			t.add(-0.45, "major breakdown")
		}
		t.flags.Pattern = pt.DoubleBottom || pt.DoubleTop || pt.Breakout || pt.Breakdown
	}

	if b.VolumeAnomaly > p.Get("min_volume_spike") {
		t.add(0.2, "midterm volume rise")
	}
	if n := len(b.Whales); n > 0 && n >= p.Int("whale_min_delta") {
		t.flags.WhaleTransfer = true
		t.add(0.25, "whale activity")
	}

	if ind.Volatility > p.Get("max_volatility")*atrOr(ind.ATR, 1) {
		t.hazard(0.3, true, "excess volatility")
	}
	if b.OrderbookAnomaly.Spoofing {
		t.flags.Spoofing = true
		t.hazard(0.25, true, "midterm orderbook manipulation")
	}

	t.shield(p.Get("max_anomaly_risk"), 0.25, 0.6, "anomaly shield")
	return t.result(a.Name(), a.Class(), p, p.Get("direction_threshold")), nil
}
