package agents

import (
	"context"
	"errors"
	"math"

	"TradeOrdu/internal/domain/models"
)

var errEmptyBundle = errors.New("bundle has no candles")

func checkBundle(ctx context.Context, b *models.FeatureBundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b == nil || len(b.Candles) < 2 {
		return errEmptyBundle
	}
	return nil
}

// Scalp looks for short-horizon reversals confirmed by oscillators,
// patterns, volume and whale activity.
type Scalp struct{}

func (Scalp) Name() string { return "scalp" }
func (Scalp) Class() models.StrategyClass { return models.ClassScalp }

func (Scalp) DefaultParams() models.Params {
	return models.Params{
		"rsi_lower":              23,
		"rsi_upper":              77,
		"ema_fast":               9,
		"ema_slow":               21,
		"atr_mult":               1.4,
		"min_volume_spike":       1.7,
		"confirm_pattern":        1,
		"orderbook_spoof_factor": 7,
		"whale_min_delta":        3,
		"max_anomaly_risk":       0.6,
		"direction_threshold":    0.75,
	}
}

func (a Scalp) Analyze(ctx context.Context, b *models.FeatureBundle, p models.Params, _ []models.HistoryEntry) (models.AgentResult, error) {
	if err := checkBundle(ctx, b); err != nil {
		return models.AgentResult{}, err
	}
	t := newTrace()
	ind := b.Indicators
	last := b.LastClose()

	if ind.RSI < p.Get("rsi_lower") && ind.MACD > ind.MACDSignal && ind.EMA9 > ind.EMA21 {
		t.addConf(1.4, 0.15, "RSI oversold + MACD buy + EMA cross up")
	}
	if ind.RSI > p.Get("rsi_upper") && ind.MACD < ind.MACDSignal && ind.EMA9 < ind.EMA21 {
		t.addConf(-1.4, 0.15, "RSI overbought + MACD sell + EMA cross down")
	}
	if last != 0 && math.Abs(ind.EMA9-ind.EMA21)/last > 0.003 {
		t.add(sign(ind.EMA9-ind.EMA21)*0.3, "EMA spread strength")
	}

	if p.Enabled("confirm_pattern") {
		pt := b.Patterns
		if pt.DoubleBottom {
			t.addConf(0.5, 0.10, "double bottom")
		}
		if pt.DoubleTop {
			t.addConf(-0.5, 0.10, "double top")
		}
		if pt.BullishEngulfing {
			t.add(0.3, "bullish engulfing")
		}
		if pt.BearishEngulfing {
			t.add(-0.3, "bearish engulfing")
		}
		if pt.Breakout {
			t.add(0.4, "breakout")
		}
		if pt.Breakdown {
			t.add(-0.4, "breakdown")
		}
		t.flags.Pattern = pt.DoubleBottom || pt.DoubleTop || pt.BullishEngulfing || pt.BearishEngulfing || pt.Breakout || pt.Breakdown
	}

	if b.VolumeAnomaly > p.Get("min_volume_spike") {
		t.addConf(0.25, 0.05, "volume spike")
	}
	if b.VolumeAnomaly < 0.6 {
		t.add(-0.25, "volume drought")
	}

	if b.OrderbookAnomaly.Spoofing {
		t.flags.Spoofing = true
		t.hazard(0.3, true, "orderbook spoofing")
	}
	if b.OrderbookAnomaly.Spread > ind.ATR*p.Get("atr_mult") {
		t.hazard(0.15, false, "spread anomaly")
	}

	if len(b.Whales) >= p.Int("whale_min_delta") && len(b.Whales) > 0 {
		t.flags.WhaleTransfer = true
		t.addConf(0.4, 0.08, "whale transfer cluster")
	}

	if b.Alerts.RSIExtreme() {
		t.hazard(0.07, false, "RSI extreme alert")
	}

	t.shield(p.Get("max_anomaly_risk"), 0.2, 0.5, "anomaly shield")
	return t.result(a.Name(), a.Class(), p, p.Get("direction_threshold")), nil
}
