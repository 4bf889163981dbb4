package agents

import (
	"context"

	"TradeOrdu/internal/domain/models"
)

// Volume scores volume bursts and the spot/futures volume balance.
type Volume struct{}

func (Volume) Name() string { return "volume" }
func (Volume) Class() models.StrategyClass { return models.ClassScalp }

func (Volume) DefaultParams() models.Params {
	return models.Params{
		"min_volume_spike":             1.38,
		"spot_futures_ratio_threshold": 2.5,
		"whale_volume_confirm":         0.16,
		"pattern_confirm_weight":       0.15,
		"momentum_confirm_weight":      0.13,
		"orderbook_confirm_weight":     0.12,
		"max_anomaly_risk":             0.19,
		"history_boost_window":         10,
		"dump_pump_penalty":            0.21,
		"direction_threshold":          0.31,
	}
}

func (a Volume) Analyze(ctx context.Context, b *models.FeatureBundle, p models.Params, history []models.HistoryEntry) (models.AgentResult, error) {
	if err := checkBundle(ctx, b); err != nil {
		return models.AgentResult{}, err
	}
	t := newTrace()

	if b.VolumeAnomaly > p.Get("min_volume_spike") {
		t.confidence += 0.09
		t.addf(0.27, "volume spike: %.2f", b.VolumeAnomaly)
	}

	ratio := b.Sentiment.SpotFuturesRatio
	if ratio == 0 {
		ratio = 1
	}
	if th := p.Get("spot_futures_ratio_threshold"); th > 0 {
		switch {
		case ratio > th:
			t.addf(0.19, "spot/futures volume ratio high (%.2f)", ratio)
		case ratio < 1/th:
			t.addf(-0.19, "futures volume dominant (%.2f)", ratio)
		}
	}

	if n := len(b.Whales); n > 0 {
		t.flags.WhaleTransfer = true
		t.add(p.Get("whale_volume_confirm")*float64(n), "whale volume shock")
	}
	if b.Patterns.Breakout || b.Patterns.DoubleBottom {
		t.flags.Pattern = true
		t.add(p.Get("pattern_confirm_weight"), "volume + bullish pattern")
	}
	if b.Time.MomentumScore > 0.25 {
		t.add(p.Get("momentum_confirm_weight"), "volume + momentum")
	}

	if b.OrderbookAnomaly.Spoofing || b.OrderbookAnomaly.Spread > 2.2 {
		t.flags.Spoofing = b.OrderbookAnomaly.Spoofing
		t.hazard(0.11, true, "volume + orderbook manipulation")
	}
	if b.DumpPumpFlag {
		t.score -= p.Get("dump_pump_penalty")
		t.hazard(0.16, true, "dump/pump regime")
	}

	t.boost(history, p.Int("history_boost_window"), 4, 0.07, 0.04, "past volume success")
	t.shield(p.Get("max_anomaly_risk"), 0.24, 0.59, "volume anomaly shield")
	return t.result(a.Name(), a.Class(), p, p.Get("direction_threshold")), nil
}
