package agents

import (
	"context"

	"TradeOrdu/internal/domain/models"
)

// Orderbook reads walls, spoofing and spread from the depth snapshot.
type Orderbook struct{}

func (Orderbook) Name() string { return "orderbook" }
func (Orderbook) Class() models.StrategyClass { return models.ClassScalp }

func (Orderbook) DefaultParams() models.Params {
	return models.Params{
		"min_wall_size":           200000,
		"max_spread_atr":          1.8,
		"spoof_factor":            7,
		"instant_spike_factor":    2.9,
		"orderbook_score_weight":  0.31,
		"pattern_confirm_weight":  0.19,
		"whale_confirm_weight":    0.12,
		"momentum_confirm_weight": 0.14,
		"max_anomaly_risk":        0.24,
		"history_boost_window":    12,
		"direction_threshold":     0.37,
	}
}

func (a Orderbook) Analyze(ctx context.Context, b *models.FeatureBundle, p models.Params, history []models.HistoryEntry) (models.AgentResult, error) {
	if err := checkBundle(ctx, b); err != nil {
		return models.AgentResult{}, err
	}
	t := newTrace()
	ob := b.OrderbookAnomaly

	if ob.BigBid > p.Get("min_wall_size") {
		t.addf(p.Get("orderbook_score_weight"), "big bid wall: %.0f", ob.BigBid)
	}
	if ob.BigAsk > p.Get("min_wall_size") {
		t.addf(-p.Get("orderbook_score_weight"), "big ask wall: %.0f", ob.BigAsk)
	}

	if ob.Spoofing {
		t.flags.Spoofing = true
		t.score -= 0.19
		t.hazard(0.22, true, "spoofing detected")
	}
	if ob.Spread > atrOr(b.Indicators.ATR, 1)*p.Get("max_spread_atr") {
		t.hazard(0.12, true, "spread anomaly")
	}

	if b.VolumeAnomaly > p.Get("instant_spike_factor") {
		t.addConf(0.15, 0.05, "instant volume spike")
	}
	if n := len(b.Whales); n > 0 {
		t.flags.WhaleTransfer = true
		t.add(p.Get("whale_confirm_weight")*float64(n), "orderbook + whale flow")
	}
	if b.Patterns.Breakout {
		t.flags.Pattern = true
		t.add(p.Get("pattern_confirm_weight"), "orderbook + breakout")
	}
	if b.Time.MomentumScore > 0.3 {
		t.add(p.Get("momentum_confirm_weight"), "orderbook + momentum")
	}

	t.shield(p.Get("max_anomaly_risk"), 0.19, 0.67, "orderbook anomaly shield")
	t.boost(history, p.Int("history_boost_window"), 5, 0.07, 0.04, "past orderbook success")
	return t.result(a.Name(), a.Class(), p, p.Get("direction_threshold")), nil
}
