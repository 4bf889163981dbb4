package agents

import (
	"context"
	"math"

	"TradeOrdu/internal/domain/models"
)

// Whale scores large transfers against price, funding and open interest.
type Whale struct{}

func (Whale) Name() string { return "whale" }
func (Whale) Class() models.StrategyClass { return models.ClassMidterm }

func (Whale) DefaultParams() models.Params {
	return models.Params{
		"min_funding_delta":       0.00014,
		"min_oi_change":           1.16,
		"min_whale_transfer":      2,
		"min_whale_usdt":          500000,
		"whale_funding_bonus":     0.24,
		"whale_oi_bonus":          0.18,
		"volume_burst_weight":     0.14,
		"orderbook_wall_penalty":  0.15,
		"pattern_confirm_weight":  0.19,
		"momentum_confirm_weight": 0.13,
		"max_anomaly_risk":        0.21,
		"dump_pump_shield":        1,
		"history_boost_window":    10,
		"direction_threshold":     0.45,
	}
}

func (a Whale) Analyze(ctx context.Context, b *models.FeatureBundle, p models.Params, history []models.HistoryEntry) (models.AgentResult, error) {
	if err := checkBundle(ctx, b); err != nil {
		return models.AgentResult{}, err
	}
	t := newTrace()

	n := len(b.Whales)
	flow := b.WhaleNetFlow()
	c := b.Candles
	price, prev := c[len(c)-1].Close, c[len(c)-2].Close

	if n > 0 && n >= p.Int("min_whale_transfer") && flow > p.Get("min_whale_usdt") {
		t.flags.WhaleTransfer = true
		t.confidence += 0.12
		t.addf(p.Get("whale_funding_bonus"), "%dx whale transfer (net %.2fM USDT)", n, flow/1e6)
	}
	if n >= 2 {
		if (price > prev && flow > 0) || (price < prev && flow < 0) {
			t.add(0.17, "whale flow agrees with price")
		} else {
			t.score -= 0.13
			t.hazard(0.11, false, "whale flow against price (fakeout risk)")
		}
	}

	fd := b.FundingDelta()
	switch {
	case fd > p.Get("min_funding_delta"):
		t.add(0.13, "funding rate rising (long bias)")
	case fd < -p.Get("min_funding_delta"):
		t.add(-0.13, "funding rate falling (short bias)")
	}

	oi := b.OIChange()
	switch {
	case oi > p.Get("min_oi_change"):
		t.add(p.Get("whale_oi_bonus"), "open interest rising")
	case oi < -p.Get("min_oi_change"):
		t.add(-p.Get("whale_oi_bonus"), "open interest falling")
	}

	if b.VolumeAnomaly > 1.28 {
		t.add(p.Get("volume_burst_weight"), "whale volume burst")
	}

	ob := b.OrderbookAnomaly
	if n > 0 {
		wall := math.Abs(flow) * 0.9
		if ob.BigBid > wall {
			t.score -= p.Get("orderbook_wall_penalty")
			t.hazard(0.12, false, "bid wall outweighs whale flow (fake pump risk)")
		}
		if ob.BigAsk > wall {
			t.score -= p.Get("orderbook_wall_penalty")
			t.hazard(0.12, false, "ask wall outweighs whale flow (fake dump risk)")
		}
	}
	if ob.Spoofing {
		t.flags.Spoofing = true
		t.hazard(0.18, true, "orderbook manipulation")
	}

	if b.Patterns.Breakout || b.Patterns.DoubleBottom {
		t.flags.Pattern = true
		t.add(p.Get("pattern_confirm_weight"), "whale + bullish pattern")
	}
	if b.Time.MomentumScore > 0.4 {
		t.add(p.Get("momentum_confirm_weight"), "whale + momentum")
	}

	if p.Enabled("dump_pump_shield") && b.DumpPumpFlag {
		t.score *= 0.18
		t.hazard(0.17, true, "dump/pump shield")
	}
	t.shield(p.Get("max_anomaly_risk"), 0.29, 0.63, "whale anomaly shield")
	t.boost(history, p.Int("history_boost_window"), 4, 0.09, 0.05, "past whale success")
	return t.result(a.Name(), a.Class(), p, p.Get("direction_threshold")), nil
}
