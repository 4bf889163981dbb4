package agents

import (
	"context"

	"TradeOrdu/internal/domain/models"
)

// patternWeights score each chart pattern; doji only adds risk.
var patternWeights = []struct {
	name   string
	weight float64
	on     func(models.Patterns) bool
}{
	{"double_bottom", 0.8, func(p models.Patterns) bool { return p.DoubleBottom }},
	{"double_top", -0.8, func(p models.Patterns) bool { return p.DoubleTop }},
	{"bullish_engulfing", 0.42, func(p models.Patterns) bool { return p.BullishEngulfing }},
	{"bearish_engulfing", -0.42, func(p models.Patterns) bool { return p.BearishEngulfing }},
	{"doji", 0, func(p models.Patterns) bool { return p.Doji }},
	{"breakout", 0.66, func(p models.Patterns) bool { return p.Breakout }},
	{"breakdown", -0.66, func(p models.Patterns) bool { return p.Breakdown }},
	{"wedge", 0.18, func(p models.Patterns) bool { return p.Wedge }},
}

// Pattern scores the detected chart patterns plus a meta score built from
// volume, whale and order-book context.
type Pattern struct{}

func (Pattern) Name() string { return "pattern" }
func (Pattern) Class() models.StrategyClass { return models.ClassMidterm }

func (Pattern) DefaultParams() models.Params {
	return models.Params{
		"pattern_min_score":        0.45,
		"multi_pattern_bonus":      0.22,
		"max_anomaly_risk":         0.38,
		"volume_confirm_weight":    0.19,
		"whale_confirm_weight":     0.11,
		"orderbook_confirm_weight": 0.12,
		"volatility_penalty":       0.17,
		"min_pattern_count":        1,
	}
}

func (a Pattern) Analyze(ctx context.Context, b *models.FeatureBundle, p models.Params, _ []models.HistoryEntry) (models.AgentResult, error) {
	if err := checkBundle(ctx, b); err != nil {
		return models.AgentResult{}, err
	}
	t := newTrace()

	var hits []string
	for _, w := range patternWeights {
		if !w.on(b.Patterns) {
			continue
		}
		if w.name == "doji" {
			t.hazard(0.13, false, "doji indecision")
			continue
		}
		hits = append(hits, w.name)
		t.addf(w.weight, "pattern %s", w.name)
	}
	t.flags.Pattern = len(hits) > 0

	meta, count := a.metaScore(b)
	t.addf(meta, "meta score %.2f", meta)

	if count >= p.Int("min_pattern_count") && count > 0 {
		spoof := 0.0
		if b.OrderbookAnomaly.Spoofing {
			spoof = 1
		}
		confirm := (b.VolumeAnomaly-1)*p.Get("volume_confirm_weight") +
			float64(len(b.Whales))*p.Get("whale_confirm_weight") -
			spoof*p.Get("orderbook_confirm_weight")
		t.addf(confirm, "pattern ensemble %v with volume/whale/orderbook confirmation", hits)
	}

	ind := b.Indicators
	if ind.Volatility > 2.7*atrOr(ind.ATR, 1) {
		t.score -= p.Get("volatility_penalty")
		t.hazard(0.18, true, "volatility penalty")
	}
	if b.OrderbookAnomaly.Spoofing {
		t.flags.Spoofing = true
	}

	t.shield(p.Get("max_anomaly_risk"), 0.23, 0.5, "pattern anomaly shield")
	return t.result(a.Name(), a.Class(), p, p.Get("pattern_min_score")), nil
}

// metaScore blends pattern count with volume, whale and order-book context.
func (Pattern) metaScore(b *models.FeatureBundle) (float64, int) {
	count := b.Patterns.Count()
	meta := 0.17 * float64(count)
	meta += b.VolumeAnomaly * 0.08
	meta += float64(len(b.Whales)) * 0.04
	if b.OrderbookAnomaly.Spoofing {
		meta -= 0.15
	}
	meta -= b.OrderbookAnomaly.Spread * 0.05
	if b.Indicators.Volatility > 2.7*atrOr(b.Indicators.ATR, 1) {
		meta -= 0.13
	}
	return meta, count
}
