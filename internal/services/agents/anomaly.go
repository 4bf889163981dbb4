package agents

import (
	"context"
	"math"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/internal/services/features"
)

// AnomalyDiscovery treats statistical outliers across price, volume, book,
// whale, funding and sentiment inputs as opportunity.
type AnomalyDiscovery struct{}

func (AnomalyDiscovery) Name() string { return "anomaly_discovery" }
func (AnomalyDiscovery) Class() models.StrategyClass { return models.ClassMidterm }

func (AnomalyDiscovery) DefaultParams() models.Params {
	return models.Params{
		"z_score_threshold":         2.6,
		"z_score_window":            35,
		"ml_anomaly_weight":         0.23,
		"volume_outlier_weight":     0.14,
		"orderbook_outlier_weight":  0.13,
		"whale_outlier_weight":      0.13,
		"funding_oi_outlier_weight": 0.09,
		"sentiment_anomaly_weight":  0.10,
		"pattern_confirm_weight":    0.13,
		"max_anomaly_risk":          0.21,
		"history_boost_window":      10,
		"direction_threshold":       0.33,
	}
}

func (a AnomalyDiscovery) Analyze(ctx context.Context, b *models.FeatureBundle, p models.Params, history []models.HistoryEntry) (models.AgentResult, error) {
	if err := checkBundle(ctx, b); err != nil {
		return models.AgentResult{}, err
	}
	t := newTrace()

	closes := b.Closes()
	closes = closes[max(0, len(closes)-p.Int("z_score_window")):]
	outliers := 0
	for _, z := range features.ZScores(closes) {
		if math.Abs(z) > p.Get("z_score_threshold") {
			outliers++
		}
	}
	if outliers > 0 {
		t.addf(float64(outliers)*p.Get("ml_anomaly_weight"), "price outlier %dx (z > %.1f)", outliers, p.Get("z_score_threshold"))
	}

	if b.VolumeAnomaly > 2.1 {
		t.add(p.Get("volume_outlier_weight"), "volume outlier")
	}
	ob := b.OrderbookAnomaly
	if ob.Spoofing || ob.Spread > 3.1 {
		t.flags.Spoofing = ob.Spoofing
		t.score += p.Get("orderbook_outlier_weight")
		t.hazard(0.13, true, "orderbook outlier")
	}
	if len(b.Whales) > 1 {
		t.flags.WhaleTransfer = true
		t.add(p.Get("whale_outlier_weight"), "whale outlier")
	}
	if math.Abs(b.FundingDelta()) > 0.0014 {
		t.add(p.Get("funding_oi_outlier_weight"), "funding outlier")
	}
	if math.Abs(b.OIChange()) > 1.9 {
		t.add(p.Get("funding_oi_outlier_weight"), "open interest outlier")
	}
	if b.Sentiment.Anomaly > 0.6 {
		t.add(p.Get("sentiment_anomaly_weight"), "sentiment anomaly")
	}

	if b.Patterns.Breakout || b.Patterns.DoubleBottom {
		t.flags.Pattern = true
		t.add(p.Get("pattern_confirm_weight"), "anomaly + bullish pattern")
	}
	if b.Time.MomentumScore > 0.25 {
		t.add(0.07, "anomaly + momentum")
	}
	if b.DumpPumpFlag {
		t.hazard(0.13, true, "dump/pump regime")
	}

	t.boost(history, p.Int("history_boost_window"), 4, 0.08, 0.04, "past anomaly success")
	t.shield(p.Get("max_anomaly_risk"), 0.21, 0.51, "anomaly discovery shield")
	return t.result(a.Name(), a.Class(), p, p.Get("direction_threshold")), nil
}
