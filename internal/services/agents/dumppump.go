package agents

import (
	"context"
	"math"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/internal/services/features"
)

// DumpPump detects pump-and-dump regimes. Its regime rule is the same one
// the bundle builder evaluates before fan-out.
type DumpPump struct{}

func (DumpPump) Name() string { return "dump_pump" }
func (DumpPump) Class() models.StrategyClass { return models.ClassScalp }

func (DumpPump) DefaultParams() models.Params {
	th := features.DefaultDumpPumpThresholds
	return models.Params{
		"dump_pump_vol_spike":     th.VolSpike,
		"dump_pump_price_spike":   th.PriceSpike,
		"funding_spike":           th.Funding,
		"oi_spike":                th.OI,
		"orderbook_wipe_spread":   th.Spread,
		"pattern_reverse_weight":  0.21,
		"volume_confirm_weight":   0.16,
		"momentum_confirm_weight": 0.13,
		"max_anomaly_risk":        0.23,
		"history_boost_window":    12,
		"direction_threshold":     0.25,
	}
}

// Thresholds extracts the regime limits from p.
func (DumpPump) Thresholds(p models.Params) features.DumpPumpThresholds {
	return features.DumpPumpThresholds{
		VolSpike:   p.Get("dump_pump_vol_spike"),
		PriceSpike: p.Get("dump_pump_price_spike"),
		Funding:    p.Get("funding_spike"),
		OI:         p.Get("oi_spike"),
		Spread:     p.Get("orderbook_wipe_spread"),
	}
}

func (a DumpPump) Analyze(ctx context.Context, b *models.FeatureBundle, p models.Params, history []models.HistoryEntry) (models.AgentResult, error) {
	if err := checkBundle(ctx, b); err != nil {
		return models.AgentResult{}, err
	}
	regime := features.AssessDumpPump(b, a.Thresholds(p))
	t := newTrace()
	t.score = regime.Score
	t.risk = regime.Risk
	t.anomaly = regime.Anomaly
	t.signals = append(t.signals, regime.Signals...)
	t.flags.Spoofing = b.OrderbookAnomaly.Spoofing
	t.flags.WhaleTransfer = len(b.Whales) > 0

	rev := p.Get("pattern_reverse_weight")
	if b.Patterns.DoubleTop || b.Patterns.Breakdown {
		t.flags.Pattern = true
		t.add(-rev, "dump/pump + bearish pattern")
	}
	if b.Patterns.DoubleBottom || b.Patterns.Breakout {
		t.flags.Pattern = true
		t.add(-rev*0.6, "dump/pump + bullish pattern (fakeout risk)")
	}
	if b.Time.MomentumScore < -0.28 {
		t.add(-p.Get("momentum_confirm_weight"), "dump/pump + downward momentum")
	}
	if b.VolumeAnomaly > 1.5 {
		t.add(-p.Get("volume_confirm_weight"), "dump/pump + volume")
	}

	if w := p.Int("history_boost_window"); w > 0 && len(history) > w {
		flat := 0
		for _, e := range history[len(history)-w:] {
			if math.Abs(e.Result.Score) < 0.05 {
				flat++
			}
		}
		if flat > 4 {
			t.hazard(0.09, false, "dump/pump history risk")
		}
	}

	t.shield(p.Get("max_anomaly_risk"), 0.21, 0.58, "dump/pump anomaly shield")
	t.flags.DumpPump = t.risk > 0.15 || t.anomaly
	return t.result(a.Name(), a.Class(), p, p.Get("direction_threshold")), nil
}
