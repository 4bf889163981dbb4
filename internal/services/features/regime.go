package features

import (
	"fmt"
	"math"

	"TradeOrdu/internal/domain/models"
)

// DumpPumpThresholds are the limits of the dump/pump regime rule.
type DumpPumpThresholds struct {
	VolSpike   float64 // volume anomaly ratio
	PriceSpike float64 // fractional close-to-close move
	Funding    float64 // absolute funding delta
	OI         float64 // absolute open-interest change, percent
	Spread     float64 // absolute spread
}

var DefaultDumpPumpThresholds = DumpPumpThresholds{
	VolSpike:   2.55,
	PriceSpike: 0.027,
	Funding:    0.0019,
	OI:         2.15,
	Spread:     3.3,
}

// DumpPumpAssessment is the outcome of the regime rule with its scoring trace.
type DumpPumpAssessment struct {
	Score   float64
	Risk    float64
	Anomaly bool
	Signals []string
}

// Flagged is the regime flag: elevated risk or a hard anomaly.
func (a DumpPumpAssessment) Flagged() bool { return a.Risk > 0.15 || a.Anomaly }

// PriceChange is |close[-1] - close[-2]| / close[-2].
func PriceChange(candles []models.Candle) float64 {
	n := len(candles)
	if n < 2 || candles[n-2].Close == 0 {
		return 0
	}
	return math.Abs(candles[n-1].Close-candles[n-2].Close) / candles[n-2].Close
}

// AssessDumpPump applies the volume/price spike, whale, funding/OI and
// order-book wipe rules. It reads only fields that exist before the
// regime flag is set.
func AssessDumpPump(b *models.FeatureBundle, th DumpPumpThresholds) DumpPumpAssessment {
	var a DumpPumpAssessment
	change := PriceChange(b.Candles)

	switch {
	case b.VolumeAnomaly > th.VolSpike && change > th.PriceSpike:
		a.Score -= 0.21
		a.Risk += 0.11
		a.Anomaly = true
		a.Signals = append(a.Signals, "volume and price spike")
	case b.VolumeAnomaly > th.VolSpike:
		a.Risk += 0.09
		a.Signals = append(a.Signals, "volume spike (trap risk)")
	case change > th.PriceSpike:
		a.Risk += 0.09
		a.Signals = append(a.Signals, "price spike (trap risk)")
	}

	if n := len(b.Whales); n > 0 {
		a.Score -= 0.09 * float64(n)
		a.Risk += 0.04 * float64(n)
		a.Signals = append(a.Signals, fmt.Sprintf("%dx whale transfer", n))
	}

	if math.Abs(b.FundingDelta()) > th.Funding {
		a.Risk += 0.13
		a.Anomaly = true
		a.Signals = append(a.Signals, "funding spike")
	}
	if math.Abs(b.OIChange()) > th.OI {
		a.Risk += 0.13
		a.Anomaly = true
		a.Signals = append(a.Signals, "open interest spike")
	}

	if b.OrderbookAnomaly.Spoofing || b.OrderbookAnomaly.Spread > th.Spread {
		a.Score -= 0.15
		a.Risk += 0.13
		a.Anomaly = true
		a.Signals = append(a.Signals, "order book wipe/fakeout")
	}
	return a
}
