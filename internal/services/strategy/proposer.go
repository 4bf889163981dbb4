package strategy

import (
	"fmt"
	"math"
	"strings"

	"TradeOrdu/internal/domain/models"
)

// Config holds the sizing constants.
type Config struct {
	BaseRisk        float64
	MinSize         float64
	MaxSize         float64
	PatternBonus    float64
	AnomalyScale    float64
	VolatilityScale float64
	VolatilityATR   float64
	StopATR         float64
	FallbackStop    float64
	ScalpTarget     float64
	TrendTarget     float64
	MinSafeEdge     float64
}

func DefaultConfig() Config {
	return Config{
		BaseRisk:        0.015,
		MinSize:         0.2,
		MaxSize:         1.0,
		PatternBonus:    0.2,
		AnomalyScale:    0.25,
		VolatilityScale: 0.5,
		VolatilityATR:   3,
		StopATR:         2,
		FallbackStop:    0.007,
		ScalpTarget:     2.2,
		TrendTarget:     3.0,
		MinSafeEdge:     0.2,
	}
}

// Input is everything a proposal is derived from.
type Input struct {
	Symbol    string
	Direction models.Direction
	Edge      float64
	Class     models.StrategyClass
	Results   []models.AgentResult
	Time      models.TimeFeatures
}

type Proposer struct {
	cfg Config
}

func NewProposer(cfg Config) *Proposer {
	return &Proposer{cfg: cfg}
}

// Suggest sizes a position and places stop and target distances.
func (p *Proposer) Suggest(in Input) models.PositionProposal {
	c := p.cfg

	patterns := 0
	confidence := 0.0
	flagged := false
	for _, r := range in.Results {
		if r.Flags.Pattern {
			patterns++
		}
		confidence += r.Confidence
		flagged = flagged || r.Anomaly || r.Flags.DumpPump
	}
	if len(in.Results) > 0 {
		confidence /= float64(len(in.Results))
	}

	size := math.Abs(in.Edge) * confidence * (1 + c.PatternBonus*float64(patterns))
	size = math.Max(c.MinSize, math.Min(c.MaxSize, size))
	if flagged {
		size *= c.AnomalyScale
	}
	atr, vol := in.Time.ATR, in.Time.Volatility
	if validATR(atr) && vol > c.VolatilityATR*atr {
		size *= c.VolatilityScale
	}

	stop := c.FallbackStop
	if validATR(atr) {
		stop = c.StopATR * atr
	}
	mult := c.TrendTarget
	if in.Class == models.ClassScalp {
		mult = c.ScalpTarget
	}
	target := stop * mult

	if in.Direction == models.DirectionNone {
		size = 0
	}

	expl := fmt.Sprintf("Size: %.2f | Stop: %.4f | TP: %.4f | Edge: %.2f | Risk: %.2f%%",
		size, stop, target, in.Edge, c.BaseRisk*100)
	switch in.Class {
	case models.ClassScalp:
		expl += " | fast take-profit, small position"
	case models.ClassMidterm:
		expl += " | midterm, higher potential"
	}

	return models.PositionProposal{
		Symbol:      in.Symbol,
		Direction:   in.Direction,
		Class:       in.Class,
		Size:        size,
		Stop:        stop,
		Target:      target,
		BaseRisk:    c.BaseRisk,
		Confidence:  confidence,
		Explanation: expl,
	}
}

// Filter marks a result set unsafe on any anomaly, spoofing or dump/pump
// indicator, or a weak edge. Unsafe proposals are still returned to callers.
func (p *Proposer) Filter(results []models.AgentResult, edge float64) (bool, string) {
	var reasons []string
	for _, r := range results {
		if r.Anomaly || r.Flags.Spoofing || r.Flags.DumpPump {
			reasons = append(reasons, "dump/pump or orderbook manipulation risk")
			break
		}
	}
	if math.Abs(edge) < p.cfg.MinSafeEdge {
		reasons = append(reasons, "weak edge")
	}
	if len(reasons) == 0 {
		return true, ""
	}
	return false, strings.Join(reasons, " | ") + " | opening a position is not advised"
}

// Evaluate runs the filter and the sizing for a fused decision.
func (p *Proposer) Evaluate(d models.ConsensusDecision, tf models.TimeFeatures) (models.ConsensusDecision, models.PositionProposal) {
	safe, why := p.Filter(d.Results, d.Edge)
	proposal := p.Suggest(Input{
		Symbol:    d.Symbol,
		Direction: d.Direction,
		Edge:      d.Edge,
		Class:     d.Class,
		Results:   d.Results,
		Time:      tf,
	})
	return d.WithSafety(safe, why), proposal
}

func validATR(atr float64) bool {
	return atr > 0 && !math.IsNaN(atr) && !math.IsInf(atr, 0)
}
