package models

import "time"

// ConsensusDecision is the fused opinion for one instrument in one cycle.
type ConsensusDecision struct {
	ID        string        `json:"id"`
	CycleID   string        `json:"cycle_id"`
	Symbol    string        `json:"symbol"`
	Timestamp time.Time     `json:"timestamp"`
	Direction Direction     `json:"direction"`
	Edge      float64       `json:"edge_strength"`
	Consensus float64       `json:"consensus_ratio"`
	Class     StrategyClass `json:"strategy_class"`

	Safe            bool   `json:"safe"`
	RiskExplanation string `json:"risk_explanation"`

	Overridden     bool     `json:"overridden"`
	OverrideReason string   `json:"override_reason,omitempty"`
	Anomalies      []string `json:"anomalies,omitempty"`
	RiskAlerts     []string `json:"risk_alerts,omitempty"`
	Explanation    string   `json:"explanation"`

	Results []AgentResult `json:"details"`
}

// WithSafety returns a copy of d carrying the risk filter verdict.
func (d ConsensusDecision) WithSafety(safe bool, explanation string) ConsensusDecision {
	d.Safe = safe
	d.RiskExplanation = explanation
	return d
}

// PatternAgents lists the agents that confirmed a chart pattern.
func (d ConsensusDecision) PatternAgents() []string {
	var out []string
	for _, r := range d.Results {
		if r.Flags.Pattern {
			out = append(out, r.Agent)
		}
	}
	return out
}

// PositionProposal is the sized trade idea derived from a decision.
type PositionProposal struct {
	Symbol      string        `json:"symbol"`
	Direction   Direction     `json:"direction"`
	Class       StrategyClass `json:"strategy_class"`
	Size        float64       `json:"size"`
	Stop        float64       `json:"stop"`
	Target      float64       `json:"target"`
	BaseRisk    float64       `json:"base_risk"`
	Confidence  float64       `json:"confidence"`
	Explanation string        `json:"explanation"`
}

// Report is what the reporting boundary receives per selected decision.
type Report struct {
	Decision ConsensusDecision `json:"decision"`
	Proposal PositionProposal  `json:"proposal"`
	Price    float64           `json:"price"`
	Patterns []string          `json:"patterns,omitempty"`
}

func (r Report) Symbol() string { return r.Decision.Symbol }

// TradeOutcome is a realized (or simulated) result of acting on a decision.
type TradeOutcome struct {
	DecisionID string    `json:"decision_id,omitempty"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Win        bool      `json:"win"`
	PnL        float64   `json:"pnl"`
	ClosedAt   time.Time `json:"closed_at"`
}

// Realized is the direction the market actually moved.
func (o TradeOutcome) Realized() Direction {
	if o.Win {
		return o.Direction
	}
	switch o.Direction {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return DirectionNone
	}
}

// PatternRecord is one entry of the discovered pattern registry.
type PatternRecord struct {
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Edge      float64   `json:"edge_strength"`
	Consensus float64   `json:"consensus_ratio"`
	Patterns  []string  `json:"patterns"`
	Seen      int       `json:"seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// DecisionRecord is a persisted decision row.
type DecisionRecord struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Direction Direction `json:"direction"`
	Class     string    `json:"strategy_class"`
	Edge      float64   `json:"edge_strength"`
	Consensus float64   `json:"consensus_ratio"`
	Safe      bool      `json:"safe"`
	Size      float64   `json:"size"`
	Stop      float64   `json:"stop"`
	Target    float64   `json:"target"`
	Price     float64   `json:"price"`
}
