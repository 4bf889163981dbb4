package models

import "sort"

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionNone  Direction = "none"
)

func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort || d == DirectionNone
}

// DirectionFromScore maps a score to a direction with a symmetric threshold.
func DirectionFromScore(score, threshold float64) Direction {
	switch {
	case score > threshold:
		return DirectionLong
	case score < -threshold:
		return DirectionShort
	default:
		return DirectionNone
	}
}

// StrategyClass is the holding horizon a result or decision belongs to.
type StrategyClass string

const (
	ClassScalp   StrategyClass = "scalp"
	ClassMidterm StrategyClass = "midterm"
	ClassHybrid  StrategyClass = "hybrid"
)

// Params are named numeric thresholds and weights of one agent.
// Boolean switches are stored as 0/1.
type Params map[string]float64

func (p Params) Get(key string) float64 { return p[key] }

// Int returns the value truncated to an int, for window sizes and counts.
func (p Params) Int(key string) int { return int(p[key]) }

func (p Params) Enabled(key string) bool { return p[key] != 0 }

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p with overrides applied.
func (p Params) Merge(overrides Params) Params {
	out := p.Clone()
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResultFlags are explicit indicators an agent raised while scoring.
type ResultFlags struct {
	DumpPump      bool `json:"dump_pump,omitempty"`
	Spoofing      bool `json:"spoofing,omitempty"`
	WhaleTransfer bool `json:"whale_transfer,omitempty"`
	Pattern       bool `json:"pattern,omitempty"`
}

// AgentResult is one agent's opinion on one instrument for one cycle.
type AgentResult struct {
	Agent       string        `json:"agent"`
	Class       StrategyClass `json:"class"`
	Score       float64       `json:"score"`
	Confidence  float64       `json:"confidence"`
	Risk        float64       `json:"risk"`
	Direction   Direction     `json:"direction"`
	Anomaly     bool          `json:"anomaly"`
	Flags       ResultFlags   `json:"flags"`
	Signals     []string      `json:"signals"`
	Explanation string        `json:"explanation"`
	Params      Params        `json:"params"`
	// Weight is set by the pool, not by the agent.
	Weight float64 `json:"weight"`
}

// HistoryEntry is a past result, annotated with the realized direction once
// a trade outcome for the instrument is known.
type HistoryEntry struct {
	CycleID  string      `json:"cycle_id,omitempty"`
	Result   AgentResult `json:"result"`
	Realized Direction   `json:"realized,omitempty"`
}

// Win reports whether the entry called the realized direction with
// conviction.
func (h HistoryEntry) Win() bool {
	return h.Realized != "" && h.Result.Direction == h.Realized && h.Result.Score > 0.1
}

// AgentStats are the cumulative outcome counters of one agent.
type AgentStats struct {
	Success int    `json:"success"`
	Fail    int    `json:"fail"`
	Params  Params `json:"params,omitempty"`
}
