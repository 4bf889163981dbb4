package consensus

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"TradeOrdu/internal/domain/models"

	"github.com/google/uuid"
)

// Thresholds of the fused direction rule.
const (
	MinEdge      = 0.5
	MinConsensus = 0.65
	// RiskAlertLevel marks a result as a risk alert.
	RiskAlertLevel = 0.7
	topExplained   = 3
)

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDs(next func() string) Option {
	return func(e *Engine) { e.newID = next }
}

// Engine fuses weighted agent results into one decision per instrument.
// It holds no state between calls.
type Engine struct {
	now   func() time.Time
	newID func() string
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide fuses results. An empty set yields a none decision.
func (e *Engine) Decide(cycleID, symbol string, results []models.AgentResult) models.ConsensusDecision {
	d := models.ConsensusDecision{
		ID:        e.newID(),
		CycleID:   cycleID,
		Symbol:    symbol,
		Timestamp: e.now().UTC(),
		Direction: models.DirectionNone,
		Class:     models.ClassHybrid,
		Results:   results,
	}
	if len(results) == 0 {
		d.Explanation = "no agent results"
		return d
	}

	d.Edge = EdgeStrength(results)
	d.Consensus = Ratio(results)
	d.Class = Class(results)
	d.Direction = Direction(results, d.Edge, d.Consensus)

	for _, r := range results {
		if r.Anomaly {
			d.Anomalies = append(d.Anomalies, r.Agent)
		}
		if r.Risk > RiskAlertLevel {
			d.RiskAlerts = append(d.RiskAlerts, fmt.Sprintf("%s risk %.2f", r.Agent, r.Risk))
		}
	}

	block := explain(results, d.Edge, d.Consensus)
	if reason, ok := override(results); ok {
		d.Direction = models.DirectionNone
		d.Overridden = true
		d.OverrideReason = reason
		d.Explanation = reason + "\n" + block
		return d
	}
	d.Explanation = block
	return d
}

func weight(r models.AgentResult) float64 {
	if r.Weight <= 0 {
		return 1
	}
	return r.Weight
}

// EdgeStrength is the weight-averaged score.
func EdgeStrength(results []models.AgentResult) float64 {
	var num, den float64
	for _, r := range results {
		w := weight(r)
		num += r.Score * w
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Ratio is the share of results voting for the larger side.
func Ratio(results []models.AgentResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var long, short int
	for _, r := range results {
		switch r.Direction {
		case models.DirectionLong:
			long++
		case models.DirectionShort:
			short++
		}
	}
	return float64(max(long, short)) / float64(len(results))
}

// Direction applies the vote, edge and consensus thresholds. Voters count
// only when their score sign agrees with their direction.
func Direction(results []models.AgentResult, edge, ratio float64) models.Direction {
	var pos, neg int
	for _, r := range results {
		if r.Direction == models.DirectionLong && r.Score > 0 {
			pos++
		}
		if r.Direction == models.DirectionShort && r.Score < 0 {
			neg++
		}
	}
	switch {
	case pos > neg && edge > MinEdge && ratio > MinConsensus:
		return models.DirectionLong
	case neg > pos && edge < -MinEdge && ratio > MinConsensus:
		return models.DirectionShort
	default:
		return models.DirectionNone
	}
}

// Class is the majority horizon among directional results, or among all
// results when none is directional. Ties are hybrid.
func Class(results []models.AgentResult) models.StrategyClass {
	count := func(directional bool) (scalp, mid int) {
		for _, r := range results {
			if directional && r.Direction == models.DirectionNone {
				continue
			}
			switch r.Class {
			case models.ClassScalp:
				scalp++
			case models.ClassMidterm:
				mid++
			}
		}
		return scalp, mid
	}
	scalp, mid := count(true)
	if scalp+mid == 0 {
		scalp, mid = count(false)
	}
	switch {
	case scalp > mid:
		return models.ClassScalp
	case mid > scalp:
		return models.ClassMidterm
	default:
		return models.ClassHybrid
	}
}

func override(results []models.AgentResult) (string, bool) {
	var names []string
	for _, r := range results {
		if r.Anomaly || r.Flags.DumpPump {
			names = append(names, r.Agent)
		}
	}
	if len(names) == 0 {
		return "", false
	}
	return "dump/pump risk or anomaly detected by " + strings.Join(names, ", ") + "; no position", true
}

// explain joins the explanations of the strongest weighted contributors
// with the fused numbers and the raised flags.
func explain(results []models.AgentResult, edge, ratio float64) string {
	ranked := append([]models.AgentResult(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Score*weight(ranked[i])) > math.Abs(ranked[j].Score*weight(ranked[j]))
	})

	var parts []string
	for _, r := range ranked {
		if len(parts) == topExplained {
			break
		}
		if r.Explanation != "" {
			parts = append(parts, r.Explanation)
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(parts, " | "))
	fmt.Fprintf(&b, "\nEdge Strength: %.2f, Consensus: %.2f%%.", edge, ratio*100)

	var dump, spoof, whale bool
	for _, r := range results {
		dump = dump || r.Flags.DumpPump
		spoof = spoof || r.Flags.Spoofing
		whale = whale || r.Flags.WhaleTransfer
	}
	if dump {
		b.WriteString(" | Dump/pump danger!")
	}
	if spoof {
		b.WriteString(" | Orderbook manipulation risk!")
	}
	if whale {
		b.WriteString(" | Whale activity!")
	}
	return b.String()
}
