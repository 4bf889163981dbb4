package agents

import (
	"fmt"
	"math"
	"strings"

	"TradeOrdu/internal/domain/models"
)

// trace accumulates one analysis. Every contribution carries a signal tag
// so the explanation can be rebuilt from the trace alone.
type trace struct {
	score      float64
	confidence float64
	risk       float64
	anomaly    bool
	flags      models.ResultFlags
	signals    []string
}

func newTrace() *trace { return &trace{confidence: 0.5} }

func (t *trace) add(delta float64, signal string) {
	t.score += delta
	t.signals = append(t.signals, signal)
}

func (t *trace) addf(delta float64, format string, args ...any) {
	t.add(delta, fmt.Sprintf(format, args...))
}

// addConf adds to both score and confidence.
func (t *trace) addConf(delta, conf float64, signal string) {
	t.confidence += conf
	t.add(delta, signal)
}

// hazard raises risk and optionally the anomaly flag.
func (t *trace) hazard(risk float64, anomaly bool, signal string) {
	t.risk += risk
	t.anomaly = t.anomaly || anomaly
	t.signals = append(t.signals, signal)
}

func (t *trace) note(signal string) { t.signals = append(t.signals, signal) }

// shield damps score and confidence when risk exceeds maxRisk or an
// anomaly fired. It reports whether it applied.
func (t *trace) shield(maxRisk, scoreMul, confMul float64, label string) bool {
	if t.risk <= maxRisk && !t.anomaly {
		return false
	}
	t.score *= scoreMul
	t.confidence *= confMul
	t.note(label)
	return true
}

// boost rewards a recent hit rate: more than minWins wins among the last
// window entries, once the history is longer than window.
func (t *trace) boost(history []models.HistoryEntry, window, minWins int, score, conf float64, label string) {
	if window <= 0 || len(history) <= window {
		return
	}
	if countWins(history[len(history)-window:]) <= minWins {
		return
	}
	t.addConf(score, conf, label)
}

func countWins(entries []models.HistoryEntry) int {
	n := 0
	for _, e := range entries {
		if e.Win() {
			n++
		}
	}
	return n
}

// result freezes the trace into an AgentResult with a symmetric direction
// threshold.
func (t *trace) result(name string, class models.StrategyClass, params models.Params, threshold float64) models.AgentResult {
	conf := math.Max(0, math.Min(1, t.confidence))
	body := "no signals"
	if len(t.signals) > 0 {
		body = strings.Join(t.signals, " | ")
	}
	return models.AgentResult{
		Agent:       name,
		Class:       class,
		Score:       t.score,
		Confidence:  conf,
		Risk:        t.risk,
		Direction:   models.DirectionFromScore(t.score, threshold),
		Anomaly:     t.anomaly,
		Flags:       t.flags,
		Signals:     append([]string(nil), t.signals...),
		Explanation: fmt.Sprintf("%s: %s | Score: %.2f, Confidence: %.2f, Risk: %.2f", name, body, t.score, conf, t.risk),
		Params:      params.Clone(),
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// atrOr returns atr, or def when the series was too short to produce one.
func atrOr(atr, def float64) float64 {
	if math.IsNaN(atr) {
		return def
	}
	return atr
}
