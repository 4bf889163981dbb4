package feedback

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/internal/domain/repository"
	"TradeOrdu/pkg/logger"
)

// Document names in the state store.
const (
	StatsDoc    = "agent_stats"
	MetaDoc     = "meta_weights"
	PatternsDoc = "autoedge_patterns"
)

const (
	MinWeight   = 0.1
	MaxWeight   = 3.0
	MetaStep    = 0.05
	DefaultMeta = 1.0
)

// Weight is the smoothed success odds of an agent, clamped to
// [MinWeight, MaxWeight]. It is 1 with no history.
func Weight(success, fail int) float64 {
	w := float64(success+1) / float64(fail+1)
	return max(MinWeight, min(MaxWeight, w))
}

// MetaKey identifies an (instrument, direction) meta-weight.
func MetaKey(symbol string, dir models.Direction) string {
	return symbol + "_" + string(dir)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithMetrics(m repository.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Store owns agent stats, meta-weights and the discovered-pattern registry.
// Every mutation is written through to the state store; write failures
// are logged and the in-memory state stays authoritative.
type Store struct {
	mu       sync.RWMutex
	state    repository.StateStore
	logger   *logger.Logger
	metrics  repository.Metrics
	now      func() time.Time
	stats    map[string]models.AgentStats
	meta     map[string]float64
	patterns map[string]models.PatternRecord
}

func NewStore(state repository.StateStore, lgr *logger.Logger, opts ...Option) *Store {
	s := &Store{
		state:    state,
		logger:   lgr,
		now:      time.Now,
		stats:    make(map[string]models.AgentStats),
		meta:     make(map[string]float64),
		patterns: make(map[string]models.PatternRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads all three documents. Missing or unreadable documents leave the
// defaults in place.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]models.AgentStats)
	if s.load(ctx, StatsDoc, &stats) {
		s.stats = stats
	}
	meta := make(map[string]float64)
	if s.load(ctx, MetaDoc, &meta) {
		s.meta = meta
	}
	patterns := make(map[string]models.PatternRecord)
	if s.load(ctx, PatternsDoc, &patterns) {
		s.patterns = patterns
	}
	s.logger.Info("feedback state loaded",
		logger.Int("agents", len(s.stats)),
		logger.Int("meta_keys", len(s.meta)),
		logger.Int("patterns", len(s.patterns)))
}

func (s *Store) load(ctx context.Context, name string, dest any) bool {
	if s.state == nil {
		return false
	}
	err := s.state.Load(ctx, name, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.fail("load", name, err)
	}
	return false
}

func (s *Store) save(ctx context.Context, name string, v any) {
	if s.state == nil {
		return
	}
	if err := s.state.Save(ctx, name, v); err != nil {
		s.fail("save", name, err)
	}
}

func (s *Store) fail(op, name string, err error) {
	pf := &models.PersistenceFailure{Store: name, Op: op, Err: err}
	s.logger.Error("feedback persistence failed, keeping in-memory state", logger.Error(pf))
	if s.metrics != nil {
		s.metrics.RecordError("persistence")
	}
}

// RecordOutcome updates the counters of every agent in results. With an
// outcome a win counts for positive scores and a loss against negative
// ones; without one the score sign stands in for the outcome.
func (s *Store) RecordOutcome(ctx context.Context, results []models.AgentResult, outcome *models.TradeOutcome) {
	if len(results) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range results {
		st := s.stats[r.Agent]
		switch {
		case outcome != nil && outcome.Win && r.Score > 0:
			st.Success++
		case outcome != nil && !outcome.Win && r.Score < 0:
			st.Fail++
		case outcome == nil && r.Score > 0:
			st.Success++
		case outcome == nil && r.Score < 0:
			st.Fail++
		}
		if len(r.Params) > 0 {
			if st.Params == nil {
				st.Params = make(models.Params, len(r.Params))
			}
			for k, v := range r.Params {
				st.Params[k] = v
			}
		}
		s.stats[r.Agent] = st
	}
	s.save(ctx, StatsDoc, s.stats)
}

// Weights returns the weight of every named agent; unseen agents get 1.
func (s *Store) Weights(names []string) map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(names))
	for _, n := range names {
		st := s.stats[n]
		out[n] = Weight(st.Success, st.Fail)
	}
	return out
}

// RecordDecision nudges the meta-weight of the decision's (instrument,
// direction) pair up when it was safe and down otherwise.
func (s *Store) RecordDecision(ctx context.Context, d models.ConsensusDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := MetaKey(d.Symbol, d.Direction)
	w, ok := s.meta[key]
	if !ok {
		w = DefaultMeta
	}
	if d.Safe {
		w += MetaStep
	} else {
		w = max(MinWeight, w-MetaStep)
	}
	s.meta[key] = w
	s.save(ctx, MetaDoc, s.meta)
}

func (s *Store) MetaWeight(symbol string, dir models.Direction) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w, ok := s.meta[MetaKey(symbol, dir)]; ok {
		return w
	}
	return DefaultMeta
}

// RegisterPattern records a decision whose agents confirmed chart patterns.
// Records are keyed by the sorted pattern set and direction.
func (s *Store) RegisterPattern(ctx context.Context, d models.ConsensusDecision, patterns []string) (models.PatternRecord, bool) {
	if len(patterns) == 0 || len(d.PatternAgents()) == 0 {
		return models.PatternRecord{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	name := models.PatternKey(patterns) + "|" + string(d.Direction)
	rec, ok := s.patterns[name]
	if !ok {
		rec = models.PatternRecord{Name: name, Patterns: strings.Split(models.PatternKey(patterns), ",")}
	}
	rec.Symbol = d.Symbol
	rec.Direction = d.Direction
	rec.Edge = d.Edge
	rec.Consensus = d.Consensus
	rec.Seen++
	rec.LastSeen = s.now().UTC()
	s.patterns[name] = rec
	s.save(ctx, PatternsDoc, s.patterns)
	return rec, true
}

// Patterns lists the registry, most seen first.
func (s *Store) Patterns() []models.PatternRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PatternRecord, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seen != out[j].Seen {
			return out[i].Seen > out[j].Seen
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// View is a consistent copy of weights, counters and meta-weights.
func (s *Store) View(names []string) models.WeightsView {
	weights := s.Weights(names)

	s.mu.RLock()
	defer s.mu.RUnlock()
	v := models.WeightsView{
		Agents: weights,
		Stats:  make(map[string]models.AgentStats, len(s.stats)),
		Meta:   make(map[string]float64, len(s.meta)),
	}
	for k, st := range s.stats {
		if st.Params != nil {
			st.Params = st.Params.Clone()
		}
		v.Stats[k] = st
	}
	for k, w := range s.meta {
		v.Meta[k] = w
	}
	return v
}
