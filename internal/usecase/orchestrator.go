package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
	"TradeOrdu/pkg/logger"
	"TradeOrdu/pkg/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Runner interface {
	Run(ctx context.Context, bundle *models.FeatureBundle, weights map[string]float64) ([]models.AgentResult, []error)
}

type Decider interface {
	Decide(cycleID, symbol string, results []models.AgentResult) models.ConsensusDecision
}

type Evaluator interface {
	Evaluate(d models.ConsensusDecision, tf models.TimeFeatures) (models.ConsensusDecision, models.PositionProposal)
}

// Feedback is the learning side the orchestrator writes after a cycle.
type Feedback interface {
	Weights(names []string) map[string]float64
	RecordOutcome(ctx context.Context, results []models.AgentResult, outcome *models.TradeOutcome)
	RecordDecision(ctx context.Context, d models.ConsensusDecision)
	RegisterPattern(ctx context.Context, d models.ConsensusDecision, patterns []string) (models.PatternRecord, bool)
}

type HistoryRecorder interface {
	Append(cycleID, symbol string, results []models.AgentResult)
}

type Board interface {
	Put(ctx context.Context, r models.Report) error
}

type OrchestratorConfig struct {
	Interval    time.Duration
	MaxParallel int
	NBest       int
	Autolearn   bool
}

// Deps groups the collaborators of one decision cycle.
type Deps struct {
	Refresher *BundleRefresher
	Pool      Runner
	Engine    Decider
	Proposer  Evaluator
	Feedback  Feedback
	History   HistoryRecorder
	Reporter  domrepo.Reporter
	Board     Board
	Agents    []string
}

// CycleSummary describes one finished cycle.
type CycleSummary struct {
	ID          string          `json:"id"`
	Started     time.Time       `json:"started"`
	Duration    time.Duration   `json:"duration"`
	Instruments int             `json:"instruments"`
	Bundles     int             `json:"bundles"`
	Decisions   int             `json:"decisions"`
	Selected    []models.Report `json:"selected"`
	Failures    int             `json:"failures"`
}

// Orchestrator drives refresh, fan-out, fusion, sizing, selection,
// reporting and feedback on a fixed interval.
type Orchestrator struct {
	cfg     OrchestratorConfig
	deps    Deps
	symbols []string
	logger  *logger.Logger
	metrics domrepo.Metrics
	newID   func() string

	mu   sync.RWMutex
	last *CycleSummary
}

func NewOrchestrator(cfg OrchestratorConfig, symbols []string, deps Deps, lgr *logger.Logger, rec domrepo.Metrics) *Orchestrator {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.NBest <= 0 {
		cfg.NBest = 5
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		symbols: append([]string(nil), symbols...),
		logger:  lgr,
		metrics: rec,
		newID:   uuid.NewString,
	}
}

// Run loops until ctx is done. A failed or panicking cycle is logged and
// the next one starts after the interval.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("decision loop started",
		logger.Int("symbols", len(o.symbols)),
		logger.Duration("interval", o.cfg.Interval))
	for {
		if _, err := o.safeCycle(ctx); err != nil {
			o.logger.Error("decision cycle failed", logger.Error(err))
		}
		t := time.NewTimer(o.cfg.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			o.logger.Info("decision loop stopped")
			return nil
		case <-t.C:
		}
	}
}

func (o *Orchestrator) safeCycle(ctx context.Context) (summary CycleSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.metrics.RecordError("cycle_panic")
			err = fmt.Errorf("cycle panic: %w", &models.PanicError{Value: r})
		}
	}()
	return o.RunOnce(ctx)
}

type candidate struct {
	report  models.Report
	results []models.AgentResult
}

// RunOnce executes a single cycle over every tracked instrument.
func (o *Orchestrator) RunOnce(ctx context.Context) (CycleSummary, error) {
	if len(o.symbols) == 0 {
		return CycleSummary{}, &models.FatalConfigurationError{Reason: "no instruments", Err: models.ErrNoInstruments}
	}
	start := time.Now()
	summary := CycleSummary{ID: o.newID(), Started: start.UTC(), Instruments: len(o.symbols)}
	lgr := o.logger.With(logger.String("cycle", summary.ID))

	bundles, failures := o.deps.Refresher.Refresh(ctx, o.symbols)
	summary.Bundles = len(bundles)
	summary.Failures = len(failures)

	var weights map[string]float64
	if o.deps.Feedback != nil {
		weights = o.deps.Feedback.Weights(o.deps.Agents)
	}

	var (
		mu         sync.Mutex
		candidates []candidate
	)
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.MaxParallel)
	for _, symbol := range o.symbols {
		bundle, ok := bundles[symbol]
		if !ok {
			continue
		}
		g.Go(func() error {
			c, ok := o.decide(ctx, summary.ID, bundle, weights, lgr)
			if !ok {
				return nil
			}
			mu.Lock()
			candidates = append(candidates, c)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].report.Symbol() < candidates[j].report.Symbol() })
	reports := make([]models.Report, len(candidates))
	for i, c := range candidates {
		reports[i] = c.report
	}
	summary.Decisions = len(reports)

	selected := SelectTop(reports, o.cfg.NBest)
	for _, r := range selected {
		if o.deps.Reporter == nil {
			break
		}
		if err := o.deps.Reporter.Report(ctx, r); err != nil {
			lgr.Warn("report delivery failed", logger.String("symbol", r.Symbol()), logger.Error(err))
		}
	}
	summary.Selected = selected

	if o.cfg.Autolearn && o.deps.Feedback != nil {
		o.learn(ctx, candidates, selected)
	}

	summary.Duration = time.Since(start)
	o.metrics.RecordCycle(summary.Duration.Seconds(), summary.Decisions)
	o.mu.Lock()
	o.last = &summary
	o.mu.Unlock()

	lgr.Info("decision cycle finished",
		logger.Int("bundles", summary.Bundles),
		logger.Int("decisions", summary.Decisions),
		logger.Int("selected", len(selected)),
		logger.Int("failures", summary.Failures),
		logger.Duration("took", summary.Duration))
	return summary, nil
}

// decide runs one instrument's pipeline. A panic here is contained to the
// instrument.
func (o *Orchestrator) decide(ctx context.Context, cycleID string, bundle *models.FeatureBundle, weights map[string]float64, lgr *logger.Logger) (c candidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o.metrics.RecordError("instrument_panic")
			lgr.Error("instrument pipeline panicked", logger.String("symbol", bundle.Symbol),
				logger.Error(&models.InstrumentCycleFailure{Symbol: bundle.Symbol, Stage: "pipeline", Err: &models.PanicError{Value: r}}))
			ok = false
		}
	}()

	results, failures := o.deps.Pool.Run(ctx, bundle, weights)
	if len(failures) > 0 {
		lgr.Debug("agents failed", logger.String("symbol", bundle.Symbol), logger.Int("failed", len(failures)))
	}
	if o.deps.History != nil {
		o.deps.History.Append(cycleID, bundle.Symbol, results)
	}
	if len(results) == 0 {
		lgr.Warn("no agent results, no decision possible", logger.String("symbol", bundle.Symbol))
		return candidate{}, false
	}

	d := o.deps.Engine.Decide(cycleID, bundle.Symbol, results)
	d, proposal := o.deps.Proposer.Evaluate(d, bundle.Time)
	o.metrics.RecordDecision(d.Class, d.Direction, d.Safe)

	report := models.Report{
		Decision: d,
		Proposal: proposal,
		Price:    bundle.LastClose(),
		Patterns: bundle.Patterns.Names(),
	}
	if o.deps.Board != nil {
		if err := o.deps.Board.Put(ctx, report); err != nil {
			lgr.Warn("decision board update failed", logger.String("symbol", bundle.Symbol), logger.Error(err))
		}
	}
	return candidate{report: report, results: results}, true
}

func (o *Orchestrator) learn(ctx context.Context, candidates []candidate, selected []models.Report) {
	chosen := make(map[string]struct{}, len(selected))
	for _, r := range selected {
		chosen[r.Decision.ID] = struct{}{}
	}
	for _, c := range candidates {
		d := c.report.Decision
		o.deps.Feedback.RecordDecision(ctx, d)
		if _, ok := chosen[d.ID]; !ok {
			continue
		}
		o.deps.Feedback.RecordOutcome(ctx, c.results, nil)
		if rec, ok := o.deps.Feedback.RegisterPattern(ctx, d, c.report.Patterns); ok {
			o.logger.Debug("pattern registered", logger.String("pattern", rec.Name), logger.Int("seen", rec.Seen))
		}
	}
}

// LastCycle returns the most recent summary, if any cycle finished.
func (o *Orchestrator) LastCycle() (CycleSummary, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return CycleSummary{}, false
	}
	return *o.last, true
}

func (o *Orchestrator) Symbols() []string {
	return append([]string(nil), o.symbols...)
}

var selectionOrder = []models.StrategyClass{models.ClassScalp, models.ClassMidterm, models.ClassHybrid}

// SelectTop keeps the n safe, directional reports with the largest |edge|
// in each strategy class.
func SelectTop(reports []models.Report, n int) []models.Report {
	byClass := make(map[models.StrategyClass][]models.Report)
	for _, r := range reports {
		d := r.Decision
		if !d.Safe || d.Direction == models.DirectionNone {
			continue
		}
		byClass[d.Class] = append(byClass[d.Class], r)
	}

	var out []models.Report
	for _, class := range selectionOrder {
		group := byClass[class]
		sort.SliceStable(group, func(i, j int) bool {
			ei, ej := math.Abs(group[i].Decision.Edge), math.Abs(group[j].Decision.Edge)
			if ei != ej {
				return ei > ej
			}
			return group[i].Symbol() < group[j].Symbol()
		})
		if len(group) > n {
			group = group[:n]
		}
		out = append(out, group...)
	}
	return out
}
