package usecase

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
	"TradeOrdu/internal/domain/service"
	"TradeOrdu/pkg/logger"
	"TradeOrdu/pkg/metrics"
)

// AgentSource supplies the enabled agents and their effective parameters.
type AgentSource interface {
	Agents() []service.Agent
	Params(name string) models.Params
}

// HistorySource supplies an agent's own past results for an instrument.
type HistorySource interface {
	Snapshot(agent, symbol string) []models.HistoryEntry
}

type PoolOption func(*AgentPool)

// WithAgentTimeout bounds one analysis; a late agent counts as failed.
func WithAgentTimeout(d time.Duration) PoolOption {
	return func(p *AgentPool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithWorkers bounds how many analyses run at once.
func WithWorkers(n int) PoolOption {
	return func(p *AgentPool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// AgentPool runs every agent over one bundle concurrently. Failures are
// isolated per agent and never reach the caller as an error.
type AgentPool struct {
	agents  AgentSource
	history HistorySource
	logger  *logger.Logger
	metrics domrepo.Metrics
	timeout time.Duration
	workers int
	sem     chan struct{}
}

func NewAgentPool(agents AgentSource, history HistorySource, lgr *logger.Logger, rec domrepo.Metrics, opts ...PoolOption) *AgentPool {
	if rec == nil {
		rec = metrics.Nop{}
	}
	p := &AgentPool{
		agents:  agents,
		history: history,
		logger:  lgr,
		metrics: rec,
		timeout: 25 * time.Second,
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	// shared by every Run so concurrent instruments share the bound
	p.sem = make(chan struct{}, p.workers)
	return p
}

// Run returns the successful results in agent order, each annotated with
// the weight used, plus one AgentFailure per failed agent.
func (p *AgentPool) Run(ctx context.Context, bundle *models.FeatureBundle, weights map[string]float64) ([]models.AgentResult, []error) {
	agents := p.agents.Agents()
	results := make([]models.AgentResult, len(agents))
	errs := make([]error, len(agents))

	var wg sync.WaitGroup
	for i, a := range agents {
		i, a := i, a
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.analyze(ctx, a, bundle)
			if err != nil {
				errs[i] = err
				return
			}
			res.Weight = weightFor(weights, a.Name())
			results[i] = res
		}()
	}
	wg.Wait()

	out := make([]models.AgentResult, 0, len(agents))
	var failures []error
	for i := range agents {
		if errs[i] != nil {
			failures = append(failures, errs[i])
			continue
		}
		out = append(out, results[i])
	}
	return out, failures
}

func weightFor(weights map[string]float64, name string) float64 {
	if w, ok := weights[name]; ok && w > 0 {
		return w
	}
	return 1
}

type outcome struct {
	res models.AgentResult
	err error
}

func (p *AgentPool) analyze(ctx context.Context, a service.Agent, bundle *models.FeatureBundle) (models.AgentResult, error) {
	name := a.Name()
	fail := func(err error) (models.AgentResult, error) {
		af := &models.AgentFailure{Agent: name, Symbol: bundle.Symbol, Err: err}
		p.metrics.RecordAgentFailure(name, af.Kind())
		p.logger.Warn("agent failed", logger.String("agent", name), logger.String("symbol", bundle.Symbol), logger.Error(af))
		return models.AgentResult{}, af
	}

	var hist []models.HistoryEntry
	if p.history != nil {
		hist = p.history.Snapshot(name, bundle.Symbol)
	}
	params := p.agents.Params(name)

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// buffered so a hung agent does not leak a blocked sender
	done := make(chan outcome, 1)
	start := time.Now()
	// the slot is held until the agent returns, even past its timeout
	go func() {
		defer func() { <-p.sem }()
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &models.PanicError{Value: r}}
			}
		}()
		res, err := a.Analyze(ctx, bundle, params, hist)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		p.metrics.RecordAgentLatency(name, time.Since(start).Seconds())
		if o.err != nil {
			return fail(o.err)
		}
		return o.res, nil
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = models.ErrAgentTimeout
		}
		return fail(err)
	}
}
