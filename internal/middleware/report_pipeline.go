package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
	"TradeOrdu/pkg/logger"
)

type pending struct {
	report   models.Report
	attempts int
}

// ReportPipeline sits between the orchestrator and the report sinks.
// It validates, drops repeated deliveries of the same decision, and buffers
// failed deliveries for retry when downstream is unavailable.
type ReportPipeline struct {
	next        domrepo.Reporter
	metrics     domrepo.Metrics
	logger      *logger.Logger
	bufSize     int
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	bufCh       chan pending
	stopCh      chan struct{}
	doneCh      chan struct{}
	started     bool
	mu          sync.Mutex
	delivered   map[string]time.Time // decision id -> delivered at
	dedupTTL    time.Duration
}

type PipelineOption func(*ReportPipeline)

// WithBufferSize sets the retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *ReportPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBackoff sets the retry backoff bounds.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *ReportPipeline) {
		if min > 0 && max >= min {
			p.minBackoff, p.maxBackoff = min, max
		}
	}
}

// WithMaxAttempts bounds deliveries of one report, the first included.
func WithMaxAttempts(n int) PipelineOption {
	return func(p *ReportPipeline) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func NewReportPipeline(next domrepo.Reporter, metrics domrepo.Metrics, lgr *logger.Logger, opts ...PipelineOption) *ReportPipeline {
	p := &ReportPipeline{
		next:        next,
		metrics:     metrics,
		logger:      lgr,
		bufSize:     256,
		maxAttempts: 5,
		minBackoff:  50 * time.Millisecond,
		maxBackoff:  2 * time.Second,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		delivered:   make(map[string]time.Time),
		dedupTTL:    time.Hour,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan pending, p.bufSize)
	return p
}

func (p *ReportPipeline) Name() string { return "pipeline(" + p.next.Name() + ")" }

// Start launches background retries of buffered reports.
func (p *ReportPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		backoff := p.minBackoff
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case item := <-p.bufCh:
				if !p.sleep(ctx, backoff) {
					return
				}
				item.attempts++
				if err := p.next.Report(ctx, item.report); err != nil {
					backoff = min(2*backoff, p.maxBackoff)
					p.metrics.RecordError("report_retry")
					if item.attempts >= p.maxAttempts {
						p.drop(item, err)
						continue
					}
					p.enqueue(item)
					continue
				}
				backoff = p.minBackoff
				p.markDelivered(item.report.Decision.ID)
			}
		}
	}()
}

func (p *ReportPipeline) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stopCh:
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Stop stops the retry loop. Reports still buffered are dropped.
func (p *ReportPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
	if n := len(p.bufCh); n > 0 {
		p.logger.Warn("report pipeline stopped with pending reports", logger.Int("pending", n))
	}
}

// Report validates and forwards r, buffering it for retry on failure.
func (p *ReportPipeline) Report(ctx context.Context, r models.Report) error {
	start := time.Now()
	if err := validateReport(r); err != nil {
		p.metrics.RecordError("report_validate")
		return err
	}
	if p.seen(r.Decision.ID, start) {
		p.metrics.RecordError("report_duplicate")
		return nil
	}

	if err := p.next.Report(ctx, r); err != nil {
		p.metrics.RecordError("report_deliver")
		p.enqueue(pending{report: r, attempts: 1})
		return fmt.Errorf("report downstream: %w", err)
	}
	p.markDelivered(r.Decision.ID)
	p.metrics.RecordLatency("report_deliver", time.Since(start).Seconds())
	return nil
}

func (p *ReportPipeline) enqueue(item pending) {
	select {
	case p.bufCh <- item:
		p.metrics.RecordLatency("report_buffer_depth", float64(len(p.bufCh)))
	default:
		p.drop(item, fmt.Errorf("retry buffer full"))
	}
}

func (p *ReportPipeline) drop(item pending, err error) {
	p.metrics.RecordError("report_drop")
	p.logger.Error("report dropped",
		logger.String("symbol", item.report.Symbol()),
		logger.String("decision", item.report.Decision.ID),
		logger.Int("attempts", item.attempts),
		logger.Error(err))
}

func (p *ReportPipeline) seen(id string, now time.Time) bool {
	if id == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, at := range p.delivered {
		if now.Sub(at) > p.dedupTTL {
			delete(p.delivered, k)
		}
	}
	_, ok := p.delivered[id]
	return ok
}

func (p *ReportPipeline) markDelivered(id string) {
	if id == "" {
		return
	}
	p.mu.Lock()
	p.delivered[id] = time.Now()
	p.mu.Unlock()
}

func validateReport(r models.Report) error {
	d := r.Decision
	if d.Symbol == "" {
		return fmt.Errorf("report without symbol")
	}
	if !d.Direction.Valid() {
		return fmt.Errorf("invalid direction %q", d.Direction)
	}
	size := r.Proposal.Size
	if math.IsNaN(size) || size < 0 || size > 1 {
		return fmt.Errorf("size %.4f out of range", size)
	}
	if math.IsNaN(d.Edge) || math.IsInf(d.Edge, 0) {
		return fmt.Errorf("edge is not finite")
	}
	return nil
}
