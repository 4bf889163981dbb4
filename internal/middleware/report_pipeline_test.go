package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/pkg/logger"
	"TradeOrdu/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySink struct {
	mu       sync.Mutex
	failures int
	got      []string
}

func (s *flakySink) Name() string { return "flaky" }

func (s *flakySink) Report(_ context.Context, r models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sink down")
	}
	s.got = append(s.got, r.Decision.ID)
	return nil
}

func (s *flakySink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func report(id string) models.Report {
	return models.Report{
		Decision: models.ConsensusDecision{ID: id, Symbol: "BTCUSDT", Direction: models.DirectionLong, Edge: 0.8, Safe: true},
		Proposal: models.PositionProposal{Size: 0.5},
	}
}

func TestPipelineRejectsInvalidReports(t *testing.T) {
	p := NewReportPipeline(&flakySink{}, metrics.Nop{}, logger.Nop())

	bad := report("a")
	bad.Decision.Symbol = ""
	assert.Error(t, p.Report(context.Background(), bad))

	bad = report("b")
	bad.Proposal.Size = 1.5
	assert.Error(t, p.Report(context.Background(), bad))

	bad = report("c")
	bad.Decision.Direction = "sideways"
	assert.Error(t, p.Report(context.Background(), bad))
}

func TestPipelineDeliversOncePerDecision(t *testing.T) {
	sink := &flakySink{}
	p := NewReportPipeline(sink, metrics.Nop{}, logger.Nop())
	ctx := context.Background()

	require.NoError(t, p.Report(ctx, report("d-1")))
	require.NoError(t, p.Report(ctx, report("d-1")))
	require.NoError(t, p.Report(ctx, report("d-2")))
	assert.Equal(t, []string{"d-1", "d-2"}, sink.delivered())
}

func TestPipelineRetriesFailedDelivery(t *testing.T) {
	sink := &flakySink{failures: 2}
	p := NewReportPipeline(sink, metrics.Nop{}, logger.Nop(), WithBackoff(time.Millisecond, 4*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	err := p.Report(ctx, report("d-1"))
	require.Error(t, err)

	require.Eventually(t, func() bool { return len(sink.delivered()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"d-1"}, sink.delivered())
}

func TestPipelineDropsAfterMaxAttempts(t *testing.T) {
	sink := &flakySink{failures: 100}
	p := NewReportPipeline(sink, metrics.Nop{}, logger.Nop(),
		WithBackoff(time.Millisecond, 2*time.Millisecond), WithMaxAttempts(3))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	_ = p.Report(ctx, report("d-1"))
	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.failures == 97
	}, time.Second, 2*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	p.Stop()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 97, sink.failures)
	assert.Empty(t, sink.got)
}
