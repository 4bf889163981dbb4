package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/internal/domain/service"
	"TradeOrdu/pkg/logger"
	"TradeOrdu/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	name  string
	score float64
	err   error
	panic bool
	block chan struct{}
}

func (a *fakeAgent) Name() string                 { return a.name }
func (a *fakeAgent) Class() models.StrategyClass  { return models.ClassScalp }
func (a *fakeAgent) DefaultParams() models.Params { return models.Params{"t": 0.5} }

func (a *fakeAgent) Analyze(ctx context.Context, b *models.FeatureBundle, p models.Params, h []models.HistoryEntry) (models.AgentResult, error) {
	switch {
	case a.panic:
		panic("boom")
	case a.err != nil:
		return models.AgentResult{}, a.err
	case a.block != nil:
		<-a.block
	}
	return models.AgentResult{
		Agent:     a.name,
		Class:     models.ClassScalp,
		Score:     a.score,
		Direction: models.DirectionFromScore(a.score, p.Get("t")),
		Params:    p,
	}, nil
}

type fakeSource struct{ agents []service.Agent }

func (s fakeSource) Agents() []service.Agent { return s.agents }
func (s fakeSource) Params(name string) models.Params {
	for _, a := range s.agents {
		if a.Name() == name {
			return a.DefaultParams()
		}
	}
	return nil
}

func bundleFor(symbol string) *models.FeatureBundle {
	return &models.FeatureBundle{Symbol: symbol}
}

func TestPoolIsolatesFailures(t *testing.T) {
	src := fakeSource{agents: []service.Agent{
		&fakeAgent{name: "good1", score: 1},
		&fakeAgent{name: "broken", err: errors.New("bad input")},
		&fakeAgent{name: "panicky", panic: true},
		&fakeAgent{name: "good2", score: -1},
	}}
	pool := NewAgentPool(src, nil, logger.Nop(), metrics.Nop{}, WithWorkers(2))

	results, failures := pool.Run(context.Background(), bundleFor("BTCUSDT"), map[string]float64{"good1": 2.5})

	require.Len(t, results, 2)
	assert.Equal(t, "good1", results[0].Agent)
	assert.Equal(t, 2.5, results[0].Weight)
	assert.Equal(t, "good2", results[1].Agent)
	assert.Equal(t, 1.0, results[1].Weight)

	require.Len(t, failures, 2)
	kinds := map[string]string{}
	for _, err := range failures {
		var af *models.AgentFailure
		require.ErrorAs(t, err, &af)
		kinds[af.Agent] = af.Kind()
	}
	assert.Equal(t, map[string]string{"broken": "error", "panicky": "panic"}, kinds)
}

func TestPoolTimesOutHungAgent(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	src := fakeSource{agents: []service.Agent{
		&fakeAgent{name: "hung", block: block},
		&fakeAgent{name: "fast", score: 1},
	}}
	pool := NewAgentPool(src, nil, logger.Nop(), nil, WithAgentTimeout(30*time.Millisecond), WithWorkers(2))

	start := time.Now()
	results, failures := pool.Run(context.Background(), bundleFor("ETHUSDT"), nil)
	assert.Less(t, time.Since(start), time.Second)

	require.Len(t, results, 1)
	assert.Equal(t, "fast", results[0].Agent)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], models.ErrAgentTimeout)
}

func TestPoolTimedOutAgentKeepsItsSlot(t *testing.T) {
	block := make(chan struct{})
	src := fakeSource{agents: []service.Agent{&fakeAgent{name: "hung", block: block}}}
	pool := NewAgentPool(src, nil, logger.Nop(), nil, WithAgentTimeout(20*time.Millisecond), WithWorkers(1))

	_, failures := pool.Run(context.Background(), bundleFor("ETHUSDT"), nil)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], models.ErrAgentTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, failures = pool.Run(ctx, bundleFor("ETHUSDT"), nil)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], context.DeadlineExceeded)

	close(block)
	results, failures := pool.Run(context.Background(), bundleFor("ETHUSDT"), nil)
	assert.Empty(t, failures)
	require.Len(t, results, 1)
	assert.Equal(t, "hung", results[0].Agent)
}

func TestPoolAllFailedIsEmptyNotFatal(t *testing.T) {
	src := fakeSource{agents: []service.Agent{
		&fakeAgent{name: "a", err: errors.New("x")},
		&fakeAgent{name: "b", panic: true},
	}}
	pool := NewAgentPool(src, nil, logger.Nop(), nil)
	results, failures := pool.Run(context.Background(), bundleFor("X"), nil)
	assert.Empty(t, results)
	assert.Len(t, failures, 2)
}

type recordingHistory struct{ asked []string }

func (h *recordingHistory) Snapshot(agent, symbol string) []models.HistoryEntry {
	h.asked = append(h.asked, agent+"/"+symbol)
	return nil
}

func TestPoolPassesOwnHistory(t *testing.T) {
	hist := &recordingHistory{}
	src := fakeSource{agents: []service.Agent{&fakeAgent{name: "solo", score: 1}}}
	pool := NewAgentPool(src, hist, logger.Nop(), nil)
	_, _ = pool.Run(context.Background(), bundleFor("SOLUSDT"), nil)
	assert.Equal(t, []string{"solo/SOLUSDT"}, hist.asked)
}
