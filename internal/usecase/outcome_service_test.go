package usecase

import (
	"context"
	"testing"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/pkg/cache"
	"TradeOrdu/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gradingFeedback struct {
	graded  [][]models.AgentResult
	outcome *models.TradeOutcome
}

func (f *gradingFeedback) RecordOutcome(_ context.Context, results []models.AgentResult, o *models.TradeOutcome) {
	f.graded = append(f.graded, results)
	f.outcome = o
}

type annotator struct {
	symbol   string
	cycle    string
	realized models.Direction
	calls    int
}

func (a *annotator) Annotate(symbol, cycleID string, realized models.Direction) int {
	a.symbol, a.cycle, a.realized = symbol, cycleID, realized
	a.calls++
	return 3
}

func boardReport(id, symbol string, agents ...string) models.Report {
	results := make([]models.AgentResult, len(agents))
	for i, a := range agents {
		results[i] = models.AgentResult{Agent: a, Score: 0.5, Direction: models.DirectionLong}
	}
	return models.Report{Decision: models.ConsensusDecision{
		ID: id, CycleID: "cycle-" + id, Symbol: symbol, Direction: models.DirectionLong, Results: results,
	}}
}

func TestDecisionBoardKeepsLatestAndByID(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	board := NewDecisionBoard(c)
	ctx := context.Background()

	require.NoError(t, board.Put(ctx, boardReport("d1", "BTCUSDT", "a")))
	require.NoError(t, board.Put(ctx, boardReport("d2", "BTCUSDT", "a", "b")))
	require.NoError(t, board.Put(ctx, boardReport("d3", "ETHUSDT", "c")))

	latest, ok, err := board.Latest(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "d2", latest.Decision.ID)

	old, ok, err := board.ByID(ctx, "d1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, old.Decision.Results, 1)

	_, ok, err = board.Latest(ctx, "XRPUSDT")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := board.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BTCUSDT", all[0].Symbol())
	assert.Equal(t, "ETHUSDT", all[1].Symbol())
}

func TestOutcomeGradesReferencedDecision(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	board := NewDecisionBoard(c)
	ctx := context.Background()
	require.NoError(t, board.Put(ctx, boardReport("d1", "BTCUSDT", "a", "b")))
	require.NoError(t, board.Put(ctx, boardReport("d2", "BTCUSDT", "c")))

	fb := &gradingFeedback{}
	hist := &annotator{}
	svc := NewOutcomeService(fb, hist, board, true, logger.Nop())

	o, err := svc.FromRequest(models.OutcomeRequest{DecisionID: "d1", Symbol: "btcusdt", Direction: "LONG", Win: false})
	require.NoError(t, err)
	res, err := svc.Record(ctx, o)
	require.NoError(t, err)

	assert.Equal(t, OutcomeResult{DecisionID: "d1", Agents: 2, Annotated: 3}, res)
	require.Len(t, fb.graded, 1)
	assert.Len(t, fb.graded[0], 2)
	assert.Equal(t, "BTCUSDT", hist.symbol)
	assert.Equal(t, "cycle-d1", hist.cycle)
	assert.Equal(t, models.DirectionShort, hist.realized)
}

func TestOutcomeWithoutDecisionIDUsesLatest(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	board := NewDecisionBoard(c)
	ctx := context.Background()
	require.NoError(t, board.Put(ctx, boardReport("d2", "ETHUSDT", "c")))

	fb := &gradingFeedback{}
	svc := NewOutcomeService(fb, nil, board, true, logger.Nop())
	res, err := svc.Record(ctx, models.TradeOutcome{Symbol: "ETHUSDT", Direction: models.DirectionLong, Win: true})
	require.NoError(t, err)
	assert.Equal(t, "d2", res.DecisionID)
	assert.Equal(t, 1, res.Agents)
}

func TestOutcomeForUnknownDecisionGradesNothing(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	board := NewDecisionBoard(c)
	ctx := context.Background()
	require.NoError(t, board.Put(ctx, boardReport("d-latest", "BTCUSDT", "a", "b")))

	fb := &gradingFeedback{}
	hist := &annotator{}
	svc := NewOutcomeService(fb, hist, board, true, logger.Nop())
	res, err := svc.Record(ctx, models.TradeOutcome{DecisionID: "d-expired", Symbol: "BTCUSDT", Direction: models.DirectionLong, Win: true})
	require.NoError(t, err)

	assert.Equal(t, OutcomeResult{}, res)
	assert.Empty(t, fb.graded)
	assert.Zero(t, hist.calls)
}

func TestOutcomeWithoutAutolearnOnlyAnnotates(t *testing.T) {
	fb := &gradingFeedback{}
	hist := &annotator{}
	c := cache.NewMemoryCache()
	defer c.Close()
	board := NewDecisionBoard(c)
	ctx := context.Background()
	require.NoError(t, board.Put(ctx, boardReport("d1", "SOLUSDT", "a")))

	svc := NewOutcomeService(fb, hist, board, false, logger.Nop())
	res, err := svc.Record(ctx, models.TradeOutcome{Symbol: "SOLUSDT", Direction: models.DirectionShort, Win: true})
	require.NoError(t, err)
	assert.Empty(t, fb.graded)
	assert.Equal(t, 3, res.Annotated)
	assert.Equal(t, "cycle-d1", hist.cycle)
	assert.Equal(t, models.DirectionShort, hist.realized)
}

func TestOutcomeRequestRejectsBadDirection(t *testing.T) {
	svc := NewOutcomeService(&gradingFeedback{}, nil, nil, true, logger.Nop())
	_, err := svc.FromRequest(models.OutcomeRequest{Symbol: "BTCUSDT", Direction: "none"})
	assert.Error(t, err)
}

func TestOutcomeRequestClosedAt(t *testing.T) {
	svc := NewOutcomeService(&gradingFeedback{}, nil, nil, true, logger.Nop())
	o, err := svc.FromRequest(models.OutcomeRequest{Symbol: "BTCUSDT", Direction: "short", ClosedAt: "1714564800000"})
	require.NoError(t, err)
	assert.Equal(t, int64(1714564800), o.ClosedAt.Unix())
	assert.Equal(t, models.DirectionShort, o.Direction)
}
