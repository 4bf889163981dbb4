package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memState struct {
	docs    map[string][]byte
	failing bool
	saves   int
}

func newMemState() *memState { return &memState{docs: make(map[string][]byte)} }

func (m *memState) Load(_ context.Context, name string, dest any) error {
	if m.failing {
		return errors.New("disk on fire")
	}
	raw, ok := m.docs[name]
	if !ok {
		return models.ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (m *memState) Save(_ context.Context, name string, v any) error {
	if m.failing {
		return errors.New("disk on fire")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.docs[name] = raw
	m.saves++
	return nil
}

func TestWeightBounds(t *testing.T) {
	tests := []struct {
		success, fail int
		want          float64
	}{
		{0, 0, 1.0},
		{100, 0, 3.0},
		{0, 100, 0.1},
		{3, 1, 2.0},
		{1, 3, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Weight(tt.success, tt.fail), 1e-12, "s=%d f=%d", tt.success, tt.fail)
	}
	for s := 0; s < 60; s++ {
		for f := 0; f < 60; f++ {
			w := Weight(s, f)
			require.GreaterOrEqual(t, w, MinWeight)
			require.LessOrEqual(t, w, MaxWeight)
		}
	}
}

func TestRecordOutcomeWithTrade(t *testing.T) {
	s := NewStore(newMemState(), logger.Nop())
	ctx := context.Background()
	results := []models.AgentResult{
		{Agent: "scalp", Score: 0.8},
		{Agent: "whale", Score: -0.4},
		{Agent: "volume", Score: 0},
	}

	s.RecordOutcome(ctx, results, &models.TradeOutcome{Symbol: "BTCUSDT", Win: true})
	s.RecordOutcome(ctx, results, &models.TradeOutcome{Symbol: "BTCUSDT", Win: false})

	v := s.View([]string{"scalp", "whale", "volume"})
	assert.Equal(t, models.AgentStats{Success: 1}, v.Stats["scalp"])
	assert.Equal(t, models.AgentStats{Fail: 1}, v.Stats["whale"])
	assert.Equal(t, models.AgentStats{}, v.Stats["volume"])
	assert.InDelta(t, 2.0, v.Agents["scalp"], 1e-12)
	assert.InDelta(t, 0.5, v.Agents["whale"], 1e-12)
	assert.InDelta(t, 1.0, v.Agents["volume"], 1e-12)
}

func TestRecordOutcomeWithoutTradeUsesScoreSign(t *testing.T) {
	s := NewStore(nil, logger.Nop())
	ctx := context.Background()
	s.RecordOutcome(ctx, []models.AgentResult{
		{Agent: "a", Score: 0.3, Params: models.Params{"x": 1}},
		{Agent: "b", Score: -0.3},
	}, nil)

	v := s.View([]string{"a", "b"})
	assert.Equal(t, 1, v.Stats["a"].Success)
	assert.Equal(t, 1, v.Stats["b"].Fail)
	assert.Equal(t, 1.0, v.Stats["a"].Params["x"])
}

func TestWeightsAreIdempotent(t *testing.T) {
	s := NewStore(nil, logger.Nop())
	s.RecordOutcome(context.Background(), []models.AgentResult{{Agent: "a", Score: 1}}, nil)
	names := []string{"a", "unseen"}
	assert.Equal(t, s.Weights(names), s.Weights(names))
	assert.Equal(t, 1.0, s.Weights(names)["unseen"])
}

func TestRecordDecisionMetaWeight(t *testing.T) {
	s := NewStore(nil, logger.Nop())
	ctx := context.Background()
	safe := models.ConsensusDecision{Symbol: "ETHUSDT", Direction: models.DirectionLong, Safe: true}

	s.RecordDecision(ctx, safe)
	s.RecordDecision(ctx, safe)
	assert.InDelta(t, 1.1, s.MetaWeight("ETHUSDT", models.DirectionLong), 1e-12)

	unsafe := models.ConsensusDecision{Symbol: "ETHUSDT", Direction: models.DirectionShort}
	for i := 0; i < 40; i++ {
		s.RecordDecision(ctx, unsafe)
	}
	assert.InDelta(t, MinWeight, s.MetaWeight("ETHUSDT", models.DirectionShort), 1e-12)
	assert.Equal(t, DefaultMeta, s.MetaWeight("SOLUSDT", models.DirectionLong))
}

func TestStateSurvivesRestart(t *testing.T) {
	state := newMemState()
	ctx := context.Background()
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

	first := NewStore(state, logger.Nop(), WithClock(func() time.Time { return now }))
	first.RecordOutcome(ctx, []models.AgentResult{{Agent: "scalp", Score: 1}}, nil)
	first.RecordDecision(ctx, models.ConsensusDecision{Symbol: "BTCUSDT", Direction: models.DirectionLong, Safe: true})
	d := models.ConsensusDecision{
		Symbol:    "BTCUSDT",
		Direction: models.DirectionLong,
		Edge:      0.9,
		Results:   []models.AgentResult{{Agent: "pattern", Flags: models.ResultFlags{Pattern: true}}},
	}
	_, ok := first.RegisterPattern(ctx, d, []string{"engulfing_bull", "breakout"})
	require.True(t, ok)

	second := NewStore(state, logger.Nop())
	second.Load(ctx)
	assert.Equal(t, 1, second.View([]string{"scalp"}).Stats["scalp"].Success)
	assert.InDelta(t, 1.05, second.MetaWeight("BTCUSDT", models.DirectionLong), 1e-12)

	patterns := second.Patterns()
	require.Len(t, patterns, 1)
	assert.Equal(t, "breakout,engulfing_bull|long", patterns[0].Name)
	assert.Equal(t, []string{"breakout", "engulfing_bull"}, patterns[0].Patterns)
	assert.True(t, patterns[0].LastSeen.Equal(now))
}

func TestRegisterPatternNeedsConfirmation(t *testing.T) {
	s := NewStore(nil, logger.Nop())
	d := models.ConsensusDecision{Symbol: "X", Direction: models.DirectionShort, Results: []models.AgentResult{{Agent: "scalp"}}}
	_, ok := s.RegisterPattern(context.Background(), d, []string{"double_top"})
	assert.False(t, ok)

	d.Results[0].Flags.Pattern = true
	_, ok = s.RegisterPattern(context.Background(), d, nil)
	assert.False(t, ok)

	rec, ok := s.RegisterPattern(context.Background(), d, []string{"double_top"})
	require.True(t, ok)
	rec, _ = s.RegisterPattern(context.Background(), d, []string{"double_top"})
	assert.Equal(t, 2, rec.Seen)
}

func TestPersistenceFailureIsNotFatal(t *testing.T) {
	state := newMemState()
	state.failing = true
	s := NewStore(state, logger.Nop())
	ctx := context.Background()

	s.Load(ctx)
	s.RecordOutcome(ctx, []models.AgentResult{{Agent: "a", Score: 1}}, nil)
	s.RecordDecision(ctx, models.ConsensusDecision{Symbol: "X", Direction: models.DirectionLong, Safe: true})

	assert.InDelta(t, 2.0, s.Weights([]string{"a"})["a"], 1e-12)
	assert.InDelta(t, 1.05, s.MetaWeight("X", models.DirectionLong), 1e-12)
	assert.Equal(t, 0, state.saves)
}
