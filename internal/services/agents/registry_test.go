package agents

import (
	"testing"

	"TradeOrdu/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAppliesOverridesAndDisables(t *testing.T) {
	r, err := NewRegistry([]string{"sentiment"}, map[string]map[string]float64{
		"scalp":     {"rsi_lower": 30},
		"dump_pump": {"dump_pump_vol_spike": 3.1},
	})
	require.NoError(t, err)

	assert.Len(t, r.Agents(), 9)
	assert.NotContains(t, r.Names(), "sentiment")
	assert.Equal(t, 30.0, r.Params("scalp").Get("rsi_lower"))
	assert.Equal(t, 77.0, r.Params("scalp").Get("rsi_upper"))
	assert.Equal(t, 3.1, r.DumpPumpThresholds().VolSpike)

	p := r.Params("scalp")
	p["rsi_lower"] = 1
	assert.Equal(t, 30.0, r.Params("scalp").Get("rsi_lower"))
}

func TestRegistryRejectsUnknownAgents(t *testing.T) {
	_, err := NewRegistry([]string{"oracle"}, nil)
	assert.Error(t, err)

	_, err = NewRegistry(nil, map[string]map[string]float64{"oracle": {"x": 1}})
	assert.Error(t, err)
}

func TestRosterNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range Roster() {
		assert.False(t, seen[a.Name()], a.Name())
		seen[a.Name()] = true
		assert.NotEmpty(t, a.DefaultParams(), a.Name())
	}
	assert.Len(t, seen, 10)
}

func TestHistoryBookIsBounded(t *testing.T) {
	h := NewHistoryBook(3)
	for i := 0; i < 5; i++ {
		h.Append("c", "ETHUSDT", []models.AgentResult{{Agent: "scalp", Score: float64(i)}})
	}
	snap := h.Snapshot("scalp", "ETHUSDT")
	require.Len(t, snap, 3)
	assert.Equal(t, 2.0, snap[0].Result.Score)
	assert.Equal(t, 4.0, snap[2].Result.Score)
	assert.Empty(t, h.Snapshot("scalp", "BTCUSDT"))

	snap[0].Result.Score = 99
	assert.Equal(t, 2.0, h.Snapshot("scalp", "ETHUSDT")[0].Result.Score)
}

func TestHistoryBookAnnotate(t *testing.T) {
	h := NewHistoryBook(10)
	h.Append("c1", "ETHUSDT", []models.AgentResult{{Agent: "scalp"}, {Agent: "whale"}})
	h.Append("c2", "ETHUSDT", []models.AgentResult{{Agent: "scalp"}})
	h.Append("c1", "BTCUSDT", []models.AgentResult{{Agent: "scalp"}})

	assert.Equal(t, 2, h.Annotate("ETHUSDT", "c1", models.DirectionShort))

	scalp := h.Snapshot("scalp", "ETHUSDT")
	assert.Equal(t, models.DirectionShort, scalp[0].Realized)
	assert.Equal(t, models.Direction(""), scalp[1].Realized)
	assert.Equal(t, models.DirectionShort, h.Snapshot("whale", "ETHUSDT")[0].Realized)
	assert.Equal(t, models.Direction(""), h.Snapshot("scalp", "BTCUSDT")[0].Realized)

	assert.Zero(t, h.Annotate("ETHUSDT", "c1", models.DirectionLong))
	assert.Zero(t, h.Annotate("ETHUSDT", "", models.DirectionLong))
	assert.Zero(t, h.Annotate("ETHUSDT", "c9", models.DirectionLong))
}

func TestHistoryBookAnnotateCreditsTradedCycle(t *testing.T) {
	h := NewHistoryBook(10)
	h.Append("c1", "BTCUSDT", []models.AgentResult{{Agent: "trend", Direction: models.DirectionLong, Score: 0.6}})
	h.Append("c2", "BTCUSDT", []models.AgentResult{{Agent: "trend", Direction: models.DirectionShort, Score: 0.6}})
	h.Append("c3", "BTCUSDT", []models.AgentResult{{Agent: "trend", Direction: models.DirectionShort, Score: 0.6}})

	require.Equal(t, 1, h.Annotate("BTCUSDT", "c1", models.DirectionLong))

	snap := h.Snapshot("trend", "BTCUSDT")
	assert.True(t, snap[0].Win())
	assert.Equal(t, models.Direction(""), snap[2].Realized)
}
