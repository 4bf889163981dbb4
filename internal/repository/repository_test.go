package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Success int            `json:"success"`
	Meta    map[string]int `json:"meta"`
}

func TestFileStateStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	s, err := NewFileStateStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	var got doc
	assert.ErrorIs(t, s.Load(ctx, "agent_stats", &got), models.ErrNotFound)

	require.NoError(t, s.Save(ctx, "agent_stats", doc{Success: 3, Meta: map[string]int{"a": 1}}))
	require.NoError(t, s.Save(ctx, "agent_stats", doc{Success: 4}))
	require.NoError(t, s.Load(ctx, "agent_stats", &got))
	assert.Equal(t, 4, got.Success)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "agent_stats.json", entries[0].Name())
}

func TestFileStateStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStateStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta_weights.json"), []byte("{not json"), 0o644))

	var got map[string]float64
	err = s.Load(context.Background(), "meta_weights", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrNotFound)
}

func TestRedisStateStoreOverCache(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	s := NewRedisStateStore(c)
	ctx := context.Background()

	var got map[string]float64
	assert.ErrorIs(t, s.Load(ctx, "meta_weights", &got), models.ErrNotFound)

	require.NoError(t, s.Save(ctx, "meta_weights", map[string]float64{"BTCUSDT_long": 1.05}))
	require.NoError(t, s.Load(ctx, "meta_weights", &got))
	assert.Equal(t, map[string]float64{"BTCUSDT_long": 1.05}, got)
}

func sampleReport() models.Report {
	return models.Report{
		Decision: models.ConsensusDecision{
			ID:        "d-1",
			Symbol:    "BTCUSDT",
			Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Direction: models.DirectionLong,
			Edge:      0.8,
			Consensus: 0.75,
			Class:     models.ClassScalp,
			Safe:      true,
		},
		Proposal: models.PositionProposal{Size: 0.4, Stop: 120, Target: 264},
		Price:    64000,
	}
}

func TestDecisionLogAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	l, err := NewDecisionLog(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.Report(ctx, sampleReport()))
	second := sampleReport()
	second.Decision.ID = "d-2"
	require.NoError(t, l.Report(ctx, second))
	require.NoError(t, l.Close())
	assert.Error(t, l.Report(ctx, sampleReport()))

	f, err := os.Open(filepath.Join(dir, DecisionLogFile))
	require.NoError(t, err)
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line struct {
			LoggedAt time.Time                `json:"logged_at"`
			Decision models.ConsensusDecision `json:"decision"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		assert.False(t, line.LoggedAt.IsZero())
		ids = append(ids, line.Decision.ID)
	}
	assert.Equal(t, []string{"d-1", "d-2"}, ids)
}

type capturePublisher struct {
	topic string
	key   string
	value interface{}
}

func (p *capturePublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, string(key), value
	return nil
}

func TestKafkaDecisionPublisherKeysBySymbol(t *testing.T) {
	pub := &capturePublisher{}
	k := NewKafkaDecisionPublisher(pub, "tradeordu.decisions")
	require.NoError(t, k.Report(context.Background(), sampleReport()))
	assert.Equal(t, "tradeordu.decisions", pub.topic)
	assert.Equal(t, "BTCUSDT", pub.key)
	assert.IsType(t, models.Report{}, pub.value)
}

func TestRecordFromReport(t *testing.T) {
	rec := recordFromReport(sampleReport())
	assert.Equal(t, "d-1", rec.ID)
	assert.Equal(t, "scalp", rec.Class)
	assert.Equal(t, 0.4, rec.Size)
	assert.Equal(t, 264.0, rec.Target)
	assert.Equal(t, 64000.0, rec.Price)
	assert.True(t, rec.Safe)
}
