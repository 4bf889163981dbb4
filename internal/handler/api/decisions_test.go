package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/internal/usecase"
	xlogger "TradeOrdu/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBoard struct {
	reports map[string]models.Report
	err     error
}

func (b *fakeBoard) Latest(_ context.Context, symbol string) (models.Report, bool, error) {
	r, ok := b.reports[symbol]
	return r, ok, b.err
}

func (b *fakeBoard) All(context.Context) ([]models.Report, error) {
	out := make([]models.Report, 0, len(b.reports))
	for _, r := range b.reports {
		out = append(out, r)
	}
	return out, b.err
}

type fakeHistory struct {
	symbol string
	limit  int
}

func (f *fakeHistory) Name() string                                { return "history" }
func (f *fakeHistory) Report(context.Context, models.Report) error { return nil }
func (f *fakeHistory) History(_ context.Context, symbol string, limit int) ([]models.DecisionRecord, error) {
	f.symbol, f.limit = symbol, limit
	return []models.DecisionRecord{{ID: "d1", Symbol: symbol}}, nil
}

type fakeLearning struct{ names []string }

func (f *fakeLearning) View(names []string) models.WeightsView {
	f.names = names
	return models.WeightsView{Agents: map[string]float64{"momentum": 1.5}}
}

func (f *fakeLearning) Patterns() []models.PatternRecord {
	return []models.PatternRecord{{Name: "breakout_long", Seen: 2}}
}

type fakeStreams []models.StreamSnapshot

func (f fakeStreams) Streams() []models.StreamSnapshot { return f }

type fakeCycles struct{ summary *usecase.CycleSummary }

func (f fakeCycles) LastCycle() (usecase.CycleSummary, bool) {
	if f.summary == nil {
		return usecase.CycleSummary{}, false
	}
	return *f.summary, true
}

type fakeOutcomes struct {
	got models.TradeOutcome
	err error
}

func (f *fakeOutcomes) FromRequest(req models.OutcomeRequest) (models.TradeOutcome, error) {
	return models.TradeOutcome{Symbol: strings.ToUpper(req.Symbol), Win: req.Win}, nil
}

func (f *fakeOutcomes) Record(_ context.Context, o models.TradeOutcome) (usecase.OutcomeResult, error) {
	f.got = o
	return usecase.OutcomeResult{DecisionID: "d1", Agents: 4}, f.err
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func serve(t *testing.T, deps Deps, method, target, body string) (int, envelope) {
	t.Helper()
	e := echo.New()
	NewDecisionsHandler(xlogger.Nop(), deps).RegisterRoutes(e)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func testDeps() Deps {
	return Deps{
		Board: &fakeBoard{reports: map[string]models.Report{
			"BTCUSDT": {Decision: models.ConsensusDecision{ID: "d1", Symbol: "BTCUSDT"}},
		}},
		Learning: &fakeLearning{},
		Streams:  fakeStreams{{Symbol: "BTCUSDT", Feed: models.FeedKline, State: models.StreamStreaming}},
		Cycles:   fakeCycles{},
		Outcomes: &fakeOutcomes{},
		Agents:   []string{"momentum"},
	}
}

func TestDecisionLookup(t *testing.T) {
	deps := testDeps()

	_, env := serve(t, deps, http.MethodGet, "/api/decisions/btcusdt", "")
	assert.Equal(t, http.StatusOK, env.Status)
	var r models.Report
	require.NoError(t, json.Unmarshal(env.Data, &r))
	assert.Equal(t, "d1", r.Decision.ID)

	_, env = serve(t, deps, http.MethodGet, "/api/decisions/XRPUSDT", "")
	assert.Equal(t, http.StatusNotFound, env.Status)

	deps.Board = &fakeBoard{err: errors.New("redis down")}
	_, env = serve(t, deps, http.MethodGet, "/api/decisions", "")
	assert.Equal(t, http.StatusInternalServerError, env.Status)
}

func TestHistory(t *testing.T) {
	deps := testDeps()
	_, env := serve(t, deps, http.MethodGet, "/api/decisions/BTCUSDT/history", "")
	assert.Equal(t, http.StatusNotFound, env.Status)

	hist := &fakeHistory{}
	deps.History = hist
	_, env = serve(t, deps, http.MethodGet, "/api/decisions/ethusdt/history?limit=5", "")
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, "ETHUSDT", hist.symbol)
	assert.Equal(t, 5, hist.limit)

	_, env = serve(t, deps, http.MethodGet, "/api/decisions/BTCUSDT/history", "")
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, 50, hist.limit)

	_, env = serve(t, deps, http.MethodGet, "/api/decisions/BTCUSDT/history?limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestWeightsAndPatterns(t *testing.T) {
	deps := testDeps()
	learning := deps.Learning.(*fakeLearning)

	_, env := serve(t, deps, http.MethodGet, "/api/weights", "")
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, []string{"momentum"}, learning.names)
	assert.Contains(t, string(env.Data), `"momentum":1.5`)

	_, env = serve(t, deps, http.MethodGet, "/api/patterns", "")
	assert.Contains(t, string(env.Data), "breakout_long")
}

func TestOutcomeIntake(t *testing.T) {
	deps := testDeps()
	outcomes := deps.Outcomes.(*fakeOutcomes)

	_, env := serve(t, deps, http.MethodPost, "/api/outcomes", `{"symbol":"btcusdt","direction":"long","win":true}`)
	assert.Equal(t, http.StatusCreated, env.Status)
	assert.Equal(t, "BTCUSDT", outcomes.got.Symbol)
	assert.True(t, outcomes.got.Win)

	_, env = serve(t, deps, http.MethodPost, "/api/outcomes", `{"symbol":"btcusdt","direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)

	_, env = serve(t, deps, http.MethodPost, "/api/outcomes", `{"direction":"short"}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestHealth(t *testing.T) {
	deps := testDeps()
	deps.Cycles = fakeCycles{summary: &usecase.CycleSummary{ID: "c1", Started: time.Now(), Decisions: 3}}

	e := echo.New()
	NewDecisionsHandler(xlogger.Nop(), deps).RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body healthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Streaming)
	require.NotNil(t, body.LastCycle)
	assert.Equal(t, 3, body.LastCycle.Decisions)

	deps.Streams = fakeStreams{{Symbol: "BTCUSDT", Feed: models.FeedDepth, State: models.StreamReconnecting}}
	e = echo.New()
	NewDecisionsHandler(xlogger.Nop(), deps).RegisterRoutes(e)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
