package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
	"TradeOrdu/internal/usecase"
	xhttp "TradeOrdu/pkg/http"
	xlogger "TradeOrdu/pkg/logger"

	"github.com/labstack/echo/v4"
)

type DecisionReader interface {
	Latest(ctx context.Context, symbol string) (models.Report, bool, error)
	All(ctx context.Context) ([]models.Report, error)
}

type LearningReader interface {
	View(names []string) models.WeightsView
	Patterns() []models.PatternRecord
}

type StreamLister interface {
	Streams() []models.StreamSnapshot
}

type CycleReader interface {
	LastCycle() (usecase.CycleSummary, bool)
}

type OutcomeRecorder interface {
	FromRequest(req models.OutcomeRequest) (models.TradeOutcome, error)
	Record(ctx context.Context, o models.TradeOutcome) (usecase.OutcomeResult, error)
}

// Deps are the read models and use cases served over HTTP. History may be
// nil when no decision store is configured.
type Deps struct {
	Board    DecisionReader
	History  domrepo.DecisionStore
	Learning LearningReader
	Streams  StreamLister
	Cycles   CycleReader
	Outcomes OutcomeRecorder
	Agents   []string
}

// DecisionsHandler exposes decisions, learning state, stream health and
// outcome intake.
type DecisionsHandler struct {
	logger *xlogger.Logger
	deps   Deps
}

func NewDecisionsHandler(logger *xlogger.Logger, deps Deps) *DecisionsHandler {
	return &DecisionsHandler{logger: logger, deps: deps}
}

func (h *DecisionsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/decisions", h.Decisions)
	g.GET("/decisions/:symbol", h.Decision)
	g.GET("/decisions/:symbol/history", h.History)
	g.GET("/weights", h.Weights)
	g.GET("/patterns", h.Patterns)
	g.GET("/streams", h.StreamStates)
	g.POST("/outcomes", h.Outcome)
}

func (h *DecisionsHandler) Decisions(c echo.Context) error {
	reports, err := h.deps.Board.All(c.Request().Context())
	if err != nil {
		h.logger.Error("list decisions", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("decision board unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, reports, int64(len(reports)))
}

func (h *DecisionsHandler) Decision(c echo.Context) error {
	symbol := strings.ToUpper(c.Param("symbol"))
	r, ok, err := h.deps.Board.Latest(c.Request().Context(), symbol)
	if err != nil {
		h.logger.Error("latest decision", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("decision board unavailable").WithError(err))
	}
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no decision for %s", symbol))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, r)
}

func (h *DecisionsHandler) History(c echo.Context) error {
	if h.deps.History == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("decision history is disabled"))
	}
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.deps.History.History(c.Request().Context(), strings.ToUpper(req.Symbol), req.Limit)
	if err != nil {
		h.logger.Error("decision history", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("decision history unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *DecisionsHandler) Weights(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.deps.Learning.View(h.deps.Agents))
}

func (h *DecisionsHandler) Patterns(c echo.Context) error {
	patterns := h.deps.Learning.Patterns()
	return xhttp.ListResponse(c, patterns, int64(len(patterns)))
}

func (h *DecisionsHandler) StreamStates(c echo.Context) error {
	streams := h.deps.Streams.Streams()
	return xhttp.ListResponse(c, streams, int64(len(streams)))
}

func (h *DecisionsHandler) Outcome(c echo.Context) error {
	req := &models.OutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	o, err := h.deps.Outcomes.FromRequest(*req)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	res, err := h.deps.Outcomes.Record(c.Request().Context(), o)
	if err != nil {
		h.logger.Error("record outcome", xlogger.String("symbol", o.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("outcome not recorded").WithError(err))
	}
	return xhttp.CreatedResponse(c, res)
}

type healthStatus struct {
	Status    string                  `json:"status"`
	LastCycle *usecase.CycleSummary   `json:"last_cycle,omitempty"`
	CycleAge  string                  `json:"cycle_age,omitempty"`
	Streaming int                     `json:"streaming"`
	Streams   []models.StreamSnapshot `json:"streams"`
}

// Health is degraded when streams exist but none is delivering data.
func (h *DecisionsHandler) Health(c echo.Context) error {
	streams := h.deps.Streams.Streams()
	out := healthStatus{Status: "ok", Streams: streams}
	for _, s := range streams {
		if s.State == models.StreamStreaming {
			out.Streaming++
		}
	}
	if last, ok := h.deps.Cycles.LastCycle(); ok {
		last.Selected = nil
		out.LastCycle = &last
		out.CycleAge = time.Since(last.Started).Round(time.Second).String()
	}

	code := http.StatusOK
	if len(streams) > 0 && out.Streaming == 0 {
		out.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, out)
}

var _ xhttp.Handler = (*DecisionsHandler)(nil)
