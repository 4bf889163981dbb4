package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/pkg/logger"
	"TradeOrdu/pkg/util"
)

type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, results []models.AgentResult, outcome *models.TradeOutcome)
}

type HistoryAnnotator interface {
	Annotate(symbol, cycleID string, realized models.Direction) int
}

// DecisionLookup finds the report an outcome refers to.
type DecisionLookup interface {
	ByID(ctx context.Context, id string) (models.Report, bool, error)
	Latest(ctx context.Context, symbol string) (models.Report, bool, error)
}

// OutcomeResult tells the caller what an outcome updated.
type OutcomeResult struct {
	DecisionID string `json:"decision_id,omitempty"`
	Agents     int    `json:"agents"`
	Annotated  int    `json:"annotated"`
}

// OutcomeService grades the agents of a past decision with a realized
// trade outcome and stamps the outcome on their histories.
type OutcomeService struct {
	feedback  OutcomeRecorder
	history   HistoryAnnotator
	decisions DecisionLookup
	autolearn bool
	logger    *logger.Logger
	now       func() time.Time
}

func NewOutcomeService(fb OutcomeRecorder, hist HistoryAnnotator, decisions DecisionLookup, autolearn bool, lgr *logger.Logger) *OutcomeService {
	return &OutcomeService{feedback: fb, history: hist, decisions: decisions, autolearn: autolearn, logger: lgr, now: time.Now}
}

// FromRequest validates the direction and builds an outcome.
func (s *OutcomeService) FromRequest(req models.OutcomeRequest) (models.TradeOutcome, error) {
	dir := models.Direction(strings.ToLower(req.Direction))
	if dir != models.DirectionLong && dir != models.DirectionShort {
		return models.TradeOutcome{}, fmt.Errorf("invalid direction %q", req.Direction)
	}
	return models.TradeOutcome{
		DecisionID: req.DecisionID,
		Symbol:     strings.ToUpper(req.Symbol),
		Direction:  dir,
		Win:        req.Win,
		PnL:        req.PnL,
		ClosedAt:   util.ParseTimeDefault(req.ClosedAt, s.now()).UTC(),
	}, nil
}

func (s *OutcomeService) Record(ctx context.Context, o models.TradeOutcome) (OutcomeResult, error) {
	if o.Symbol == "" {
		return OutcomeResult{}, fmt.Errorf("outcome without symbol")
	}
	report, found, err := s.lookup(ctx, o)
	if err != nil {
		s.logger.Warn("decision lookup failed", logger.String("symbol", o.Symbol), logger.Error(err))
	}

	var res OutcomeResult
	if !found {
		s.logger.Warn("outcome matches no known decision, nothing graded",
			logger.String("symbol", o.Symbol),
			logger.String("decision", o.DecisionID))
		return res, nil
	}
	res.DecisionID = report.Decision.ID
	res.Agents = len(report.Decision.Results)
	if s.autolearn {
		s.feedback.RecordOutcome(ctx, report.Decision.Results, &o)
	}
	if s.history != nil {
		res.Annotated = s.history.Annotate(o.Symbol, report.Decision.CycleID, o.Realized())
	}
	s.logger.Info("trade outcome recorded",
		logger.String("symbol", o.Symbol),
		logger.String("direction", string(o.Direction)),
		logger.Bool("win", o.Win),
		logger.String("decision", res.DecisionID),
		logger.Int("annotated", res.Annotated))
	return res, nil
}

// lookup resolves the decision an outcome refers to. An explicit id is
// never replaced by another decision of the same symbol.
func (s *OutcomeService) lookup(ctx context.Context, o models.TradeOutcome) (models.Report, bool, error) {
	if s.decisions == nil {
		return models.Report{}, false, nil
	}
	if o.DecisionID != "" {
		return s.decisions.ByID(ctx, o.DecisionID)
	}
	return s.decisions.Latest(ctx, o.Symbol)
}
