package service

import (
	"context"

	"TradeOrdu/internal/domain/models"
)

// Agent is one scoring heuristic. Analyze must be a pure function of its
// arguments: it must not modify the bundle or the history.
type Agent interface {
	Name() string
	Class() models.StrategyClass
	DefaultParams() models.Params
	Analyze(ctx context.Context, bundle *models.FeatureBundle, params models.Params, history []models.HistoryEntry) (models.AgentResult, error)
}
