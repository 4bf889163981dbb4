package models

// Requests for the decision HTTP endpoints. Defined in domain for reuse by
// the Kafka outcome consumer.

type OutcomeRequest struct {
	DecisionID string  `json:"decision_id"`
	Symbol     string  `json:"symbol" validate:"required,min=3"`
	Direction  string  `json:"direction" validate:"required,oneof=long short LONG SHORT"`
	Win        bool    `json:"win"`
	PnL        float64 `json:"pnl"`
	// ClosedAt is RFC3339 or unix seconds/milliseconds; empty means now.
	ClosedAt string `json:"closed_at"`
}

type HistoryRequest struct {
	Symbol string `param:"symbol" validate:"required"`
	Limit  int    `query:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type WeightsView struct {
	Agents map[string]float64    `json:"agents"`
	Stats  map[string]AgentStats `json:"stats"`
	Meta   map[string]float64    `json:"meta"`
}
