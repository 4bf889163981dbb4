package usecase

import (
	"context"
	"encoding/json"
	"time"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
	pkgkafka "TradeOrdu/pkg/kafka"

	"github.com/go-playground/validator/v10"
)

// KafkaOutcomeHandler consumes realized trade outcomes.
type KafkaOutcomeHandler struct {
	topic    string
	svc      *OutcomeService
	metrics  domrepo.Metrics
	validate *validator.Validate
}

func NewKafkaOutcomeHandler(topic string, svc *OutcomeService, metrics domrepo.Metrics) *KafkaOutcomeHandler {
	return &KafkaOutcomeHandler{topic: topic, svc: svc, metrics: metrics, validate: validator.New()}
}

func (h *KafkaOutcomeHandler) Topic() string { return h.topic }

// incoming message schema: OutcomeRequest
func (h *KafkaOutcomeHandler) Handle(ctx context.Context, b []byte) error {
	var req models.OutcomeRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("outcome_unmarshal")
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		h.metrics.RecordError("outcome_invalid")
		return err
	}
	o, err := h.svc.FromRequest(req)
	if err != nil {
		h.metrics.RecordError("outcome_invalid")
		return err
	}

	start := time.Now()
	_, err = h.svc.Record(ctx, o)
	h.metrics.RecordLatency("outcome_record", time.Since(start).Seconds())
	return err
}

var _ pkgkafka.MessageHandler = (*KafkaOutcomeHandler)(nil)
