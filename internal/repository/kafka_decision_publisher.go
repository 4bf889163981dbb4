package repository

import (
	"context"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
)

// Publisher is the part of the Kafka producer the decision sink needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaDecisionPublisher publishes reports keyed by symbol so one
// instrument's decisions stay on one partition.
type KafkaDecisionPublisher struct {
	producer Publisher
	topic    string
}

func NewKafkaDecisionPublisher(producer Publisher, topic string) *KafkaDecisionPublisher {
	return &KafkaDecisionPublisher{producer: producer, topic: topic}
}

func (p *KafkaDecisionPublisher) Name() string { return "kafka" }

func (p *KafkaDecisionPublisher) Report(ctx context.Context, r models.Report) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.Symbol()), r)
}

var _ domrepo.Reporter = (*KafkaDecisionPublisher)(nil)
