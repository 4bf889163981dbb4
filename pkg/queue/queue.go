package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher hands a payload to a background job keyed by msgType.
type Publisher interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Job consumes every message of one Type. A returned error schedules a
// retry until RetryLimit is spent, after which the message is dead-lettered.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}

type QueueConfig struct {
	Workers    int
	RetryLimit int
	// RetryDelay is the first backoff; each further attempt doubles it.
	RetryDelay time.Duration
}

// Message is the stored envelope. Payload is json.RawMessage once read back.
type Message struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Attempts  int         `json:"attempts"`
	Timestamp time.Time   `json:"timestamp"`
}

// ParsePayload converts a payload read from Redis, or passed in-process,
// into T.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var raw []byte
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("re-encode payload: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}

	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}
