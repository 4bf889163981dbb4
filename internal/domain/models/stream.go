package models

import (
	"fmt"
	"time"
)

// FeedKind identifies one logical subscription of an instrument.
type FeedKind string

const (
	FeedKline FeedKind = "kline"
	FeedDepth FeedKind = "depth"
)

// StreamState is the lifecycle state of a stream channel.
type StreamState int32

const (
	StreamDisconnected StreamState = iota
	StreamConnecting
	StreamStreaming
	StreamReconnecting
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamDisconnected:
		return "disconnected"
	case StreamConnecting:
		return "connecting"
	case StreamStreaming:
		return "streaming"
	case StreamReconnecting:
		return "reconnecting"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s StreamState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *StreamState) UnmarshalText(b []byte) error {
	for st := StreamDisconnected; st <= StreamClosed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown stream state %q", b)
}

// StreamSnapshot is the buffered view of one channel.
type StreamSnapshot struct {
	Symbol      string      `json:"symbol"`
	Feed        FeedKind    `json:"feed"`
	State       StreamState `json:"state"`
	Reconnects  int64       `json:"reconnects"`
	LastMessage time.Time   `json:"last_message"`
	Candles     []Candle    `json:"-"`
	Book        OrderBook   `json:"-"`
}
