package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/pkg/logger"
)

// StreamChannel is one feed subscription of one instrument.
type StreamChannel interface {
	Start(ctx context.Context)
	Stop()
	State() models.StreamState
	Latest() models.StreamSnapshot
}

// ChannelFactory builds the channel for one (instrument, feed) pair.
type ChannelFactory func(symbol string, feed models.FeedKind) StreamChannel

type feedPair struct {
	kline StreamChannel
	depth StreamChannel
}

// StreamManager owns the kline and depth channels of every instrument and
// serves their buffers as the live feed.
type StreamManager struct {
	symbols []string
	feeds   map[string]feedPair
	stagger time.Duration
	logger  *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewStreamManager(symbols []string, factory ChannelFactory, stagger time.Duration, lgr *logger.Logger) *StreamManager {
	m := &StreamManager{
		symbols: append([]string(nil), symbols...),
		feeds:   make(map[string]feedPair, len(symbols)),
		stagger: stagger,
		logger:  lgr,
	}
	for _, s := range symbols {
		m.feeds[s] = feedPair{kline: factory(s, models.FeedKline), depth: factory(s, models.FeedDepth)}
	}
	return m
}

// Start launches channels one instrument at a time, stagger apart. It
// returns immediately; Stop cancels a start still in progress.
func (m *StreamManager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for i, s := range m.symbols {
			if i > 0 && m.stagger > 0 {
				t := time.NewTimer(m.stagger)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			if ctx.Err() != nil {
				return
			}
			f := m.feeds[s]
			f.kline.Start(ctx)
			f.depth.Start(ctx)
			m.logger.Debug("stream channels started", logger.String("symbol", s))
		}
		m.logger.Info("all stream channels started", logger.Int("symbols", len(m.symbols)))
	}()
}

// Stop tears down every channel and waits for them.
func (m *StreamManager) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()

	var wg sync.WaitGroup
	for _, f := range m.feeds {
		for _, ch := range []StreamChannel{f.kline, f.depth} {
			ch := ch
			wg.Add(1)
			go func() {
				defer wg.Done()
				ch.Stop()
			}()
		}
	}
	wg.Wait()
}

func (m *StreamManager) Candles(symbol string) []models.Candle {
	f, ok := m.feeds[symbol]
	if !ok {
		return nil
	}
	return f.kline.Latest().Candles
}

func (m *StreamManager) OrderBook(symbol string) models.OrderBook {
	f, ok := m.feeds[symbol]
	if !ok {
		return models.OrderBook{}
	}
	return f.depth.Latest().Book
}

// Streams lists the state of every channel, by symbol then feed.
func (m *StreamManager) Streams() []models.StreamSnapshot {
	out := make([]models.StreamSnapshot, 0, 2*len(m.feeds))
	for _, f := range m.feeds {
		for _, ch := range []StreamChannel{f.kline, f.depth} {
			snap := ch.Latest()
			snap.Candles, snap.Book = nil, models.OrderBook{}
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Feed < out[j].Feed
	})
	return out
}

func (m *StreamManager) Symbols() []string {
	return append([]string(nil), m.symbols...)
}
