package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	symbol string
	feed   models.FeedKind

	mu      sync.Mutex
	state   models.StreamState
	started int
	stopped int
}

func (c *fakeChannel) Start(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started++
	c.state = models.StreamStreaming
}

func (c *fakeChannel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped++
	c.state = models.StreamClosed
}

func (c *fakeChannel) State() models.StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) Latest() models.StreamSnapshot {
	snap := models.StreamSnapshot{Symbol: c.symbol, Feed: c.feed, State: c.State()}
	if c.feed == models.FeedKline {
		snap.Candles = []models.Candle{{Close: 1}, {Close: 2}}
	} else {
		snap.Book = models.OrderBook{Symbol: c.symbol, Bids: []models.PriceLevel{{Price: 1, Quantity: 1}}}
	}
	return snap
}

type channelSet struct {
	mu  sync.Mutex
	all []*fakeChannel
}

func (s *channelSet) factory(symbol string, feed models.FeedKind) StreamChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &fakeChannel{symbol: symbol, feed: feed}
	s.all = append(s.all, c)
	return c
}

func (s *channelSet) started() int {
	n := 0
	for _, c := range s.all {
		if c.State() == models.StreamStreaming {
			n++
		}
	}
	return n
}

func TestStreamManagerStartsAndStopsEveryChannel(t *testing.T) {
	set := &channelSet{}
	m := NewStreamManager([]string{"BTCUSDT", "ETHUSDT"}, set.factory, time.Millisecond, logger.Nop())
	require.Len(t, set.all, 4)

	m.Start(context.Background())
	require.Eventually(t, func() bool { return set.started() == 4 }, time.Second, time.Millisecond)

	assert.Len(t, m.Candles("BTCUSDT"), 2)
	assert.Equal(t, "ETHUSDT", m.OrderBook("ETHUSDT").Symbol)
	assert.Nil(t, m.Candles("XRPUSDT"))
	assert.True(t, m.OrderBook("XRPUSDT").Empty())

	streams := m.Streams()
	require.Len(t, streams, 4)
	assert.Equal(t, "BTCUSDT", streams[0].Symbol)
	assert.Equal(t, models.FeedDepth, streams[0].Feed)
	assert.Nil(t, streams[0].Candles)

	m.Stop()
	for _, c := range set.all {
		assert.Equal(t, models.StreamClosed, c.State())
		assert.Equal(t, 1, c.stopped)
	}
}

func TestStreamManagerStopCancelsStaggeredStart(t *testing.T) {
	set := &channelSet{}
	m := NewStreamManager([]string{"A", "B", "C"}, set.factory, time.Hour, logger.Nop())

	m.Start(context.Background())
	require.Eventually(t, func() bool { return set.started() == 2 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop blocked on staggered start")
	}
	for _, c := range set.all {
		if c.symbol != "A" {
			assert.Zero(t, c.started, c.symbol)
		}
	}
}
