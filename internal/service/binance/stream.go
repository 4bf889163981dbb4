package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"TradeOrdu/internal/domain/models"
	"TradeOrdu/internal/domain/repository"
	"TradeOrdu/pkg/logger"
	"TradeOrdu/pkg/metrics"

	"github.com/gorilla/websocket"
)

// Conn is the part of a websocket connection a channel uses.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials with gorilla/websocket.
type WSDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type ChannelConfig struct {
	Backoff  time.Duration
	Ping     time.Duration
	Capacity int
}

func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{Backoff: 5 * time.Second, Ping: 20 * time.Second, Capacity: 200}
}

// Channel is one persistent subscription of one instrument. The kline feed
// keeps a capped sequence of closed candles, the depth feed only the last
// snapshot. Buffers are written only by the channel's own goroutine.
type Channel struct {
	symbol string
	feed   models.FeedKind
	url    string
	cfg    ChannelConfig
	dialer Dialer
	logger *logger.Logger
	rec    repository.Metrics

	state      atomic.Int32
	reconnects atomic.Int64

	mu      sync.RWMutex
	candles []models.Candle
	book    models.OrderBook
	lastMsg time.Time

	life    sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

func NewKlineChannel(base, symbol string, iv models.Interval, cfg ChannelConfig, d Dialer, lgr *logger.Logger, rec repository.Metrics) *Channel {
	return newChannel(symbol, models.FeedKline, KlineURL(base, symbol, iv), cfg, d, lgr, rec)
}

func NewDepthChannel(base, symbol string, cfg ChannelConfig, d Dialer, lgr *logger.Logger, rec repository.Metrics) *Channel {
	return newChannel(symbol, models.FeedDepth, DepthURL(base, symbol), cfg, d, lgr, rec)
}

func newChannel(symbol string, feed models.FeedKind, url string, cfg ChannelConfig, d Dialer, lgr *logger.Logger, rec repository.Metrics) *Channel {
	def := DefaultChannelConfig()
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.Ping <= 0 {
		cfg.Ping = def.Ping
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if d == nil {
		d = WSDialer{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Channel{
		symbol: symbol,
		feed:   feed,
		url:    url,
		cfg:    cfg,
		dialer: d,
		logger: lgr.With(logger.String("symbol", symbol), logger.String("feed", string(feed))),
		rec:    rec,
	}
}

func (c *Channel) Symbol() string        { return c.symbol }
func (c *Channel) Feed() models.FeedKind { return c.feed }
func (c *Channel) URL() string           { return c.url }

func (c *Channel) State() models.StreamState {
	return models.StreamState(c.state.Load())
}

func (c *Channel) setState(s models.StreamState) {
	if models.StreamState(c.state.Swap(int32(s))) != s {
		c.rec.RecordStreamState(c.symbol, c.feed, s)
	}
}

// Start begins background ingestion. Calling it on a running or stopped
// channel does nothing.
func (c *Channel) Start(ctx context.Context) {
	c.life.Lock()
	defer c.life.Unlock()
	if c.cancel != nil || c.stopped {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Stop cancels the connection and waits for the ingestion goroutine; no
// buffer is written after it returns.
func (c *Channel) Stop() {
	c.life.Lock()
	defer c.life.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	c.setState(models.StreamClosed)
}

// Latest returns a copy of the buffered view.
func (c *Channel) Latest() models.StreamSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.StreamSnapshot{
		Symbol:      c.symbol,
		Feed:        c.feed,
		State:       c.State(),
		Reconnects:  c.reconnects.Load(),
		LastMessage: c.lastMsg,
		Candles:     append([]models.Candle(nil), c.candles...),
		Book:        c.book.Clone(),
	}
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	for {
		c.setState(models.StreamConnecting)
		conn, err := c.dialer.Dial(ctx, c.url)
		if err == nil {
			c.setState(models.StreamStreaming)
			c.logger.Info("stream connected")
			err = c.consume(ctx, conn)
		}
		if ctx.Err() != nil {
			return
		}

		c.setState(models.StreamReconnecting)
		c.reconnects.Add(1)
		c.rec.RecordReconnect(c.symbol, c.feed)
		c.logger.Warn("stream lost, reconnecting",
			logger.Error(&models.TransportFailure{Op: string(c.feed), Err: err}),
			logger.Duration("backoff", c.cfg.Backoff))

		t := time.NewTimer(c.cfg.Backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// consume reads until the connection fails or ctx is cancelled.
func (c *Channel) consume(ctx context.Context, conn Conn) error {
	readTimeout := c.cfg.Ping * 3
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.cfg.Ping)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// unblocks ReadMessage
				_ = conn.Close()
				return
			case <-stop:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.Ping)); err != nil {
					c.logger.Debug("ping failed", logger.Error(err))
				}
			}
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return fmt.Errorf("peer close %d: %w", ce.Code, models.ErrChannelClosed)
			}
			return fmt.Errorf("read: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.apply(raw); err != nil {
			c.logger.Debug("dropping undecodable frame", logger.Error(err))
		}
	}
}

func (c *Channel) apply(raw []byte) error {
	switch c.feed {
	case models.FeedKline:
		candle, closed, err := decodeKline(raw)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.lastMsg = time.Now().UTC()
		if closed {
			c.candles = appendCandle(c.candles, candle, c.cfg.Capacity)
		}
		c.mu.Unlock()
	case models.FeedDepth:
		book, err := decodeDepth(c.symbol, raw)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.lastMsg = time.Now().UTC()
		if book.UpdatedAt.IsZero() {
			book.UpdatedAt = c.lastMsg
		}
		c.book = book
		c.mu.Unlock()
	}
	return nil
}

// appendCandle keeps the series ordered by open time, replaces a repeated
// bar and drops the oldest beyond capacity.
func appendCandle(series []models.Candle, c models.Candle, capacity int) []models.Candle {
	if n := len(series); n > 0 {
		last := series[n-1].OpenTime
		switch {
		case c.OpenTime.Equal(last):
			series[n-1] = c
			return series
		case c.OpenTime.Before(last):
			return series
		}
	}
	series = append(series, c)
	if over := len(series) - capacity; over > 0 {
		series = append(series[:0:0], series[over:]...)
	}
	return series
}
