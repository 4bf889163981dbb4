package sentiment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"TradeOrdu/internal/domain/models"
	domrepo "TradeOrdu/internal/domain/repository"
	"TradeOrdu/internal/service/cache"
	"TradeOrdu/internal/service/metrics"
	xhttp "TradeOrdu/pkg/http"
)

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
	Attempts int
}

// Client reads sentiment scalars and whale transfers from the external
// feed. Responses are cached per symbol for CacheTTL.
type Client struct {
	baseURL  string
	http     *xhttp.Client
	attempts int

	scores *cache.TTLCache[models.Sentiment]
	whales *cache.TTLCache[[]models.WhaleEvent]
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	metrics.Register()
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		attempts: cfg.Attempts,
		scores:   cache.NewTTLCache[models.Sentiment](cfg.CacheTTL),
		whales:   cache.NewTTLCache[[]models.WhaleEvent](cfg.CacheTTL),
	}
}

type whaleDTO struct {
	Asset     string  `json:"asset"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
}

type whalesResp struct {
	Events []whaleDTO `json:"events"`
}

func (c *Client) Sentiment(ctx context.Context, symbol string) (models.Sentiment, error) {
	symbol = strings.ToUpper(symbol)
	return c.scores.GetOrLoad(symbol, func() (models.Sentiment, error) {
		var s models.Sentiment
		if err := c.getJSON(ctx, "/sentiment", symbol, &s); err != nil {
			return models.Sentiment{}, err
		}
		return s, nil
	})
}

func (c *Client) WhaleEvents(ctx context.Context, symbol string) ([]models.WhaleEvent, error) {
	symbol = strings.ToUpper(symbol)
	return c.whales.GetOrLoad(symbol, func() ([]models.WhaleEvent, error) {
		var resp whalesResp
		if err := c.getJSON(ctx, "/whales", symbol, &resp); err != nil {
			return nil, err
		}
		out := make([]models.WhaleEvent, 0, len(resp.Events))
		for _, e := range resp.Events {
			out = append(out, models.WhaleEvent{
				Asset:  e.Asset,
				Amount: e.Amount,
				At:     time.Unix(e.Timestamp, 0).UTC(),
			})
		}
		return out, nil
	})
}

// getJSON retries transient failures with a short linear backoff.
func (c *Client) getJSON(ctx context.Context, path, symbol string, dest interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("sentiment feed not configured")
	}
	opts := &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: url.Values{"symbol": {symbol}},
		Headers:     map[string]string{"Accept": "application/json"},
	}
	var err error
	for i := 1; i <= c.attempts; i++ {
		start := time.Now()
		err = c.http.SendAndParse(ctx, opts, dest)
		metrics.ObserveCall("sentiment", path, start, err)
		if err == nil {
			return nil
		}
		var se *xhttp.StatusError
		if i == c.attempts || (errors.As(err, &se) && !se.Temporary()) {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return &models.TransportFailure{Op: "sentiment " + path, Err: ctx.Err()}
		}
	}
	return &models.TransportFailure{Op: "sentiment " + path, Err: err}
}

var _ domrepo.SentimentSource = (*Client)(nil)
