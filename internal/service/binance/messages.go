package binance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"TradeOrdu/internal/domain/models"
)

// KlineURL is the closed-candle feed of one instrument.
func KlineURL(base, symbol string, iv models.Interval) string {
	return fmt.Sprintf("%s/%s@kline_%s", strings.TrimRight(base, "/"), strings.ToLower(symbol), iv)
}

// DepthURL is the top-20 partial book feed of one instrument.
func DepthURL(base, symbol string) string {
	return fmt.Sprintf("%s/%s@depth20@500ms", strings.TrimRight(base, "/"), strings.ToLower(symbol))
}

type wsKline struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Closed    bool   `json:"x"`
}

type wsKlineEvent struct {
	Event  string  `json:"e"`
	Symbol string  `json:"s"`
	Kline  wsKline `json:"k"`
}

// wsDepthEvent covers both the futures ("b"/"a") and spot ("bids"/"asks")
// partial book payloads.
type wsDepthEvent struct {
	Event     string      `json:"e"`
	EventTime int64       `json:"E"`
	Symbol    string      `json:"s"`
	Bids      [][2]string `json:"b"`
	Asks      [][2]string `json:"a"`
	SpotBids  [][2]string `json:"bids"`
	SpotAsks  [][2]string `json:"asks"`
}

// decodeKline returns the candle and whether the bar is closed.
func decodeKline(raw []byte) (models.Candle, bool, error) {
	var ev wsKlineEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return models.Candle{}, false, fmt.Errorf("decode kline: %w", err)
	}
	if ev.Event != "" && ev.Event != "kline" {
		return models.Candle{}, false, nil
	}
	k := ev.Kline
	c, err := ParseCandle(k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume)
	if err != nil {
		return models.Candle{}, false, err
	}
	return c, k.Closed, nil
}

func decodeDepth(symbol string, raw []byte) (models.OrderBook, error) {
	var ev wsDepthEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return models.OrderBook{}, fmt.Errorf("decode depth: %w", err)
	}
	bids, asks := ev.Bids, ev.Asks
	if len(bids) == 0 && len(asks) == 0 {
		bids, asks = ev.SpotBids, ev.SpotAsks
	}
	book := models.OrderBook{Symbol: symbol}
	var err error
	if book.Bids, err = parseLevels(bids); err != nil {
		return models.OrderBook{}, err
	}
	if book.Asks, err = parseLevels(asks); err != nil {
		return models.OrderBook{}, err
	}
	if ev.EventTime > 0 {
		book.UpdatedAt = time.UnixMilli(ev.EventTime).UTC()
	}
	return book, nil
}

func parseLevels(raw [][2]string) ([]models.PriceLevel, error) {
	out := make([]models.PriceLevel, 0, len(raw))
	for _, lv := range raw {
		p, err := parseFloat("price", lv[0])
		if err != nil {
			return nil, err
		}
		q, err := parseFloat("quantity", lv[1])
		if err != nil {
			return nil, err
		}
		out = append(out, models.PriceLevel{Price: p, Quantity: q})
	}
	return out, nil
}

// ParseCandle converts the exchange's string-encoded OHLCV fields.
func ParseCandle(openMs, closeMs int64, o, h, l, c, v string) (models.Candle, error) {
	var (
		out  = models.Candle{OpenTime: time.UnixMilli(openMs).UTC(), CloseTime: time.UnixMilli(closeMs).UTC()}
		errs [5]error
	)
	out.Open, errs[0] = parseFloat("open", o)
	out.High, errs[1] = parseFloat("high", h)
	out.Low, errs[2] = parseFloat("low", l)
	out.Close, errs[3] = parseFloat("close", c)
	out.Volume, errs[4] = parseFloat("volume", v)
	for _, err := range errs {
		if err != nil {
			return models.Candle{}, err
		}
	}
	return out, nil
}

func parseFloat(field, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return f, nil
}
