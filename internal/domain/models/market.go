package models

import "time"

// Candle is one closed OHLCV bar.
type Candle struct {
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook is a top-N depth snapshot. Levels are best-first.
type OrderBook struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (o OrderBook) Empty() bool { return len(o.Bids) == 0 && len(o.Asks) == 0 }

// Clone returns a copy that shares no backing arrays with o.
func (o OrderBook) Clone() OrderBook {
	out := o
	out.Bids = append([]PriceLevel(nil), o.Bids...)
	out.Asks = append([]PriceLevel(nil), o.Asks...)
	return out
}

// WhaleEvent is a large transfer. Amount is signed in quote currency:
// positive means inflow to the market side (buy pressure).
type WhaleEvent struct {
	Asset  string    `json:"asset"`
	Amount float64   `json:"amount"`
	At     time.Time `json:"at"`
}

type FundingRate struct {
	Rate float64   `json:"rate"`
	Time time.Time `json:"time"`
}

type OpenInterest struct {
	Value    float64   `json:"value"`
	Notional float64   `json:"notional"`
	Time     time.Time `json:"time"`
}

// Interval is a kline resolution understood by the exchange.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
)

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv Interval) bool {
	switch iv {
	case Interval1m, Interval5m, Interval15m, Interval1h, Interval4h:
		return true
	default:
		return false
	}
}

// NormalizeInterval converts a raw string to a valid interval, or def.
func NormalizeInterval(s string, def Interval) Interval {
	iv := Interval(s)
	if IsValidInterval(iv) {
		return iv
	}
	return def
}
