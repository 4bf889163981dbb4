package features

import (
	"math"

	"TradeOrdu/internal/domain/models"

	"gonum.org/v1/gonum/floats"
)

const spoofFactor = 7.0

// AnalyzeOrderBook summarizes walls, spread and spoofing of a snapshot.
func AnalyzeOrderBook(book models.OrderBook) models.OrderbookAnomaly {
	var out models.OrderbookAnomaly
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return out
	}

	out.Spread = math.Abs(book.Asks[0].Price - book.Bids[0].Price)

	bidQty := quantities(book.Bids)
	askQty := quantities(book.Asks)
	out.BigBid = floats.Max(bidQty)
	out.BigAsk = floats.Max(askQty)

	bidMean := floats.Sum(bidQty) / float64(len(bidQty))
	askMean := floats.Sum(askQty) / float64(len(askQty))
	out.Spoofing = out.BigBid > bidMean*spoofFactor || out.BigAsk > askMean*spoofFactor
	return out
}

func quantities(levels []models.PriceLevel) []float64 {
	out := make([]float64, len(levels))
	for i, l := range levels {
		out[i] = l.Quantity
	}
	return out
}

// VolumeAnomaly is the volume of the last 6 bars over the 24 bars before
// them. It is 1 when the baseline is empty.
func VolumeAnomaly(volumes []float64) float64 {
	n := len(volumes)
	if n == 0 {
		return 1
	}
	recentFrom := max(0, n-6)
	baseFrom := max(0, n-30)
	now := floats.Sum(volumes[recentFrom:])
	past := floats.Sum(volumes[baseFrom:recentFrom])
	if past <= 0 {
		return 1
	}
	return now / past
}
