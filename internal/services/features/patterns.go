package features

import (
	"math"

	"TradeOrdu/internal/domain/models"

	"gonum.org/v1/gonum/floats"
)

const (
	doubleLookback  = 30
	doubleTolerance = 0.005
	dojiTolerance   = 0.001
	breakoutWindow  = 10
	wedgeWindow     = 15
	// wedgeMaxSlope is in percent of the mean price per bar.
	wedgeMaxSlope = 0.02
)

// DetectPatterns scans the tail of the candle series.
func DetectPatterns(candles []models.Candle) models.Patterns {
	highs, lows, _, _ := columns(candles)
	return models.Patterns{
		DoubleTop:        doubleExtreme(highs, true),
		DoubleBottom:     doubleExtreme(lows, false),
		BullishEngulfing: bullishEngulfing(candles),
		BearishEngulfing: bearishEngulfing(candles),
		Doji:             doji(candles),
		Breakout:         breakout(candles),
		Breakdown:        breakdown(candles),
		Wedge:            wedge(highs, lows),
	}
}

// doubleExtreme finds the two most extreme points of the lookback window and
// reports whether they are within tolerance and more than three bars apart.
func doubleExtreme(series []float64, top bool) bool {
	if len(series) < 2 {
		return false
	}
	window := series[max(0, len(series)-doubleLookback):]

	pick := floats.MinIdx
	if top {
		pick = floats.MaxIdx
	}
	i1 := pick(window)
	rest := make([]float64, 0, len(window)-1)
	idx := make([]int, 0, len(window)-1)
	for i, v := range window {
		if i != i1 {
			rest = append(rest, v)
			idx = append(idx, i)
		}
	}
	i2 := idx[pick(rest)]

	v1, v2 := window[i1], window[i2]
	denom := math.Max(v1, v2)
	if denom == 0 {
		return false
	}
	apart := i1 - i2
	if apart < 0 {
		apart = -apart
	}
	return math.Abs(v1-v2)/denom < doubleTolerance && apart > 3
}

func bullishEngulfing(c []models.Candle) bool {
	if len(c) < 2 {
		return false
	}
	a, b := c[len(c)-2], c[len(c)-1]
	return a.Close < a.Open && b.Close > b.Open && b.Close > a.Open && b.Open < a.Close
}

func bearishEngulfing(c []models.Candle) bool {
	if len(c) < 2 {
		return false
	}
	a, b := c[len(c)-2], c[len(c)-1]
	return a.Close > a.Open && b.Close < b.Open && b.Close < a.Open && b.Open > a.Close
}

func doji(c []models.Candle) bool {
	if len(c) == 0 {
		return false
	}
	last := c[len(c)-1]
	return math.Abs(last.Open-last.Close) < dojiTolerance*(last.High-last.Low)
}

// breakout compares the last close with the window before it.
func breakout(c []models.Candle) bool {
	if len(c) <= breakoutWindow {
		return false
	}
	prior := c[len(c)-1-breakoutWindow : len(c)-1]
	hi := prior[0].High
	for _, x := range prior[1:] {
		hi = math.Max(hi, x.High)
	}
	return c[len(c)-1].Close > hi
}

func breakdown(c []models.Candle) bool {
	if len(c) <= breakoutWindow {
		return false
	}
	prior := c[len(c)-1-breakoutWindow : len(c)-1]
	lo := prior[0].Low
	for _, x := range prior[1:] {
		lo = math.Min(lo, x.Low)
	}
	return c[len(c)-1].Close < lo
}

// wedge flags a flat channel: both high and low regressions are nearly level.
func wedge(highs, lows []float64) bool {
	if len(highs) < wedgeWindow {
		return false
	}
	mean := (floats.Sum(highs[len(highs)-wedgeWindow:]) + floats.Sum(lows[len(lows)-wedgeWindow:])) / float64(2*wedgeWindow)
	if mean == 0 {
		return false
	}
	hs := Slope(highs, wedgeWindow) / mean * 100
	ls := Slope(lows, wedgeWindow) / mean * 100
	return math.Abs(hs) < wedgeMaxSlope && math.Abs(ls) < wedgeMaxSlope
}

// OscillatorAlerts derives the extreme-level and crossing alerts.
func OscillatorAlerts(ind models.Indicators) models.OscillatorAlerts {
	return models.OscillatorAlerts{
		RSIOverbought:   ind.RSI > 80,
		RSIOversold:     ind.RSI < 20,
		MACDCrossUp:     ind.MACD > ind.MACDSignal && ind.PrevMACD < ind.PrevMACDSignal,
		MACDCrossDown:   ind.MACD < ind.MACDSignal && ind.PrevMACD > ind.PrevMACDSignal,
		StochOverbought: ind.StochK > 90,
		StochOversold:   ind.StochK < 10,
	}
}
