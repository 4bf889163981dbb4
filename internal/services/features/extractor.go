package features

import (
	"math"

	"TradeOrdu/internal/domain/models"
)

// Technicals is the indicator set of one candle series.
type Technicals struct {
	Indicators models.Indicators
	Time       models.TimeFeatures
	RSI        []float64
	MACD       []float64
	MACDSignal []float64
}

func columns(candles []models.Candle) (high, low, close, volume []float64) {
	n := len(candles)
	high, low, close, volume = make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, c := range candles {
		high[i] = c.High
		low[i] = c.Low
		close[i] = c.Close
		volume[i] = c.Volume
	}
	return high, low, close, volume
}

// ComputeTechnicals derives every indicator the agents read. Values that
// need more history than available are NaN.
func ComputeTechnicals(candles []models.Candle) Technicals {
	high, low, close, volume := columns(candles)

	macd, signal, diff := MACD(close)
	rsi := RSI(close, 14)
	k, d := Stochastic(high, low, close, 14)
	upper, middle, lower, width := Bollinger(close, 20)
	atr := ATR(high, low, close, 14)
	vol := RollingStd(close, 10)

	ind := models.Indicators{
		EMA9:           Last(EMA(close, 9)),
		EMA21:          Last(EMA(close, 21)),
		EMA55:          Last(EMA(close, 55)),
		SMA50:          Last(SMA(close, 50)),
		SMA100:         Last(SMA(close, 100)),
		SMA200:         Last(SMA(close, 200)),
		MACD:           Last(macd),
		MACDSignal:     Last(signal),
		MACDDiff:       Last(diff),
		PrevMACD:       Prev(macd),
		PrevMACDSignal: Prev(signal),
		RSI:            Last(rsi),
		StochK:         Last(k),
		StochD:         Last(d),
		CCI:            Last(CCI(high, low, close, 20)),
		ROC:            Last(ROC(close, 12)),
		BollUpper:      Last(upper),
		BollMiddle:     Last(middle),
		BollLower:      Last(lower),
		BollWidth:      Last(width),
		ATR:            Last(atr),
		Volatility:     Last(vol),
		OBV:            Last(OBV(close, volume)),
		VPT:            Last(VPT(close, volume)),
		Shock:          diffBack(close, 3),
	}

	tf := models.TimeFeatures{
		ATR:        ind.ATR,
		Volatility: ind.Volatility,
		Momentum:   diffBack(close, 10),
	}
	if n := len(candles); n > 0 {
		tf.SpreadLast = candles[n-1].High - candles[n-1].Low
	}
	tf.MomentumScore = MomentumScore(tf.Momentum, tf.ATR)

	return Technicals{Indicators: ind, Time: tf, RSI: rsi, MACD: macd, MACDSignal: signal}
}

// diffBack is close[-1] - close[-1-lag], or NaN.
func diffBack(close []float64, lag int) float64 {
	n := len(close)
	if n <= lag {
		return math.NaN()
	}
	return close[n-1] - close[n-1-lag]
}

// MomentumScore normalizes momentum by twice the ATR into [-1, 1].
func MomentumScore(momentum, atr float64) float64 {
	if !finite(momentum) || !finite(atr) || atr <= 0 {
		return 0
	}
	return clamp(momentum/(2*atr), -1, 1)
}

// View builds the secondary-timeframe oscillator snapshot.
func View(iv models.Interval, candles []models.Candle) models.TimeframeView {
	_, _, close, _ := columns(candles)
	macd, signal, _ := MACD(close)
	return models.TimeframeView{
		Interval:   iv,
		RSI:        Last(RSI(close, 14)),
		MACD:       Last(macd),
		MACDSignal: Last(signal),
		EMA9:       Last(EMA(close, 9)),
		EMA21:      Last(EMA(close, 21)),
	}
}
