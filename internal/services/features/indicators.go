package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// All series functions return a slice aligned with their input. Warm-up
// positions hold NaN.

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Last returns the final element of s, or NaN.
func Last(s []float64) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

// Prev returns the element before the final one, or NaN.
func Prev(s []float64) float64 {
	if len(s) < 2 {
		return math.NaN()
	}
	return s[len(s)-2]
}

// ewm is an exponentially weighted mean without bias adjustment. Leading
// NaNs are skipped; the first minPeriods valid points stay NaN.
func ewm(x []float64, alpha float64, minPeriods int) []float64 {
	out := nanSeries(len(x))
	start := 0
	for start < len(x) && math.IsNaN(x[start]) {
		start++
	}
	if start == len(x) {
		return out
	}
	acc := x[start]
	for i := start; i < len(x); i++ {
		if i > start {
			acc = alpha*x[i] + (1-alpha)*acc
		}
		if i-start+1 >= minPeriods {
			out[i] = acc
		}
	}
	return out
}

func EMA(x []float64, period int) []float64 {
	return ewm(x, 2/float64(period+1), period)
}

func SMA(x []float64, period int) []float64 {
	out := nanSeries(len(x))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(x); i++ {
		out[i] = stat.Mean(x[i-period+1:i+1], nil)
	}
	return out
}

// RollingStd is the sample standard deviation over a trailing window.
func RollingStd(x []float64, period int) []float64 {
	out := nanSeries(len(x))
	if period < 2 {
		return out
	}
	for i := period - 1; i < len(x); i++ {
		out[i] = stat.StdDev(x[i-period+1:i+1], nil)
	}
	return out
}

// MACD returns the 12/26 line, its 9-period signal and their difference.
func MACD(close []float64) (line, signal, diff []float64) {
	fast := EMA(close, 12)
	slow := EMA(close, 26)
	line = make([]float64, len(close))
	for i := range close {
		line[i] = fast[i] - slow[i]
	}
	signal = EMA(line, 9)
	diff = make([]float64, len(close))
	for i := range close {
		diff[i] = line[i] - signal[i]
	}
	return line, signal, diff
}

// RSI uses Wilder smoothing.
func RSI(close []float64, period int) []float64 {
	n := len(close)
	up := nanSeries(n)
	down := nanSeries(n)
	for i := 1; i < n; i++ {
		d := close[i] - close[i-1]
		up[i] = math.Max(d, 0)
		down[i] = math.Max(-d, 0)
	}
	alpha := 1 / float64(period)
	avgUp := ewm(up, alpha, period)
	avgDown := ewm(down, alpha, period)

	out := nanSeries(n)
	for i := range out {
		if math.IsNaN(avgUp[i]) || math.IsNaN(avgDown[i]) {
			continue
		}
		if avgDown[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgUp[i] / avgDown[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// Stochastic returns %K over period and %D as its 3-bar mean.
func Stochastic(high, low, close []float64, period int) (k, d []float64) {
	k = nanSeries(len(close))
	for i := period - 1; i < len(close); i++ {
		hh := floats.Max(high[i-period+1 : i+1])
		ll := floats.Min(low[i-period+1 : i+1])
		if hh == ll {
			k[i] = 50
			continue
		}
		k[i] = 100 * (close[i] - ll) / (hh - ll)
	}
	return k, SMA(k, 3)
}

func CCI(high, low, close []float64, period int) []float64 {
	tp := make([]float64, len(close))
	for i := range close {
		tp[i] = (high[i] + low[i] + close[i]) / 3
	}
	out := nanSeries(len(close))
	for i := period - 1; i < len(close); i++ {
		window := tp[i-period+1 : i+1]
		mean := stat.Mean(window, nil)
		var mad float64
		for _, v := range window {
			mad += math.Abs(v - mean)
		}
		mad /= float64(period)
		if mad == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - mean) / (0.015 * mad)
	}
	return out
}

// ROC is the percent change over period bars.
func ROC(close []float64, period int) []float64 {
	out := nanSeries(len(close))
	for i := period; i < len(close); i++ {
		if close[i-period] == 0 {
			continue
		}
		out[i] = (close[i] - close[i-period]) / close[i-period] * 100
	}
	return out
}

// Bollinger uses the population deviation, two deviations wide.
func Bollinger(close []float64, period int) (upper, middle, lower, width []float64) {
	n := len(close)
	upper, middle, lower, width = nanSeries(n), nanSeries(n), nanSeries(n), nanSeries(n)
	for i := period - 1; i < n; i++ {
		mean, std := stat.PopMeanStdDev(close[i-period+1:i+1], nil)
		middle[i] = mean
		upper[i] = mean + 2*std
		lower[i] = mean - 2*std
		if mean != 0 {
			width[i] = (upper[i] - lower[i]) / mean * 100
		}
	}
	return upper, middle, lower, width
}

// ATR seeds with the mean true range of the first window, then applies
// Wilder smoothing.
func ATR(high, low, close []float64, period int) []float64 {
	n := len(close)
	out := nanSeries(n)
	if n < period || period <= 0 {
		return out
	}
	tr := make([]float64, n)
	for i := range close {
		tr[i] = high[i] - low[i]
		if i > 0 {
			tr[i] = math.Max(tr[i], math.Max(math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1])))
		}
	}
	atr := stat.Mean(tr[:period], nil)
	out[period-1] = atr
	for i := period; i < n; i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}

func OBV(close, volume []float64) []float64 {
	out := make([]float64, len(close))
	var acc float64
	for i := range close {
		if i > 0 && close[i] < close[i-1] {
			acc -= volume[i]
		} else {
			acc += volume[i]
		}
		out[i] = acc
	}
	return out
}

func VPT(close, volume []float64) []float64 {
	out := make([]float64, len(close))
	var acc float64
	for i := 1; i < len(close); i++ {
		if close[i-1] != 0 {
			acc += (close[i] - close[i-1]) / close[i-1] * volume[i]
		}
		out[i] = acc
	}
	return out
}

// Slope is the least-squares slope of the last window points against
// their index.
func Slope(y []float64, window int) float64 {
	if window < 2 || len(y) < window {
		return 0
	}
	tail := y[len(y)-window:]
	x := make([]float64, window)
	for i := range x {
		x[i] = float64(i)
	}
	_, beta := stat.LinearRegression(x, tail, nil, false)
	return beta
}

// ZScores standardizes x with the population deviation.
func ZScores(x []float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - mean) / (std + 1e-8)
	}
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
