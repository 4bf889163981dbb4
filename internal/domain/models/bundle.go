package models

import (
	"sort"
	"strings"
	"time"
)

// Indicators holds the latest value of every derived series. Prev* fields
// carry the previous bar where a rule needs a crossing.
type Indicators struct {
	EMA9   float64 `json:"ema_9"`
	EMA21  float64 `json:"ema_21"`
	EMA55  float64 `json:"ema_55"`
	SMA50  float64 `json:"sma_50"`
	SMA100 float64 `json:"sma_100"`
	SMA200 float64 `json:"sma_200"`

	MACD           float64 `json:"macd"`
	MACDSignal     float64 `json:"macd_signal"`
	MACDDiff       float64 `json:"macd_diff"`
	PrevMACD       float64 `json:"prev_macd"`
	PrevMACDSignal float64 `json:"prev_macd_signal"`

	RSI    float64 `json:"rsi_14"`
	StochK float64 `json:"stoch_k"`
	StochD float64 `json:"stoch_d"`
	CCI    float64 `json:"cci_20"`
	ROC    float64 `json:"roc"`

	BollUpper  float64 `json:"bb_high"`
	BollMiddle float64 `json:"bb_mid"`
	BollLower  float64 `json:"bb_low"`
	BollWidth  float64 `json:"bb_width"`

	ATR        float64 `json:"atr_14"`
	Volatility float64 `json:"volatility"`
	OBV        float64 `json:"obv"`
	VPT        float64 `json:"vpt"`
	// Shock is close[-1] - close[-4].
	Shock float64 `json:"momentum_shock"`
}

// Patterns are the chart-pattern flags for the latest bar.
type Patterns struct {
	DoubleTop        bool `json:"double_top"`
	DoubleBottom     bool `json:"double_bottom"`
	BullishEngulfing bool `json:"bullish_engulfing"`
	BearishEngulfing bool `json:"bearish_engulfing"`
	Doji             bool `json:"doji"`
	Breakout         bool `json:"breakout"`
	Breakdown        bool `json:"breakdown"`
	Wedge            bool `json:"wedge"`
}

// Names lists the set flags in a stable order.
func (p Patterns) Names() []string {
	var out []string
	add := func(on bool, name string) {
		if on {
			out = append(out, name)
		}
	}
	add(p.DoubleTop, "double_top")
	add(p.DoubleBottom, "double_bottom")
	add(p.BullishEngulfing, "bullish_engulfing")
	add(p.BearishEngulfing, "bearish_engulfing")
	add(p.Doji, "doji")
	add(p.Breakout, "breakout")
	add(p.Breakdown, "breakdown")
	add(p.Wedge, "wedge")
	return out
}

func (p Patterns) Count() int { return len(p.Names()) }

type OscillatorAlerts struct {
	RSIOverbought   bool `json:"rsi_overbought"`
	RSIOversold     bool `json:"rsi_oversold"`
	MACDCrossUp     bool `json:"macd_cross_up"`
	MACDCrossDown   bool `json:"macd_cross_down"`
	StochOverbought bool `json:"stoch_overbought"`
	StochOversold   bool `json:"stoch_oversold"`
}

func (a OscillatorAlerts) Count() int {
	n := 0
	for _, on := range []bool{a.RSIOverbought, a.RSIOversold, a.MACDCrossUp, a.MACDCrossDown, a.StochOverbought, a.StochOversold} {
		if on {
			n++
		}
	}
	return n
}

// RSIExtreme reports whether either RSI alert fired.
func (a OscillatorAlerts) RSIExtreme() bool { return a.RSIOverbought || a.RSIOversold }

type OrderbookAnomaly struct {
	BigBid   float64 `json:"big_bid"`
	BigAsk   float64 `json:"big_ask"`
	Spoofing bool    `json:"spoofing"`
	Spread   float64 `json:"spread"`
}

// Sentiment scalars from the external feed. Zero values mean "no data".
type Sentiment struct {
	News             float64 `json:"news_sentiment"`
	Social           float64 `json:"social_sentiment"`
	Onchain          float64 `json:"onchain_sentiment"`
	GoogleTrend      float64 `json:"google_trend"`
	WhaleSentiment   float64 `json:"whale_sentiment"`
	SpotFuturesRatio float64 `json:"spot_futures_ratio"`
	Anomaly          float64 `json:"sentiment_anomaly"`
	FakeNews         bool    `json:"fake_news"`
}

// TimeFeatures are the latest-bar summary values.
type TimeFeatures struct {
	ATR        float64 `json:"atr"`
	Volatility float64 `json:"volatility"`
	Momentum   float64 `json:"momentum"`
	SpreadLast float64 `json:"spread_last"`
	// MomentumScore is momentum / (2*ATR) clamped to [-1, 1].
	MomentumScore float64 `json:"momentum_score"`
}

// TimeframeView is an oscillator snapshot on a secondary timeframe.
type TimeframeView struct {
	Interval   Interval `json:"interval"`
	RSI        float64  `json:"rsi"`
	MACD       float64  `json:"macd"`
	MACDSignal float64  `json:"macd_signal"`
	EMA9       float64  `json:"ema_9"`
	EMA21      float64  `json:"ema_21"`
}

// FeatureBundle is the per-instrument, per-cycle input shared by every
// agent. It is read-only once built; agents must not modify it.
type FeatureBundle struct {
	Symbol    string    `json:"symbol"`
	Interval  Interval  `json:"interval"`
	Timestamp time.Time `json:"timestamp"`

	Candles    []Candle   `json:"candles"`
	Indicators Indicators `json:"indicators"`
	// RSISeries, MACDSeries and MACDSignalSeries align with Candles.
	RSISeries        []float64 `json:"-"`
	MACDSeries       []float64 `json:"-"`
	MACDSignalSeries []float64 `json:"-"`

	Patterns         Patterns         `json:"patterns"`
	Alerts           OscillatorAlerts `json:"oscillator_alerts"`
	OrderBook        OrderBook        `json:"orderbook"`
	OrderbookAnomaly OrderbookAnomaly `json:"orderbook_anomaly"`
	VolumeAnomaly    float64          `json:"volume_anomaly"`

	Whales       []WhaleEvent    `json:"whale_events"`
	Funding      []FundingRate   `json:"funding_rates"`
	OpenInterest []OpenInterest  `json:"oi_changes"`
	Sentiment    Sentiment       `json:"sentiment"`
	Time         TimeFeatures    `json:"time_features"`
	Timeframes   []TimeframeView `json:"timeframes"`

	// Computed before fan-out.
	DumpPumpFlag bool `json:"dump_pump_flag"`
	Anomaly      bool `json:"anomaly"`
}

func (b *FeatureBundle) Closes() []float64 {
	out := make([]float64, len(b.Candles))
	for i, c := range b.Candles {
		out[i] = c.Close
	}
	return out
}

func (b *FeatureBundle) Volumes() []float64 {
	out := make([]float64, len(b.Candles))
	for i, c := range b.Candles {
		out[i] = c.Volume
	}
	return out
}

func (b *FeatureBundle) LastClose() float64 {
	if len(b.Candles) == 0 {
		return 0
	}
	return b.Candles[len(b.Candles)-1].Close
}

// FundingDelta is the change between the last two funding prints. It is
// zero unless more than two prints are known.
func (b *FeatureBundle) FundingDelta() float64 {
	n := len(b.Funding)
	if n <= 2 {
		return 0
	}
	return b.Funding[n-1].Rate - b.Funding[n-2].Rate
}

// OIChange is the percent change between the last two open-interest
// samples. It is zero unless more than two samples are known.
func (b *FeatureBundle) OIChange() float64 {
	n := len(b.OpenInterest)
	if n <= 2 || b.OpenInterest[n-2].Value == 0 {
		return 0
	}
	prev := b.OpenInterest[n-2].Value
	return (b.OpenInterest[n-1].Value - prev) / prev * 100
}

// WhaleNetFlow is the signed sum of whale transfer amounts.
func (b *FeatureBundle) WhaleNetFlow() float64 {
	var sum float64
	for _, w := range b.Whales {
		sum += w.Amount
	}
	return sum
}

// Timeframe returns the view for iv if the builder produced one.
func (b *FeatureBundle) Timeframe(iv Interval) (TimeframeView, bool) {
	for _, v := range b.Timeframes {
		if v.Interval == iv {
			return v, true
		}
	}
	return TimeframeView{}, false
}

// PatternKey is the sorted, comma-joined pattern tag set.
func PatternKey(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
