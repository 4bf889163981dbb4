package metrics

import (
	"TradeOrdu/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycles         prometheus.Counter
	cycleDuration  prometheus.Histogram
	cycleDecisions prometheus.Gauge
	agentLatency   *prometheus.HistogramVec
	agentFailures  *prometheus.CounterVec
	streamState    *prometheus.GaugeVec
	reconnects     *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "tradeordu_cycles_total",
			Help: "Total number of completed decision cycles",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradeordu_cycle_duration_seconds",
			Help:    "Duration of one decision cycle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		cycleDecisions: f.NewGauge(prometheus.GaugeOpts{
			Name: "tradeordu_cycle_decisions",
			Help: "Decisions produced by the last cycle",
		}),
		agentLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradeordu_agent_duration_seconds",
			Help:    "Duration of one agent analysis",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"agent"}),
		agentFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeordu_agent_failures_total",
			Help: "Agent analyses that failed, by kind",
		}, []string{"agent", "kind"}),
		streamState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradeordu_stream_state",
			Help: "Stream channel state (0 disconnected, 1 connecting, 2 streaming, 3 reconnecting, 4 closed)",
		}, []string{"symbol", "feed"}),
		reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeordu_stream_reconnects_total",
			Help: "Stream channel reconnect attempts",
		}, []string{"symbol", "feed"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeordu_decisions_total",
			Help: "Consensus decisions by class, direction and safety",
		}, []string{"class", "direction", "safe"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeordu_errors_total",
			Help: "Total number of errors encountered",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradeordu_operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordCycle(seconds float64, decisions int) {
	r.cycles.Inc()
	r.cycleDuration.Observe(seconds)
	r.cycleDecisions.Set(float64(decisions))
}

func (r *Recorder) RecordAgentLatency(agent string, seconds float64) {
	r.agentLatency.WithLabelValues(agent).Observe(seconds)
}

func (r *Recorder) RecordAgentFailure(agent, kind string) {
	r.agentFailures.WithLabelValues(agent, kind).Inc()
}

func (r *Recorder) RecordStreamState(symbol string, feed models.FeedKind, state models.StreamState) {
	r.streamState.WithLabelValues(symbol, string(feed)).Set(float64(state))
}

func (r *Recorder) RecordReconnect(symbol string, feed models.FeedKind) {
	r.reconnects.WithLabelValues(symbol, string(feed)).Inc()
}

func (r *Recorder) RecordDecision(class models.StrategyClass, direction models.Direction, safe bool) {
	s := "false"
	if safe {
		s = "true"
	}
	r.decisions.WithLabelValues(string(class), string(direction), s).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordCycle(float64, int) {}
func (Nop) RecordAgentLatency(string, float64) {}
func (Nop) RecordAgentFailure(string, string) {}
func (Nop) RecordStreamState(string, models.FeedKind, models.StreamState) {}
func (Nop) RecordReconnect(string, models.FeedKind) {}
func (Nop) RecordDecision(models.StrategyClass, models.Direction, bool) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
