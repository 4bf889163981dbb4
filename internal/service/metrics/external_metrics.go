package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tradeordu",
			Subsystem: "external",
			Name:      "latency_seconds",
			Help:      "Latency of calls to exchange REST and the sentiment feed",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)

	ExternalErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradeordu",
			Subsystem: "external",
			Name:      "errors_total",
			Help:      "Failed calls by service and endpoint",
		},
		[]string{"service", "endpoint"},
	)
)

// Register adds the collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(ExternalLatency, ExternalErrors)
	})
}

// ObserveCall records one outbound call.
func ObserveCall(service, endpoint string, start time.Time, err error) {
	ExternalLatency.WithLabelValues(service, endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		ExternalErrors.WithLabelValues(service, endpoint).Inc()
	}
}
