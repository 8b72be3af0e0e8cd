package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the RPC collectors.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpc_calls_total",
			Help: "RPC procedure calls by path and result code.",
		}, []string{"path", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rpc_call_duration_seconds",
			Help:    "RPC procedure latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}
	reg.MustRegister(m.calls, m.duration)
	return m
}

// ObserveCall records one finished procedure call. A nil receiver is a no-op.
func (m *Metrics) ObserveCall(path, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(path, code).Inc()
	m.duration.WithLabelValues(path).Observe(elapsed.Seconds())
}
