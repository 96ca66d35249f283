package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeAllowed   = "allowed"
	OutcomeDenied    = "denied"
	OutcomeUnlimited = "unlimited"
	OutcomeError     = "store_error"
	OutcomeTimeout   = "store_timeout"
)

type Metrics struct {
	Checks             *prometheus.CounterVec
	StoreLatency       prometheus.Histogram
	CircuitBreakerOpen prometheus.Gauge
	Resets             prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Checks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_ratelimit_checks_total",
			Help: "Rate limit admission decisions by outcome",
		}, []string{"outcome"}),
		StoreLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatekeeper_ratelimit_store_duration_seconds",
			Help:    "Latency of counter store check-and-increment calls",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
		}),
		CircuitBreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_ratelimit_circuit_breaker_open",
			Help: "Counter store circuit breaker state (0=closed/healthy, 1=open/degraded)",
		}),
		Resets: f.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_ratelimit_resets_total",
			Help: "Administrative counter resets",
		}),
	}
}

func (m *Metrics) IncCheck(outcome string) {
	if m != nil {
		m.Checks.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveStoreLatency(seconds float64) {
	if m != nil {
		m.StoreLatency.Observe(seconds)
	}
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerOpen.Set(1)
		return
	}
	m.CircuitBreakerOpen.Set(0)
}

func (m *Metrics) IncResets() {
	if m != nil {
		m.Resets.Inc()
	}
}
