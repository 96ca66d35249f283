package gatekeeper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Executions    *prometheus.CounterVec
	Duration      prometheus.Histogram
	AuditFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Executions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_executions_total",
			Help: "Governed executions by terminal state and rejection reason",
		}, []string{"state", "reason"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatekeeper_execution_duration_seconds",
			Help:    "Wall time of one governed execution including the handler",
			Buckets: prometheus.DefBuckets,
		}),
		AuditFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_audit_failures_total",
			Help: "Executions that completed without a persisted audit record",
		}),
	}
}

func (m *Metrics) observe(out *Outcome, seconds float64) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(out.State.String(), string(out.Reason)).Inc()
	m.Duration.Observe(seconds)
}

func (m *Metrics) incAuditFailure() {
	if m != nil {
		m.AuditFailures.Inc()
	}
}
