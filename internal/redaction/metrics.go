package redaction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DetectionCalls    *prometheus.CounterVec
	DetectionFailures *prometheus.CounterVec
	DetectionLatency  prometheus.Histogram
	EntitiesRedacted  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DetectionCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_redaction_detection_calls_total",
			Help: "Calls made to the PII detector by language",
		}, []string{"language"}),
		DetectionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_redaction_detection_failures_total",
			Help: "Detector calls that failed or timed out",
		}, []string{"detector"}),
		DetectionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatekeeper_redaction_detection_duration_seconds",
			Help:    "PII detector latency",
			Buckets: prometheus.DefBuckets,
		}),
		EntitiesRedacted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_redaction_entities_total",
			Help: "Masked spans by entity type",
		}, []string{"entity_type"}),
	}
}

func (m *Metrics) observeCall(lang Language, seconds float64) {
	if m == nil {
		return
	}
	m.DetectionCalls.WithLabelValues(string(lang)).Inc()
	m.DetectionLatency.Observe(seconds)
}

func (m *Metrics) incFailure(detector string) {
	if m != nil {
		m.DetectionFailures.WithLabelValues(detector).Inc()
	}
}

func (m *Metrics) addEntities(spans []Span) {
	if m == nil {
		return
	}
	for _, s := range spans {
		m.EntitiesRedacted.WithLabelValues(string(s.EntityType)).Inc()
	}
}
