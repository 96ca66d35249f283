package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit recording.
type Metrics struct {
	Recorded        prometheus.Counter
	WriteFailures   *prometheus.CounterVec
	PersistDuration prometheus.Histogram
	BufferDepth     prometheus.Gauge
	MirrorFailures  prometheus.Counter
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recorded: f.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_audit_records_total",
			Help: "Total number of audit records persisted",
		}),
		WriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_audit_write_failures_total",
			Help: "Audit records that could not be persisted, by cause",
		}, []string{"cause"}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatekeeper_audit_persist_duration_seconds",
			Help:    "Time spent appending one audit record",
			Buckets: prometheus.DefBuckets,
		}),
		BufferDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_audit_buffer_depth",
			Help: "Records waiting in the async audit buffer",
		}),
		MirrorFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_audit_mirror_failures_total",
			Help: "Audit records the primary store accepted but a mirror rejected",
		}),
	}
}

func (m *Metrics) incRecorded() {
	if m != nil {
		m.Recorded.Inc()
	}
}

func (m *Metrics) incWriteFailure(cause string) {
	if m != nil {
		m.WriteFailures.WithLabelValues(cause).Inc()
	}
}

func (m *Metrics) observePersist(seconds float64) {
	if m != nil {
		m.PersistDuration.Observe(seconds)
	}
}

func (m *Metrics) setBufferDepth(n int) {
	if m != nil {
		m.BufferDepth.Set(float64(n))
	}
}

func (m *Metrics) incMirrorFailure() {
	if m != nil {
		m.MirrorFailures.Inc()
	}
}
