package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	allocated *prometheus.CounterVec
	failures  *prometheus.CounterVec
	leadTime  *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		allocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postsched",
			Name:      "slots_allocated_total",
			Help:      "Slots reserved, by tier (explicit for caller-supplied dates).",
		}, []string{"tier"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postsched",
			Name:      "schedule_failures_total",
			Help:      "Scheduling requests that failed, by reason.",
		}, []string{"reason"}),
		leadTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "postsched",
			Name:      "schedule_lead_seconds",
			Help:      "Seconds between the request and the reserved slot.",
			Buckets:   []float64{3600, 6 * 3600, 24 * 3600, 3 * 24 * 3600, 7 * 24 * 3600, 14 * 24 * 3600},
		}, []string{"tier"}),
	}
	reg.MustRegister(m.allocated, m.failures, m.leadTime)
	return m
}

func (m *Metrics) ObserveAllocation(tier string, seconds int64) {
	if m == nil {
		return
	}
	m.allocated.WithLabelValues(tier).Inc()
	m.leadTime.WithLabelValues(tier).Observe(float64(seconds))
}

func (m *Metrics) ObserveFailure(reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(reason).Inc()
}

// Handler exposes the metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
