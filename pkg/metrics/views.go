package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ViewMetrics records list view fetch outcomes.
type ViewMetrics struct {
	duration *prometheus.HistogramVec
	failure  *prometheus.CounterVec
	stale    *prometheus.CounterVec
}

// NewViewMetrics registers the view metrics on the provided registerer.
func NewViewMetrics(reg prometheus.Registerer) *ViewMetrics {
	if reg == nil {
		return &ViewMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "view_fetch_duration_seconds",
		Help:    "Duration of backend list fetches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"view"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "view_fetch_failures_total",
		Help: "Backend list fetches that failed.",
	}, []string{"view", "code"})
	stale := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "view_fetch_stale_total",
		Help: "Backend list responses discarded because a newer request was issued.",
	}, []string{"view"})
	reg.MustRegister(duration, failure, stale)
	return &ViewMetrics{
		duration: duration,
		failure:  failure,
		stale:    stale,
	}
}

// ObserveFetch records the duration of a fetch for view.
func (m *ViewMetrics) ObserveFetch(view string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(view)).Observe(d.Seconds())
}

// IncFailure counts a failed fetch by error code.
func (m *ViewMetrics) IncFailure(view, code string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(view), normalizeLabel(code)).Inc()
}

// IncStale counts a discarded out-of-order response.
func (m *ViewMetrics) IncStale(view string) {
	if m == nil || m.stale == nil {
		return
	}
	m.stale.WithLabelValues(normalizeLabel(view)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
