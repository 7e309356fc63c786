/*
metrics.go - Prometheus instrumentation

PURPOSE:
  Counts the engine's externally meaningful events: rate resolutions by
  source, override outcomes, and preview computations by result, plus a
  latency histogram for the preview hot path. Exposed on /metrics.

SEE ALSO:
  - server.go: Mounts the promhttp handler
  - handlers.go: Emits these metrics
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine's Prometheus collectors. Registered on an
// explicit registerer, not the global default, so tests can use isolated
// registries.
type Metrics struct {
	RateResolutions *prometheus.CounterVec
	OverridesTotal  *prometheus.CounterVec
	PreviewsTotal   *prometheus.CounterVec
	PreviewDuration prometheus.Histogram
}

// NewMetrics creates and registers the collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RateResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_rate_resolutions_total",
			Help: "Rate resolutions by effective source (contract or market).",
		}, []string{"source"}),
		OverridesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_overrides_total",
			Help: "Override attempts by outcome (approved, rejected, direct, error).",
		}, []string{"outcome"}),
		PreviewsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_previews_total",
			Help: "Preview computations by result (ok, shortage, replayed, error).",
		}, []string{"result"}),
		PreviewDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricing_preview_duration_seconds",
			Help:    "Wall time of one preview computation.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) resolution(source string) {
	if m != nil {
		m.RateResolutions.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) override(outcome string) {
	if m != nil {
		m.OverridesTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) preview(result string, seconds float64) {
	if m != nil {
		m.PreviewsTotal.WithLabelValues(result).Inc()
		if seconds >= 0 {
			m.PreviewDuration.Observe(seconds)
		}
	}
}
