// Package obs holds the process observability surface: Prometheus
// collectors for the plugin runtime and a handler to expose them.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the plugin runtime collectors. It is constructed once at
// the composition root against an explicit registry, so tests can build
// their own without collector name collisions.
type Metrics struct {
	Registry *prometheus.Registry

	ScansTotal     prometheus.Counter
	PluginsLoaded  prometheus.Gauge
	PluginsEnabled prometheus.Gauge
	LoadErrors     prometheus.Gauge

	CompileRuns     *prometheus.CounterVec
	CompileDuration prometheus.Histogram
}

// NewMetrics creates and registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ScansTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "quilltap",
			Subsystem: "plugins",
			Name:      "scans_total",
			Help:      "Total plugin discovery scans",
		}),
		PluginsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "quilltap",
			Subsystem: "plugins",
			Name:      "loaded",
			Help:      "Plugins registered after the latest scan",
		}),
		PluginsEnabled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "quilltap",
			Subsystem: "plugins",
			Name:      "enabled",
			Help:      "Registered plugins currently enabled",
		}),
		LoadErrors: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "quilltap",
			Subsystem: "plugins",
			Name:      "load_errors",
			Help:      "Per-plugin load failures from the latest scan",
		}),
		CompileRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quilltap",
			Subsystem: "compiler",
			Name:      "runs_total",
			Help:      "Plugin compile attempts, labeled by outcome",
		}, []string{"outcome"}),
		CompileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quilltap",
			Subsystem: "compiler",
			Name:      "batch_duration_seconds",
			Help:      "Duration of full compile batches",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveScan records the outcome of one discovery scan into the gauges.
func (m *Metrics) ObserveScan(total, enabled, errors int) {
	if m == nil {
		return
	}
	m.ScansTotal.Inc()
	m.PluginsLoaded.Set(float64(total))
	m.PluginsEnabled.Set(float64(enabled))
	m.LoadErrors.Set(float64(errors))
}

// ObserveCompileBatch records a compile batch's per-outcome counts.
func (m *Metrics) ObserveCompileBatch(compiled, cached, failed int) {
	if m == nil {
		return
	}
	m.CompileRuns.WithLabelValues("compiled").Add(float64(compiled))
	m.CompileRuns.WithLabelValues("cached").Add(float64(cached))
	m.CompileRuns.WithLabelValues("failed").Add(float64(failed))
}
