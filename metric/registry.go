package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a private Prometheus registry with all pipeline metrics
// registered. Keeping the registry private avoids collisions when several
// mergers run in one process (tests do this).
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

// NewRegistry creates a registry with pipeline and Go runtime metrics
// registered.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
	}
	r.registerMetrics()

	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the pipeline metrics.
func (r *Registry) CoreMetrics() *Metrics {
	return r.Metrics
}

// Handler returns an HTTP handler serving the registry in Prometheus format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(
		r.prometheusRegistry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
}

func (r *Registry) registerMetrics() {
	r.prometheusRegistry.MustRegister(
		r.Metrics.PortGrants,
		r.Metrics.WordsWritten,
		r.Metrics.FramesOpened,
		r.Metrics.FramesSealed,
		r.Metrics.FramesDropped,
		r.Metrics.FrameWords,
		r.Metrics.Spills,
		r.Metrics.Flushes,
		r.Metrics.Warps,
		r.Metrics.QuantumLevel,
		r.Metrics.Bypasses,
		r.Metrics.EgressWords,
		r.Metrics.EgressStalls,
		r.Metrics.PresenterState,
		r.Metrics.QueueDepth,
	)
}
