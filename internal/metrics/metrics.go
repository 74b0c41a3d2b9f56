// Package metrics exposes Prometheus collectors for the service. The
// collectors live on a registry created in main and passed down, mirroring
// how configuration is injected.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	Actions        *prometheus.CounterVec
	ActionFailures *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parcops_actions_total",
			Help: "Accepted lifecycle actions by kind.",
		}, []string{"action"}),
		ActionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parcops_action_failures_total",
			Help: "Rejected lifecycle actions by reason.",
		}, []string{"reason"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parcops_http_request_duration_seconds",
			Help:    "HTTP request latency by method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	registry.MustRegister(m.Actions, m.ActionFailures, m.HTTPDuration)
	return m
}

// Handler returns the /metrics scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
