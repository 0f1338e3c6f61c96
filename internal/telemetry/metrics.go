// Package telemetry collects run metrics. The engines call the nil-safe
// observation helpers; a nil *Metrics disables collection entirely.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors for one engine instance.
type Metrics struct {
	registry *prometheus.Registry

	nodeExecutions *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	nodeFailures   *prometheus.CounterVec
	runDuration    prometheus.Histogram
}

// New creates a Metrics backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		nodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fitgrid_node_executions_total",
			Help: "Node executions by operation (fit_transform, transform, load_data).",
		}, []string{"node", "op"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fitgrid_cache_hits_total",
			Help: "Node executions short-circuited by a cached or saved output.",
		}, []string{"node", "source"}),
		nodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fitgrid_node_failures_total",
			Help: "Node executions that ended in an error.",
		}, []string{"node"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fitgrid_run_duration_seconds",
			Help:    "Wall time of whole pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

// Handler serves the collected metrics in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveExecution records one node execution.
func (m *Metrics) ObserveExecution(node, op string) {
	if m == nil {
		return
	}
	m.nodeExecutions.WithLabelValues(node, op).Inc()
}

// ObserveCacheHit records a node short-circuited by a cached output.
func (m *Metrics) ObserveCacheHit(node, source string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(node, source).Inc()
}

// ObserveFailure records a failed node execution.
func (m *Metrics) ObserveFailure(node string) {
	if m == nil {
		return
	}
	m.nodeFailures.WithLabelValues(node).Inc()
}

// ObserveRunDuration records the wall time of one run in seconds.
func (m *Metrics) ObserveRunDuration(seconds float64) {
	if m == nil {
		return
	}
	m.runDuration.Observe(seconds)
}
