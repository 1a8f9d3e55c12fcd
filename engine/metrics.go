package engine

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsSet is one engine instance's Prometheus counters, registered on a
// private registry rather than the global default: engine.Open may run
// more than once in the same process (tests, multi-instance hosting), and
// the global registry panics on a second MustRegister of the same name.
//
// Grounded on _examples/cuemby-warren/pkg/metrics/metrics.go's counter/
// histogram vocabulary (operation counters plus a duration histogram),
// narrowed to the three CRUD operations this engine exposes and scoped
// per-instance instead of process-global.
type metricsSet struct {
	registry *prometheus.Registry

	opsTotal     *prometheus.CounterVec
	opErrorTotal *prometheus.CounterVec
	opDuration   *prometheus.HistogramVec
}

func newMetricsSet(instanceID string) *metricsSet {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"instance": instanceID}

	m := &metricsSet{
		registry: registry,
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "simpledb_engine_operations_total",
			Help:        "Total number of Put/Get/Delete calls by operation.",
			ConstLabels: labels,
		}, []string{"op"}),
		opErrorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "simpledb_engine_operation_errors_total",
			Help:        "Total number of Put/Get/Delete calls that returned an error, by operation.",
			ConstLabels: labels,
		}, []string{"op"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "simpledb_engine_operation_duration_seconds",
			Help:        "Time taken to complete a Put/Get/Delete call, by operation.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"op"}),
	}

	registry.MustRegister(m.opsTotal, m.opErrorTotal, m.opDuration)
	return m
}

func (m *metricsSet) observe(op string, timer *prometheus.Timer, err error) {
	m.opsTotal.WithLabelValues(op).Inc()
	if err != nil {
		m.opErrorTotal.WithLabelValues(op).Inc()
	}
	timer.ObserveDuration()
}

// MetricsHandler returns the Prometheus scrape endpoint for this engine instance's
// metrics registry.
func (db *DB) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(db.metrics.registry, promhttp.HandlerOpts{})
}
