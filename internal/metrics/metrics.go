// Package metrics exposes Prometheus collectors for the store, the alert
// write queue and alert imports. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nightingale"

// Metrics holds the registered collectors.
type Metrics struct {
	registry *prometheus.Registry

	storeWrites   *prometheus.CounterVec
	storeLatency  prometheus.Histogram
	queueOps      *prometheus.CounterVec
	alertsTotal   *prometheus.CounterVec
	casesImported prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		storeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "writes_total",
			Help:      "Document writes by outcome.",
		}, []string{"outcome"}),
		storeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "write_duration_seconds",
			Help:      "Time spent writing the document.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		queueOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert_queue",
			Name:      "ops_total",
			Help:      "Queued alert writes by outcome.",
		}, []string{"outcome"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "imported_total",
			Help:      "Imported alert rows by result.",
		}, []string{"result"}),
		casesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "skeleton_cases_total",
			Help:      "Cases created to anchor unmatched alerts.",
		}),
	}
	reg.MustRegister(
		m.storeWrites,
		m.storeLatency,
		m.queueOps,
		m.alertsTotal,
		m.casesImported,
		collectors.NewGoCollector(),
	)
	return m
}

// StoreWrite records one document write.
func (m *Metrics) StoreWrite(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.storeWrites.WithLabelValues(outcome).Inc()
	m.storeLatency.Observe(elapsed.Seconds())
}

// QueueOp records one queued alert write.
func (m *Metrics) QueueOp(outcome string) {
	if m == nil {
		return
	}
	m.queueOps.WithLabelValues(outcome).Inc()
}

// AlertsImported records the result of one import.
func (m *Metrics) AlertsImported(added, updated, casesCreated int) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues("added").Add(float64(added))
	m.alertsTotal.WithLabelValues("updated").Add(float64(updated))
	m.casesImported.Add(float64(casesCreated))
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
