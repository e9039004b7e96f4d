// Package metrics exposes Prometheus collectors for the density monitor.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Eviction reasons used as the "reason" label.
const (
	ReasonWindow   = "window"
	ReasonCapacity = "capacity"
)

// Metrics holds the monitor's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	eventsIngested     prometheus.Counter
	eventsEvicted      *prometheus.CounterVec
	evaluations        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	bufferSize         prometheus.Gauge
	maxDensity         *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// eventsIngested counts events appended to the live buffer.
		eventsIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "riskmap_events_ingested_total",
			Help: "Total number of events appended to the live buffer",
		}),

		// eventsEvicted counts events removed from the live buffer.
		eventsEvicted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskmap_events_evicted_total",
			Help: "Total number of events removed from the live buffer",
		}, []string{"reason"}),

		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskmap_evaluations_total",
			Help: "Total number of density grid evaluations",
		}, []string{"mode"}),

		evaluationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskmap_evaluation_duration_seconds",
			Help:    "Density grid evaluation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"mode"}),

		bufferSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskmap_buffer_events",
			Help: "Current number of events held in the live buffer",
		}),

		maxDensity: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskmap_max_density",
			Help: "Maximum density of the most recent evaluation",
		}, []string{"mode"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordIngested adds n to the ingested counter.
func (m *Metrics) RecordIngested(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsIngested.Add(float64(n))
}

// RecordEvicted adds n to the evicted counter for reason.
func (m *Metrics) RecordEvicted(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsEvicted.WithLabelValues(reason).Add(float64(n))
}

// RecordEvaluation records one evaluation in mode that took d and peaked at
// maxDensity.
func (m *Metrics) RecordEvaluation(mode string, d time.Duration, maxDensity float64) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(mode).Inc()
	m.evaluationDuration.WithLabelValues(mode).Observe(d.Seconds())
	m.maxDensity.WithLabelValues(mode).Set(maxDensity)
}

// SetBufferSize sets the buffer size gauge.
func (m *Metrics) SetBufferSize(n int) {
	if m == nil {
		return
	}
	m.bufferSize.Set(float64(n))
}
