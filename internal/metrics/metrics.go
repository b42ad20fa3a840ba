// Package metrics exposes Prometheus collectors for the shortener.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/serroba/turl/internal/shortener"
)

const namespace = "turl"

// Metrics holds every collector and satisfies shortener.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	allocations *prometheus.CounterVec
	collisions  *prometheus.CounterVec
	clicks      prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge
}

// New registers all collectors, plus Go runtime and process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		allocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocations_total",
			Help:      "Key allocations partitioned by kind and outcome",
		}, []string{"kind", "outcome"}),
		collisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocation_collisions_total",
			Help:      "Candidate keys found taken, by detection point",
		}, []string{"source"}),
		clicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Recorded clicks",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		}),
	}
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Collision(source shortener.CollisionSource) {
	m.collisions.WithLabelValues(string(source)).Inc()
}

func (m *Metrics) Allocation(custom bool, err error) {
	kind := "generated"
	if custom {
		kind = "custom"
	}

	m.allocations.WithLabelValues(kind, outcome(err)).Inc()
}

func (m *Metrics) Click() {
	m.clicks.Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shortener.ErrConflict):
		return "conflict"
	case errors.Is(err, shortener.ErrAllocationExhausted):
		return "exhausted"
	default:
		return "error"
	}
}
