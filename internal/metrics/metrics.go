// Package metrics exposes the registry's Prometheus instruments.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "apiregistry"

// Metrics holds every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Operations      *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	StatusResults   *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	Entries         prometheus.Gauge
	IndexedEntries  prometheus.Gauge
	SweepDuration   *prometheus.HistogramVec
	HTTPRequests    *prometheus.CounterVec
	HTTPLatency     *prometheus.HistogramVec
	ExpansionFailed prometheus.Counter
}

// New registers the instruments on a private registry, together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_operations_total",
			Help:      "Lifecycle operations by name and outcome kind",
		}, []string{"op", "outcome"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent downloading or probing source documents",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		StatusResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "web_status_results_total",
			Help:      "Web status values written by refresh and uptime checks",
		}, []string{"op", "status"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Registration notifications by outcome",
		}, []string{"outcome"}),
		Entries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Registered entries seen by the last sweep",
		}),
		IndexedEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_entries",
			Help:      "Entries with relation documents in the search index",
		}),
		SweepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of background sweeps",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"sweep"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ExpansionFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansion_failures_total",
			Help:      "Relation queries rejected because a term could not be expanded",
		}),
	}
}

// Handler serves the private registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Operation(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveFetch(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) Status(op, status string) {
	if m == nil {
		return
	}
	m.StatusResults.WithLabelValues(op, status).Inc()
}

func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetEntries(n int) {
	if m == nil {
		return
	}
	m.Entries.Set(float64(n))
}

func (m *Metrics) SetIndexedEntries(n int) {
	if m == nil {
		return
	}
	m.IndexedEntries.Set(float64(n))
}

func (m *Metrics) ObserveSweep(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ExpansionFailure() {
	if m == nil {
		return
	}
	m.ExpansionFailed.Inc()
}
