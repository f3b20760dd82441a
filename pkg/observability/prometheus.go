package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the Prometheus-backed metrics sink. It satisfies the
// command and query bus Metrics interfaces and carries the HTTP-level
// instruments used by the router middleware.
type Metrics struct {
	registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	operationCount    *prometheus.CounterVec

	httpDuration *prometheus.HistogramVec
	httpCount    *prometheus.CounterVec
	httpInFlight prometheus.Gauge
}

// NewMetrics creates a Metrics with its own registry.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of bus operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"metric", "label"}),
		operationCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_total",
			Help:      "Count of bus operations by outcome.",
		}, []string{"metric", "label"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
	}
	registry.MustRegister(
		m.operationDuration,
		m.operationCount,
		m.httpDuration,
		m.httpCount,
		m.httpInFlight,
	)
	return m
}

// Handler exposes the registry for the ops server.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartTimer begins timing one operation.
func (m *Metrics) StartTimer(metric, label string) Timer {
	return &prometheusTimer{
		observer: m.operationDuration.WithLabelValues(metric, label),
		start:    time.Now(),
	}
}

// Increment bumps an operation counter.
func (m *Metrics) Increment(metric, label string) {
	m.operationCount.WithLabelValues(metric, label).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
	m.httpCount.WithLabelValues(method, route, code).Inc()
}

// TrackInFlight bounds a request's lifetime; call the returned func when
// the request completes.
func (m *Metrics) TrackInFlight() func() {
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// Timer times one operation.
type Timer interface {
	Stop()
}

type prometheusTimer struct {
	observer prometheus.Observer
	start    time.Time
}

func (t *prometheusTimer) Stop() {
	t.observer.Observe(time.Since(t.start).Seconds())
}
