// Package metrics exposes the service's Prometheus collectors on a private
// registry. Request metrics are recorded by the Prometheus middleware unit;
// failures reach ErrorsTotal through CountingSink.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen11/cascade/internal/domain"
	"github.com/jsamuelsen11/cascade/internal/ports"
)

// DurationBuckets covers 5ms to 30s; streamed proxy replies sit at the top.
var DurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics holds the collectors and the registry they live on.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts finished requests by method and status class.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes request latency in seconds by method.
	RequestDuration *prometheus.HistogramVec

	// InFlight is the number of requests currently inside the chain.
	InFlight prometheus.Gauge

	// ErrorsTotal counts reported failures by status class.
	ErrorsTotal *prometheus.CounterVec
}

// New registers the collectors under namespace, along with the Go runtime
// and process collectors.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Requests served, by method and status class.",
			},
			[]string{"method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Time spent in the middleware chain.",
				Buckets:   DurationBuckets,
			},
			[]string{"method"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Requests currently being served.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Failures reported to the error sink, by status class.",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.InFlight,
		m.ErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry:          m.registry,
		EnableOpenMetrics: true,
	})
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, StatusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// StatusClass renders status as "2xx", "4xx" and so on.
func StatusClass(status int) string {
	if status < 100 || status > 999 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// Compile-time interface check.
var _ ports.ErrorSink = (*CountingSink)(nil)

// CountingSink counts every error before forwarding it to Next. A nil Next
// only counts.
type CountingSink struct {
	Next    ports.ErrorSink
	metrics *Metrics
}

// CountingSink wraps next so failures are counted in ErrorsTotal.
func (m *Metrics) CountingSink(next ports.ErrorSink) *CountingSink {
	return &CountingSink{Next: next, metrics: m}
}

// HandleError implements ports.ErrorSink.
func (s *CountingSink) HandleError(ctx context.Context, err error) {
	if err != nil {
		s.metrics.ErrorsTotal.WithLabelValues(StatusClass(domain.StatusOf(err))).Inc()
	}
	if s.Next != nil {
		s.Next.HandleError(ctx, err)
	}
}
