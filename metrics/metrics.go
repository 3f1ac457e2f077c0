// Package metrics holds the Prometheus collectors for Lucid: HTTP traffic on
// the web surface and backend invocations made by the wrapper.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus metrics on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec
	RateLimitHits   *prometheus.CounterVec

	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec
	MessagesSent       *prometheus.HistogramVec
	CompletionTokens   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lucid_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lucid_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lucid_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lucid_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lucid_rate_limit_hits_total",
				Help: "Total number of rate limit hits by client",
			},
			[]string{"client"},
		),
		InvocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lucid_backend_invocations_total",
				Help: "Backend invocations by resolved backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		InvocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lucid_backend_invocation_duration_seconds",
				Help:    "Duration of backend invocations in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"backend"},
		),
		MessagesSent: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lucid_messages_sent",
				Help:    "Number of messages transmitted per invocation",
				Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16, 32},
			},
			[]string{"backend"},
		),
		CompletionTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lucid_completion_tokens_total",
				Help: "Completion tokens reported through log-probabilities",
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m.RequestsTotal.WithLabelValues("/health", "200").Add(0)
	m.RequestsTotal.WithLabelValues("/metrics", "200").Add(0)

	return m
}

// ObserveInvocation records one backend call.
func (m *Metrics) ObserveInvocation(backend, outcome string, seconds float64, messages int, tokens *int) {
	m.InvocationsTotal.WithLabelValues(backend, outcome).Inc()
	m.InvocationDuration.WithLabelValues(backend).Observe(seconds)
	m.MessagesSent.WithLabelValues(backend).Observe(float64(messages))
	if tokens != nil {
		m.CompletionTokens.WithLabelValues(backend).Add(float64(*tokens))
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}
