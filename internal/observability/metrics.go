// Package observability provides instrumentation for metrics, tracing, and logging.
package observability

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"asynchttp/internal/httpclient"
)

// Prometheus metrics for outbound client requests
var (
	// RequestsTotal counts outbound requests by scheme, route, method, and status
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asynchttp_requests_total",
			Help: "Total number of outbound HTTP requests",
		},
		[]string{"scheme", "route", "method", "status_code", "status_type"},
	)

	// RequestDuration measures time until response headers arrive
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asynchttp_request_duration_seconds",
			Help:    "Outbound HTTP request duration in seconds, up to response headers",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"scheme", "route", "method"},
	)

	// InFlightRequests tracks requests that hold a lease and await headers
	InFlightRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asynchttp_requests_in_flight",
			Help: "Number of outbound HTTP requests currently awaiting a response",
		},
		[]string{"scheme", "route"},
	)
)

// NewPrometheusHooks returns hooks that instrument client requests with Prometheus metrics.
// Pass them to httpclient.WithHooks.
func NewPrometheusHooks() httpclient.Hooks {
	return httpclient.Hooks{
		OnRequestStart: func(ctx context.Context, info httpclient.RequestInfo) context.Context {
			InFlightRequests.WithLabelValues(info.Scheme, info.Route).Inc()
			return ctx
		},
		OnRequestEnd: func(ctx context.Context, info httpclient.ResponseInfo) {
			InFlightRequests.WithLabelValues(info.Scheme, info.Route).Dec()

			statusType := "success"
			statusCode := strconv.Itoa(info.StatusCode)

			if info.Error != nil {
				statusType = "error"
				if info.StatusCode == 0 {
					statusCode = "network_error"
				}
			} else if info.StatusCode >= 400 {
				statusType = "error"
			}

			RequestsTotal.WithLabelValues(
				info.Scheme,
				info.Route,
				info.Method,
				statusCode,
				statusType,
			).Inc()

			RequestDuration.WithLabelValues(
				info.Scheme,
				info.Route,
				info.Method,
			).Observe(info.Duration.Seconds())
		},
	}
}

// Example query patterns for Prometheus:
//
// Request rate by route:
//   sum(rate(asynchttp_requests_total[5m])) by (route)
//
// Error rate:
//   rate(asynchttp_requests_total{status_type="error"}[5m])
//
// P95 latency by route:
//   histogram_quantile(0.95, sum(rate(asynchttp_request_duration_seconds_bucket[5m])) by (le, route))
//
// Pool saturation:
//   asynchttp_pool_leased / asynchttp_pool_max_total

// PrometheusMetrics provides access to all registered metrics for testing
type PrometheusMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	InFlightRequests *prometheus.GaugeVec
}

// GetMetrics returns the prometheus metrics for testing and introspection
func GetMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		RequestsTotal:    RequestsTotal,
		RequestDuration:  RequestDuration,
		InFlightRequests: InFlightRequests,
	}
}

// ResetMetrics resets all metrics to zero (useful for testing)
func ResetMetrics() {
	RequestsTotal.Reset()
	RequestDuration.Reset()
	InFlightRequests.Reset()
}

// HealthCheck verifies that metrics are being collected
func HealthCheck() error {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	if len(mfs) == 0 {
		return fmt.Errorf("no metrics registered")
	}

	return nil
}
