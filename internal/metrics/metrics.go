// Package metrics exposes Prometheus collectors for the enrichment worker.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enrichmentInvocationsTotal   *prometheus.CounterVec
	providerRequestsTotal        *prometheus.CounterVec
	providerFetchDurationSeconds *prometheus.HistogramVec
	providerThrottleSeconds      *prometheus.HistogramVec
	fieldsExtracted              *prometheus.HistogramVec
	extractionQualityTotal       *prometheus.CounterVec
	nodesUpdatedTotal            prometheus.Counter
	backendRequestsTotal         *prometheus.CounterVec
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		enrichmentInvocationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichment_invocations_total",
				Help: "Total number of invocations, labeled by terminal outcome.",
			},
			[]string{"outcome"},
		)

		providerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichment_provider_requests_total",
				Help: "Total provider fetch attempts, labeled by provider and result.",
			},
			[]string{"provider", "result"},
		)

		providerFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enrichment_provider_fetch_duration_seconds",
				Help:    "Histogram of provider fetch latencies, labeled by provider.",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 45},
			},
			[]string{"provider"},
		)

		providerThrottleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enrichment_provider_throttle_seconds",
				Help:    "Histogram of delay added by per-host request pacing.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15},
			},
			[]string{"host"},
		)

		fieldsExtracted = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enrichment_fields_extracted",
				Help:    "Histogram of populated field counts per successful extraction.",
				Buckets: []float64{1, 2, 4, 6, 8, 12, 16},
			},
			[]string{"provider"},
		)

		extractionQualityTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichment_extraction_quality_total",
				Help: "Total extractions, labeled by quality grade.",
			},
			[]string{"quality"},
		)

		nodesUpdatedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "enrichment_nodes_updated_total",
				Help: "Total graph nodes updated by enrichment propagation.",
			},
		)

		backendRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichment_backend_requests_total",
				Help: "Total backend API calls, labeled by operation and status code.",
			},
			[]string{"operation", "code"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveInvocation records one terminal outcome.
func ObserveInvocation(outcome string) {
	enrichmentInvocationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveProviderFetch records one provider attempt. Result is one of
// success, failure, or empty.
func ObserveProviderFetch(provider, result string, duration time.Duration) {
	providerRequestsTotal.WithLabelValues(provider, result).Inc()
	providerFetchDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveThrottleDelay records time spent waiting on the per-host pacer.
func ObserveThrottleDelay(host string, delay time.Duration) {
	providerThrottleSeconds.WithLabelValues(host).Observe(delay.Seconds())
}

// ObserveExtraction records the field count and quality of an extraction.
func ObserveExtraction(provider string, fields int, quality string) {
	fieldsExtracted.WithLabelValues(provider).Observe(float64(fields))
	extractionQualityTotal.WithLabelValues(quality).Inc()
}

// AddNodesUpdated accumulates propagated node updates.
func AddNodesUpdated(n int) {
	if n > 0 {
		nodesUpdatedTotal.Add(float64(n))
	}
}

// ObserveBackendRequest increments the backend call counter.
func ObserveBackendRequest(operation string, code int) {
	backendRequestsTotal.WithLabelValues(operation, strconv.Itoa(code)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
