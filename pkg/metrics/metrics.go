// Package metrics defines the Prometheus collectors used by the search
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search result types.
const (
	ResultHit      = "hit"
	ResultZero     = "zero_result"
	ResultFallback = "fallback"
	ResultError    = "error"
)

// Search paths.
const (
	PathIndex = "index"
	PathScan  = "scan"
)

// Fallback reasons.
const (
	ReasonTooBroad    = "too_broad"
	ReasonUnsupported = "unsupported"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchCandidates     prometheus.Histogram
	SearchFallbacksTotal *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexLoadsTotal      prometheus.Counter
	IndexLoadDuration    prometheus.Histogram
	IndexTokens          *prometheus.GaugeVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, fallback, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search latency in seconds by path (index, scan).",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10},
			},
			[]string{"path"},
		),
		SearchCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_candidates_count",
				Help:    "Candidate documents selected by the n-gram index per search.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		SearchFallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_fallbacks_total",
				Help: "Searches answered by a full scan, by reason.",
			},
			[]string{"reason"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		IndexLoadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_loads_total",
				Help: "Completed n-gram index loads.",
			},
		),
		IndexLoadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_load_duration_seconds",
				Help:    "Time spent loading the n-gram index.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		IndexTokens: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_tokens",
				Help: "Distinct n-gram tokens per index partition.",
			},
			[]string{"partition"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchCandidates,
		m.SearchFallbacksTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexLoadsTotal,
		m.IndexLoadDuration,
		m.IndexTokens,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveSearch records one finished search. A nil Metrics is a no-op.
func (m *Metrics) ObserveSearch(resultType, path string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	if path != "" {
		m.SearchLatency.WithLabelValues(path).Observe(elapsed.Seconds())
	}
}

// ObserveCandidates records the size of a candidate set.
func (m *Metrics) ObserveCandidates(n uint64) {
	if m == nil {
		return
	}
	m.SearchCandidates.Observe(float64(n))
}

// ObserveFallback counts a full-scan fallback.
func (m *Metrics) ObserveFallback(reason string) {
	if m == nil {
		return
	}
	m.SearchFallbacksTotal.WithLabelValues(reason).Inc()
}

// ObserveIndexLoad records a completed index load.
func (m *Metrics) ObserveIndexLoad(elapsed time.Duration, tokens map[string]int) {
	if m == nil {
		return
	}
	m.IndexLoadsTotal.Inc()
	m.IndexLoadDuration.Observe(elapsed.Seconds())
	for partition, n := range tokens {
		m.IndexTokens.WithLabelValues(partition).Set(float64(n))
	}
}

// Handler serves the collectors gathered by g in the Prometheus text
// format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
