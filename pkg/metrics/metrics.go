// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping. All recording methods are
// safe on a nil *Metrics so library code can run without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RailBuildsTotal      *prometheus.CounterVec
	RailBuildDuration    *prometheus.HistogramVec
	RailLoadsTotal       *prometheus.CounterVec
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	AnomaliesTotal       *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
	IndexGeneration      prometheus.Gauge
	GenerationEvents     *prometheus.CounterVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
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
		RailBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rail_builds_total",
				Help: "Rail file builds by field and status (ok, error, timeout).",
			},
			[]string{"field", "status"},
		),
		RailBuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rail_build_duration_seconds",
				Help:    "Time spent writing a rail file.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"field"},
		),
		RailLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rail_loads_total",
				Help: "Rail store loads by field and result (mapped, rebuilt, shared).",
			},
			[]string{"field", "result"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexicon_queries_total",
				Help: "Queries by kind (terms, cooc, graph, expressions) and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lexicon_query_duration_seconds",
				Help:    "Query latency in seconds by kind.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		AnomaliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "data_consistency_anomalies_total",
				Help: "Index entries skipped because they contradicted their own statistics.",
			},
			[]string{"field"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		IndexGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_generation",
				Help: "Generation of the text index currently served.",
			},
		),
		GenerationEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generation_events_total",
				Help: "Generation announcements consumed, by outcome (loaded, ignored, rejected, failed).",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RailBuildsTotal,
		m.RailBuildDuration,
		m.RailLoadsTotal,
		m.QueriesTotal,
		m.QueryLatency,
		m.AnomaliesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
		m.IndexGeneration,
		m.GenerationEvents,
	)

	return m
}

func (m *Metrics) RailBuild(field, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RailBuildsTotal.WithLabelValues(field, status).Inc()
	if status == "ok" {
		m.RailBuildDuration.WithLabelValues(field).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) RailLoad(field, result string) {
	if m == nil {
		return
	}
	m.RailLoadsTotal.WithLabelValues(field, result).Inc()
}

func (m *Metrics) Query(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(kind, outcome).Inc()
	m.QueryLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) Anomalies(field string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.AnomaliesTotal.WithLabelValues(field).Add(float64(n))
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) BreakerState(name string, state int) {
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	}
}

func (m *Metrics) Generation(generation int64) {
	if m != nil {
		m.IndexGeneration.Set(float64(generation))
	}
}

func (m *Metrics) GenerationEvent(outcome string) {
	if m != nil {
		m.GenerationEvents.WithLabelValues(outcome).Inc()
	}
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
