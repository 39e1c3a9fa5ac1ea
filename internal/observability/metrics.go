package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeTeamNotFound = "team_not_found"
	OutcomeError        = "error"
)

// Metrics holds the Prometheus collectors exported by the service.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	hierarchies   *prometheus.CounterVec
	buildDuration prometheus.Histogram
	treeSize      prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		hierarchies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hierarchy_requests_total",
			Help: "Hierarchy builds by outcome and whether a team filter was applied.",
		}, []string{"outcome", "filtered"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hierarchy_build_duration_seconds",
			Help:    "Time spent validating, building and filtering a hierarchy.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		treeSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hierarchy_team_count",
			Help:    "Number of teams per built hierarchy.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hierarchy_cache_lookups_total",
			Help: "Render cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.requests, m.requestTime, m.errors, m.hierarchies, m.buildDuration, m.treeSize, m.cacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestTime.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordHierarchy records one hierarchy request outcome.
func (m *Metrics) RecordHierarchy(outcome string, filtered bool, duration time.Duration, teams int) {
	if m == nil {
		return
	}
	m.hierarchies.WithLabelValues(outcome, strconv.FormatBool(filtered)).Inc()
	if outcome == OutcomeSuccess {
		m.buildDuration.Observe(duration.Seconds())
		m.treeSize.Observe(float64(teams))
	}
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
