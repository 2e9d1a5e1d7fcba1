package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// Comparison Layer
	ComparisonsTotal     CounterVec
	ComparisonDuration   HistogramVec
	ComparedTechnologies HistogramVec
	ComparisonExcluded   CounterVec

	// Readiness Layer
	TrackerPollsTotal       CounterVec
	TrackerTransitionsTotal CounterVec
	TrackedTechnologies     GaugeVec
	StatusEventsTotal       CounterVec

	// Infrastructure Layer
	BackendRequestDuration HistogramVec
	SourceLoadsTotal       CounterVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec

	// System Health
	ErrorsTotal CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets    = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultCompareDurationBuckets = []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1}
	DefaultBackendDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultEntityCountBuckets     = []float64{1, 2, 3, 4, 6, 8, 12, 16}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")

	// Comparison
	m.ComparisonsTotal = collector.RegisterCounter("comparisons_total", "Comparisons computed", "metric", "outcome")
	m.ComparisonDuration = collector.RegisterHistogram("comparison_duration_seconds", "Comparison compute duration", DefaultCompareDurationBuckets, "metric")
	m.ComparedTechnologies = collector.RegisterHistogram("compared_technologies", "Technologies per comparison", DefaultEntityCountBuckets, "metric")
	m.ComparisonExcluded = collector.RegisterCounter("comparison_excluded_technologies_total", "Technologies that contributed no data to a comparison", "metric")

	// Readiness
	m.TrackerPollsTotal = collector.RegisterCounter("tracker_polls_total", "Backend status polls", "state")
	m.TrackerTransitionsTotal = collector.RegisterCounter("tracker_transitions_total", "Readiness state transitions", "from", "to")
	m.TrackedTechnologies = collector.RegisterGauge("tracked_technologies", "Tracked technologies by readiness state", "state")
	m.StatusEventsTotal = collector.RegisterCounter("status_events_total", "Readiness events consumed from the message queue", "result")

	// Infrastructure
	m.BackendRequestDuration = collector.RegisterHistogram("backend_request_duration_seconds", "Analytics backend request duration", DefaultBackendDurationBuckets, "operation", "status_code")
	m.SourceLoadsTotal = collector.RegisterCounter("source_loads_total", "Payload loads by source", "source", "outcome")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")

	// System Health
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")

	return m
}

// NewNopAppMetrics returns metrics that record nothing.
func NewNopAppMetrics() *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal:       noopCounterVec{},
		HTTPRequestDuration:     noopHistogramVec{},
		ComparisonsTotal:        noopCounterVec{},
		ComparisonDuration:      noopHistogramVec{},
		ComparedTechnologies:    noopHistogramVec{},
		ComparisonExcluded:      noopCounterVec{},
		TrackerPollsTotal:       noopCounterVec{},
		TrackerTransitionsTotal: noopCounterVec{},
		TrackedTechnologies:     noopGaugeVec{},
		StatusEventsTotal:       noopCounterVec{},
		BackendRequestDuration:  noopHistogramVec{},
		SourceLoadsTotal:        noopCounterVec{},
		CacheHitsTotal:          noopCounterVec{},
		CacheMissesTotal:        noopCounterVec{},
		ErrorsTotal:             noopCounterVec{},
	}
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordComparison counts one comparison.  outcome is "ok", "cached",
// "insufficient" or "error".
func RecordComparison(metrics *AppMetrics, metric, outcome string, entities int, duration time.Duration) {
	metrics.ComparisonsTotal.WithLabelValues(metric, outcome).Inc()
	metrics.ComparisonDuration.WithLabelValues(metric).Observe(duration.Seconds())
	metrics.ComparedTechnologies.WithLabelValues(metric).Observe(float64(entities))
}

func RecordTransition(metrics *AppMetrics, from, to string) {
	metrics.TrackerTransitionsTotal.WithLabelValues(from, to).Inc()
	if from != to {
		metrics.TrackedTechnologies.WithLabelValues(from).Dec()
		metrics.TrackedTechnologies.WithLabelValues(to).Inc()
	}
}

func RecordBackendRequest(metrics *AppMetrics, operation string, statusCode int, duration time.Duration) {
	metrics.BackendRequestDuration.WithLabelValues(operation, strconv.Itoa(statusCode)).Observe(duration.Seconds())
}

func RecordSourceLoad(metrics *AppMetrics, source string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.SourceLoadsTotal.WithLabelValues(source, outcome).Inc()
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(metrics *AppMetrics, component, code string) {
	metrics.ErrorsTotal.WithLabelValues(component, code).Inc()
}
