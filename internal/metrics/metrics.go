// Package metrics exposes Prometheus collectors for the range crawler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IDsTotal counts processed ids, labeled by outcome (appended, skipped).
	IDsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rangecrawler_ids_total",
		Help: "Total number of ids processed, labeled by outcome.",
	}, []string{"outcome"})
	// TitlesMissingTotal counts appended records whose page lacked the expected structure.
	TitlesMissingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rangecrawler_titles_missing_total",
		Help: "Total number of records appended without a title.",
	})
	// FetchRetriesTotal counts transient fetch failures that were retried.
	FetchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rangecrawler_fetch_retries_total",
		Help: "Total number of fetch attempts retried after a transient failure.",
	})
	// FetchFailuresTotal counts fetches that ended a worker, labeled by reason.
	FetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rangecrawler_fetch_failures_total",
		Help: "Total number of fetches that failed without recovery, labeled by reason.",
	}, []string{"reason"})
	// FetchDurationSeconds observes successful fetch latency.
	FetchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rangecrawler_fetch_duration_seconds",
		Help:    "Histogram of successful fetch latencies.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
	// SideEffectFailuresTotal counts archive/publish failures, labeled by sink.
	SideEffectFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rangecrawler_side_effect_failures_total",
		Help: "Total number of non-fatal archive or publish failures.",
	}, []string{"sink"})
	// ActiveWorkers tracks workers currently iterating a partition.
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rangecrawler_active_workers",
		Help: "Number of workers currently processing a partition.",
	})
	// RateLimitDelaySeconds observes time spent waiting on the request limiter.
	RateLimitDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rangecrawler_rate_limit_delay_seconds",
		Help:    "Histogram of rate limit wait durations.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
	// HTTPRequestsTotal counts requests served by the ops endpoint.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rangecrawler_http_requests_total",
		Help: "Total number of HTTP requests served, labeled by method, route and status.",
	}, []string{"method", "route", "status"})
	// HTTPRequestDurationSeconds observes ops endpoint latency.
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rangecrawler_http_request_duration_seconds",
		Help:    "Histogram of HTTP request latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Outcome labels for IDsTotal.
const (
	OutcomeAppended = "appended"
	OutcomeSkipped  = "skipped"
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAppended records a durable append; titled is false for null-title records.
func ObserveAppended(titled bool) {
	IDsTotal.WithLabelValues(OutcomeAppended).Inc()
	if !titled {
		TitlesMissingTotal.Inc()
	}
}

// ObserveSkipped records an id skipped because it was already known.
func ObserveSkipped() {
	IDsTotal.WithLabelValues(OutcomeSkipped).Inc()
}

// ObserveFetch records the latency of a successful fetch.
func ObserveFetch(d time.Duration) {
	FetchDurationSeconds.Observe(d.Seconds())
}

// ObserveFetchRetry increments the retry counter.
func ObserveFetchRetry() {
	FetchRetriesTotal.Inc()
}

// ObserveFetchFailure increments the unrecovered fetch failure counter.
func ObserveFetchFailure(reason string) {
	FetchFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveSideEffectFailure increments the archive/publish failure counter.
func ObserveSideEffectFailure(sink string) {
	SideEffectFailuresTotal.WithLabelValues(sink).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	ActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	ActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(d time.Duration) {
	RateLimitDelaySeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}
