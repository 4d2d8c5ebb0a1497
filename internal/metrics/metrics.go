// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchTotal                 *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	fetchBytesTotal            *prometheus.CounterVec
	cacheLookupsTotal          *prometheus.CounterVec
	traversalPagesTotal        *prometheus.CounterVec
	admissionDepth             prometheus.Gauge
	jobsTotal                  *prometheus.CounterVec
	reportEntries              prometheus.Histogram
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	robotsFallbackTotal        prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hansard_fetch_total",
				Help: "Fetch attempts against the archive, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hansard_fetch_duration_seconds",
				Help:    "Histogram of archive fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hansard_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hansard_cache_lookups_total",
				Help: "Document cache lookups, labeled by result (hit, miss, error).",
			},
			[]string{"result"},
		)

		traversalPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hansard_traversal_pages_total",
				Help: "Pages visited by traversal strategies, labeled by strategy.",
			},
			[]string{"strategy"},
		)

		admissionDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hansard_admission_queue_depth",
				Help: "Last observed length of the admission queue.",
			},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hansard_jobs_total",
				Help: "Total number of jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		reportEntries = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hansard_report_entries",
				Help:    "Number of entries per delivered report.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hansard_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hansard_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		robotsFallbackTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hansard_robots_fallback_total",
				Help: "robots.txt probes that timed out and fell back to allow-all.",
			},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch attempt.
func ObserveFetch(rawURL, outcome string, bytesFetched int, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	fetchTotal.WithLabelValues(site, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveCacheLookup counts a document cache lookup.
func ObserveCacheLookup(result string) {
	Init()
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveTraversalPage counts a page visited by a strategy.
func ObserveTraversalPage(strategy string) {
	Init()
	traversalPagesTotal.WithLabelValues(strategy).Inc()
}

// SetAdmissionDepth records the admission queue length.
func SetAdmissionDepth(n int) {
	Init()
	admissionDepth.Set(float64(n))
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
}

// ObserveReport records the size of a delivered report.
func ObserveReport(entries int) {
	Init()
	reportEntries.Observe(float64(entries))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveRobotsFallback counts a robots.txt probe that fell back to allow-all.
func ObserveRobotsFallback() {
	Init()
	robotsFallbackTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
