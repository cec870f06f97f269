package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics for crawls and
// the API. A nil *PrometheusMetrics is valid and records nothing.
type PrometheusMetrics struct {
	// HTTP request metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Fetch metrics
	pagesFetchedTotal *prometheus.CounterVec
	fetchFailureTotal *prometheus.CounterVec
	fetchRetryTotal   *prometheus.CounterVec
	fetchDuration     *prometheus.HistogramVec
	fetchBytesTotal   *prometheus.CounterVec

	// Extraction metrics
	recordsTotal  *prometheus.CounterVec
	warningsTotal *prometheus.CounterVec

	// Crawl metrics
	crawlsTotal     *prometheus.CounterVec
	crawlsActive    prometheus.Gauge
	visitedPages    prometheus.Gauge
	linksDiscovered prometheus.Counter

	// Registry for all metrics
	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a metrics set on its own registry
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbweaver_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orbweaver_http_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		pagesFetchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbweaver_pages_fetched_total",
				Help: "Total number of pages rendered and extracted",
			},
			[]string{"domain"},
		),

		fetchFailureTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbweaver_fetch_failure_total",
				Help: "Total number of failed page fetches",
			},
			[]string{"domain", "error_type"},
		),

		fetchRetryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbweaver_fetch_retry_total",
				Help: "Total number of fetch retry attempts",
			},
			[]string{"domain"},
		),

		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orbweaver_fetch_duration_seconds",
				Help:    "Duration of page fetches in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"domain"},
		),

		fetchBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbweaver_fetch_bytes_total",
				Help: "Total bytes of rendered markup",
			},
			[]string{"domain"},
		),

		recordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbweaver_records_total",
				Help: "Total extraction records by record type",
			},
			[]string{"type"},
		),

		warningsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbweaver_extraction_warnings_total",
				Help: "Total extraction warnings by kind",
			},
			[]string{"kind"},
		),

		crawlsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orbweaver_crawls_total",
				Help: "Total crawl sessions by outcome",
			},
			[]string{"status"},
		),

		crawlsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "orbweaver_crawls_active",
			Help: "Crawl sessions currently running",
		}),

		visitedPages: factory.NewGauge(prometheus.GaugeOpts{
			Name: "orbweaver_visited_pages",
			Help: "Visited set size of the most recent crawl step",
		}),

		linksDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "orbweaver_links_discovered_total",
			Help: "Total link records collected for traversal",
		}),
	}
}

// RecordHTTPRequest records an API request
func (pm *PrometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	pm.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordFetchSuccess records a rendered page
func (pm *PrometheusMetrics) RecordFetchSuccess(domain string, bytes int64, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.pagesFetchedTotal.WithLabelValues(domain).Inc()
	pm.fetchDuration.WithLabelValues(domain).Observe(duration.Seconds())
	pm.fetchBytesTotal.WithLabelValues(domain).Add(float64(bytes))
}

// RecordFetchFailure records a failed page fetch
func (pm *PrometheusMetrics) RecordFetchFailure(domain, errorType string) {
	if pm == nil {
		return
	}
	pm.fetchFailureTotal.WithLabelValues(domain, errorType).Inc()
}

// RecordFetchRetry records a retry attempt
func (pm *PrometheusMetrics) RecordFetchRetry(domain string) {
	if pm == nil {
		return
	}
	pm.fetchRetryTotal.WithLabelValues(domain).Inc()
}

// RecordRecords adds n extraction records of the given type
func (pm *PrometheusMetrics) RecordRecords(recordType string, n int) {
	if pm == nil || n == 0 {
		return
	}
	pm.recordsTotal.WithLabelValues(recordType).Add(float64(n))
}

// RecordWarning records one extraction warning
func (pm *PrometheusMetrics) RecordWarning(kind string) {
	if pm == nil {
		return
	}
	pm.warningsTotal.WithLabelValues(kind).Inc()
}

// CrawlStarted marks a crawl session as running
func (pm *PrometheusMetrics) CrawlStarted() {
	if pm == nil {
		return
	}
	pm.crawlsActive.Inc()
}

// CrawlFinished records the outcome of a crawl session
func (pm *PrometheusMetrics) CrawlFinished(status string) {
	if pm == nil {
		return
	}
	pm.crawlsActive.Dec()
	pm.crawlsTotal.WithLabelValues(status).Inc()
}

// SetVisited reports the current visited set size
func (pm *PrometheusMetrics) SetVisited(n int) {
	if pm == nil {
		return
	}
	pm.visitedPages.Set(float64(n))
}

// AddLinksDiscovered counts collected link records
func (pm *PrometheusMetrics) AddLinksDiscovered(n int) {
	if pm == nil || n == 0 {
		return
	}
	pm.linksDiscovered.Add(float64(n))
}

// GetRegistry returns the Prometheus registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}
