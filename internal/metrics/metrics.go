// Package metrics exposes Prometheus collectors for the rewriter service.
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
	fetchPagesTotal            *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	articlesIngestedTotal      prometheus.Counter
	extractionsTotal           *prometheus.CounterVec
	searchHitsTotal            *prometheus.CounterVec
	generationAttemptsTotal    *prometheus.CounterVec
	rewritesTotal              *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewriter_fetch_pages_total",
				Help: "Total number of pages fetched, labeled by site, strategy and status.",
			},
			[]string{"site", "strategy", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewriter_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
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

		articlesIngestedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rewriter_articles_ingested_total",
				Help: "Total number of new articles stored by the listing ingest.",
			},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewriter_extractions_total",
				Help: "Content extractions, labeled by profile and result.",
			},
			[]string{"profile", "result"},
		)

		searchHitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewriter_search_hits_total",
				Help: "Source finder lookups, labeled by the strategy that produced results.",
			},
			[]string{"strategy"},
		)

		generationAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewriter_generation_attempts_total",
				Help: "LLM generation attempts, labeled by provider, model and result.",
			},
			[]string{"provider", "model", "result"},
		)

		rewritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewriter_rewrites_total",
				Help: "Finished rewrites, labeled by terminal outcome.",
			},
			[]string{"outcome"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewriter_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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

// ObserveFetch increments the fetch counters.
func ObserveFetch(site, strategy, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	fetchPagesTotal.WithLabelValues(sanitizedSite, strategy, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// AddIngested records newly stored articles.
func AddIngested(n int) {
	Init()
	if n > 0 {
		articlesIngestedTotal.Add(float64(n))
	}
}

// ObserveExtraction records an extraction result ("ok" or "empty") for a profile.
func ObserveExtraction(profile, result string) {
	Init()
	extractionsTotal.WithLabelValues(profile, result).Inc()
}

// ObserveSearch records which strategy answered a source lookup ("none" if nothing did).
func ObserveSearch(strategy string) {
	Init()
	searchHitsTotal.WithLabelValues(strategy).Inc()
}

// ObserveGeneration records one provider/model attempt.
func ObserveGeneration(provider, model, result string) {
	Init()
	generationAttemptsTotal.WithLabelValues(provider, model, result).Inc()
}

// ObserveRewrite records a terminal rewrite outcome.
func ObserveRewrite(outcome string) {
	Init()
	rewritesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
