// Package metrics exposes Prometheus collectors for the scraper pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal *prometheus.CounterVec
	fetchRetriesTotal  prometheus.Counter
	pagesTotal         *prometheus.CounterVec
	itemsScrapedTotal  *prometheus.CounterVec
	resolveTotal       *prometheus.CounterVec
	rateLimitWaits     prometheus.Histogram

	once sync.Once
)

// Init registers the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthdir_fetch_requests_total",
				Help: "HTTP fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "healthdir_fetch_retries_total",
				Help: "Fetch attempts beyond the first for any URL.",
			},
		)

		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthdir_pages_total",
				Help: "Listing pages handled per scraper, labeled by status.",
			},
			[]string{"scraper", "status"},
		)

		itemsScrapedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthdir_items_scraped_total",
				Help: "New directory items enriched and persisted per scraper.",
			},
			[]string{"scraper"},
		)

		resolveTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthdir_resolve_total",
				Help: "Website resolution outcomes (found, banned, empty, error).",
			},
			[]string{"outcome"},
		)

		rateLimitWaits = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "healthdir_rate_limit_wait_seconds",
				Help:    "Time spent waiting on the per-host rate limiter.",
				Buckets: prometheus.DefBuckets,
			},
		)
	})
}

// ObserveFetch records one fetch attempt with its outcome label.
func ObserveFetch(outcome string) {
	if fetchRequestsTotal != nil {
		fetchRequestsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveRetry counts one retried fetch attempt.
func ObserveRetry() {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.Inc()
	}
}

// ObservePage records one listing page per scraper with a status of
// processed, error or skipped.
func ObservePage(scraper, status string) {
	if pagesTotal != nil {
		pagesTotal.WithLabelValues(scraper, status).Inc()
	}
}

// ObserveItems adds n newly scraped items for the scraper.
func ObserveItems(scraper string, n int) {
	if itemsScrapedTotal != nil && n > 0 {
		itemsScrapedTotal.WithLabelValues(scraper).Add(float64(n))
	}
}

// ObserveResolve records one website-resolution outcome.
func ObserveResolve(outcome string) {
	if resolveTotal != nil {
		resolveTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveRateLimitWait records a delay introduced by the rate limiter.
func ObserveRateLimitWait(d time.Duration) {
	if rateLimitWaits != nil {
		rateLimitWaits.Observe(d.Seconds())
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
