// Package metrics exposes Prometheus collectors for the crawl service.
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
	crawlJobsTotal             *prometheus.CounterVec
	crawlCategoriesTotal       prometheus.Counter
	crawlProductsTotal         *prometheus.CounterVec
	crawlImagesTotal           prometheus.Counter
	crawlBarcodesTotal         prometheus.Counter
	crawlErrorsTotal           prometheus.Counter
	ocrQueueDepth              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		crawlJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_jobs_total",
				Help: "Total number of crawl jobs, labeled by final status.",
			},
			[]string{"status"},
		)

		crawlCategoriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_categories_total",
				Help: "Total number of categories processed.",
			},
		)

		crawlProductsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_products_total",
				Help: "Total number of products extracted, labeled by site.",
			},
			[]string{"site"},
		)

		crawlImagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_images_total",
				Help: "Total number of product images processed.",
			},
		)

		crawlBarcodesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_barcodes_total",
				Help: "Total number of barcodes found across decode and OCR recovery.",
			},
		)

		crawlErrorsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_errors_total",
				Help: "Total number of contained per-item crawl failures.",
			},
		)

		ocrQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ocr_queue_depth",
				Help: "Number of recognitions waiting in the shared OCR pool.",
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

// SanitizeSite extracts a lowercase hostname from a URL, or "unknown".
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

// Handler returns an http.Handler exposing the Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJobFinished increments the job counter for the given final status.
func ObserveJobFinished(status string) {
	if crawlJobsTotal == nil {
		return
	}
	crawlJobsTotal.WithLabelValues(status).Inc()
}

// ObserveCategory counts one processed category.
func ObserveCategory() {
	if crawlCategoriesTotal == nil {
		return
	}
	crawlCategoriesTotal.Inc()
}

// ObserveProduct counts one extracted product for the given site.
func ObserveProduct(site string) {
	if crawlProductsTotal == nil {
		return
	}
	crawlProductsTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveImages counts processed product images.
func ObserveImages(n int) {
	if crawlImagesTotal == nil || n <= 0 {
		return
	}
	crawlImagesTotal.Add(float64(n))
}

// ObserveBarcodes counts found barcodes.
func ObserveBarcodes(n int) {
	if crawlBarcodesTotal == nil || n <= 0 {
		return
	}
	crawlBarcodesTotal.Add(float64(n))
}

// ObserveError counts one contained crawl failure.
func ObserveError() {
	if crawlErrorsTotal == nil {
		return
	}
	crawlErrorsTotal.Inc()
}

// SetOCRQueueDepth records the current OCR pool queue length.
func SetOCRQueueDepth(depth int) {
	if ocrQueueDepth == nil {
		return
	}
	ocrQueueDepth.Set(float64(depth))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
