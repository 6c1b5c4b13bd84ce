package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API,
// including counters specific to the public share-link flow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	shareDownloads       prometheus.Counter
	sharePreviewsTotal   prometheus.Counter
	sharePasswordFailed  prometheus.Counter
	shareRateLimitedHits prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	shareDownloads := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "share_downloads_total",
		Help: "Total successful public share downloads",
	})

	sharePreviews := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "share_previews_total",
		Help: "Total successful public share previews",
	})

	sharePasswordFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "share_password_failures_total",
		Help: "Total failed share password verifications",
	})

	shareRateLimited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "share_rate_limited_total",
		Help: "Total share password attempts rejected by the throttle",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, shareDownloads, sharePreviews, sharePasswordFailed, shareRateLimited, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:             registry,
		handler:              handler,
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		shareDownloads:       shareDownloads,
		sharePreviewsTotal:   sharePreviews,
		sharePasswordFailed:  sharePasswordFailed,
		shareRateLimitedHits: shareRateLimited,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordShareDownload counts a successful public download.
func (m *MetricsService) RecordShareDownload() {
	if m == nil {
		return
	}
	m.shareDownloads.Inc()
}

// RecordSharePreview counts a successful public preview.
func (m *MetricsService) RecordSharePreview() {
	if m == nil {
		return
	}
	m.sharePreviewsTotal.Inc()
}

// RecordSharePasswordFailure counts a failed password verification.
func (m *MetricsService) RecordSharePasswordFailure() {
	if m == nil {
		return
	}
	m.sharePasswordFailed.Inc()
}

// RecordShareRateLimited counts a throttled password attempt.
func (m *MetricsService) RecordShareRateLimited() {
	if m == nil {
		return
	}
	m.shareRateLimitedHits.Inc()
}
