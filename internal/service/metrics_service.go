package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// clearance workflow itself.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	requestsOpened  prometheus.Counter
	caseTransitions *prometheus.CounterVec
	staleConflicts  prometheus.Counter
	certsRendered   *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
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

	requestsOpened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clearance_requests_opened_total",
		Help: "Total clearance requests opened",
	})

	caseTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_case_transitions_total",
		Help: "Total review case transitions by resulting status",
	}, []string{"status"})

	staleConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "review_case_stale_conflicts_total",
		Help: "Total case transitions refused because the caller held a stale status",
	})

	certsRendered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clearance_certificates_rendered_total",
		Help: "Total clearance certificates rendered by format",
	}, []string{"format"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, requestsOpened, caseTransitions, staleConflicts, certsRendered, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		requestsOpened:  requestsOpened,
		caseTransitions: caseTransitions,
		staleConflicts:  staleConflicts,
		certsRendered:   certsRendered,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
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

// RecordRequestOpened counts a newly opened clearance request.
func (m *MetricsService) RecordRequestOpened() {
	if m == nil {
		return
	}
	m.requestsOpened.Inc()
}

// RecordCaseTransition counts a case landing in the given status.
func (m *MetricsService) RecordCaseTransition(status string) {
	if m == nil {
		return
	}
	m.caseTransitions.WithLabelValues(status).Inc()
}

// RecordStaleConflict counts a transition refused on a stale status guard.
func (m *MetricsService) RecordStaleConflict() {
	if m == nil {
		return
	}
	m.staleConflicts.Inc()
}

// RecordCertificateRendered counts a finished certificate render.
func (m *MetricsService) RecordCertificateRendered(format string) {
	if m == nil {
		return
	}
	m.certsRendered.WithLabelValues(format).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
