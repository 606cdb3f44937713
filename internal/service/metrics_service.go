package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	scopeDenials    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	auditQueueDepth prometheus.Gauge
}

// NewMetricsService registers the collectors.
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

	scopeDenials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "visibility_denials_total",
		Help: "Listing requests rejected by season/role scoping",
	}, []string{"resource"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	auditQueueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audit_queue_depth",
		Help: "Audit entries waiting to be written",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, scopeDenials, cacheHits, cacheMisses, auditQueueDepth, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		scopeDenials:    scopeDenials,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		auditQueueDepth: auditQueueDepth,
	}
}

// Handler exposes the registry over HTTP.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// RecordRequest observes one finished HTTP request.
func (s *MetricsService) RecordRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordScopeDenial counts a listing rejected by the visibility rules.
func (s *MetricsService) RecordScopeDenial(resource string) {
	s.scopeDenials.WithLabelValues(resource).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (s *MetricsService) RecordCacheLookup(hit bool) {
	if hit {
		s.cacheHits.Inc()
		return
	}
	s.cacheMisses.Inc()
}

// SetAuditQueueDepth reports the pending audit backlog.
func (s *MetricsService) SetAuditQueueDepth(depth int) {
	s.auditQueueDepth.Set(float64(depth))
}
