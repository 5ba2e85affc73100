package service

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the scheduling
// engine and its caches.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	runDuration         prometheus.Histogram
	sessionsProposed    prometheus.Counter
	candidatesEvaluated prometheus.Counter
	candidatesDiscarded prometheus.Counter
	cacheLatency        prometheus.Histogram
	cacheWrite          prometheus.Histogram
	cacheHitRatio       prometheus.Gauge
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the engine's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_run_duration_seconds",
		Help:    "Duration of scheduling runs in seconds",
		Buckets: prometheus.DefBuckets,
	})

	sessionsProposed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_sessions_proposed_total",
		Help: "Total sessions proposed by the assembler",
	})

	candidatesEvaluated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_candidates_evaluated_total",
		Help: "Total candidate triples evaluated",
	})

	candidatesDiscarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_candidates_discarded_total",
		Help: "Total candidate triples discarded with a conflict report",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for result cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for result cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	registry.MustRegister(runDuration, sessionsProposed, candidatesEvaluated, candidatesDiscarded,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, httpRequests, httpDuration)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		runDuration:         runDuration,
		sessionsProposed:    sessionsProposed,
		candidatesEvaluated: candidatesEvaluated,
		candidatesDiscarded: candidatesDiscarded,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		httpRequests:        httpRequests,
		httpDuration:        httpDuration,
	}
}

// ObserveHTTPRequest tracks one served HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	s.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler serves the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// RecordCacheOperation tracks one result-cache lookup.
func (s *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if s == nil {
		return
	}
	s.cacheLatency.Observe(duration.Seconds())
	if hit {
		s.cacheHits.Inc()
		atomic.AddUint64(&s.cacheHitCount, 1)
	} else {
		s.cacheMisses.Inc()
		atomic.AddUint64(&s.cacheMissCount, 1)
	}

	hits := atomic.LoadUint64(&s.cacheHitCount)
	total := hits + atomic.LoadUint64(&s.cacheMissCount)
	if total > 0 {
		s.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks one result-cache write.
func (s *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if s == nil {
		return
	}
	s.cacheWrite.Observe(duration.Seconds())
}

// RecordRun tracks one completed scheduling run.
func (s *MetricsService) RecordRun(duration time.Duration, evaluated, discarded, proposed int) {
	if s == nil {
		return
	}
	s.runDuration.Observe(duration.Seconds())
	s.candidatesEvaluated.Add(float64(evaluated))
	s.candidatesDiscarded.Add(float64(discarded))
	s.sessionsProposed.Add(float64(proposed))
}
