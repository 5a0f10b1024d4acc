package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_bot_requests_total",
		Help: "Total number of inbound requests by admission outcome",
	}, []string{"outcome"})

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ai_bot_provider_request_duration_seconds",
		Help:    "Duration of LLM provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "status"})

	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_bot_provider_requests_total",
		Help: "Total number of LLM provider calls",
	}, []string{"provider", "status"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ai_bot_queue_depth",
		Help: "Number of requests waiting in the dispatch queue",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ai_bot_active_sessions",
		Help: "Number of live user sessions",
	})

	marketLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_bot_market_lookups_total",
		Help: "Total number of market data lookups",
	}, []string{"endpoint", "status"})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_bot_cache_hits_total",
		Help: "Total number of cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_bot_cache_misses_total",
		Help: "Total number of cache misses",
	})
)

// Metrics provides methods to record metrics.
type Metrics struct{}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest records an inbound request admission outcome.
func (m *Metrics) RecordRequest(outcome string) {
	requestsTotal.WithLabelValues(outcome).Inc()
}

// RecordProviderRequest records one LLM provider call.
func (m *Metrics) RecordProviderRequest(provider, status string, duration time.Duration) {
	providerRequestDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	providerRequestsTotal.WithLabelValues(provider, status).Inc()
}

// SetQueueDepth sets the dispatch queue depth gauge.
func (m *Metrics) SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// SetActiveSessions sets the live session gauge.
func (m *Metrics) SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// RecordMarketLookup records one data provider lookup.
func (m *Metrics) RecordMarketLookup(endpoint, status string) {
	marketLookups.WithLabelValues(endpoint, status).Inc()
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

// StartMetricsServer starts the metrics HTTP server.
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
