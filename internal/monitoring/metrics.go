package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the readiness service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Analysis metrics
	AnalysisRunsTotal    *prometheus.CounterVec
	AnalysisDuration     *prometheus.HistogramVec
	ReadinessScores      prometheus.Histogram
	RecommendationsTotal *prometheus.CounterVec

	// Record metrics
	SnapshotsRecorded prometheus.Counter
	OutcomesRecorded  *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Rate limit metrics
	RateLimitBlocks      *prometheus.CounterVec
	RateLimitRedisErrors prometheus.Counter
	RateLimitFallbacks   prometheus.Counter

	// Configuration metrics
	ConfigReloads prometheus.Counter
	ConfigApplies prometheus.Counter
	ConfigVersion *prometheus.GaugeVec

	// Event metrics
	EventsPublished *prometheus.CounterVec

	startTime time.Time
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics. Registration is
// process-wide, so the instance is shared.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			startTime: time.Now(),

			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "readiness_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "readiness_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),

			AnalysisRunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "readiness_analysis_runs_total",
					Help: "Total number of analysis computations by operation",
				},
				[]string{"operation"},
			),
			AnalysisDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "readiness_analysis_duration_seconds",
					Help:    "Analysis computation duration in seconds",
					Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
				},
				[]string{"operation"},
			),
			ReadinessScores: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "readiness_scores",
					Help:    "Distribution of computed readiness scores",
					Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 to 100
				},
			),
			RecommendationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "readiness_recommendations_total",
					Help: "Total number of readiness recommendations by band",
				},
				[]string{"recommendation"},
			),

			SnapshotsRecorded: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "readiness_snapshots_recorded_total",
					Help: "Total number of submission snapshots recorded",
				},
			),
			OutcomesRecorded: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "readiness_outcomes_recorded_total",
					Help: "Total number of bid outcomes recorded",
				},
				[]string{"outcome"},
			),

			CacheHits: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "readiness_cache_hits_total",
					Help: "Total number of response cache hits",
				},
			),
			CacheMisses: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "readiness_cache_misses_total",
					Help: "Total number of response cache misses",
				},
			),

			RateLimitBlocks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "readiness_rate_limit_blocks_total",
					Help: "Total number of rate limited requests by endpoint",
				},
				[]string{"endpoint"},
			),
			RateLimitRedisErrors: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "readiness_rate_limit_redis_errors_total",
					Help: "Total number of Redis errors during rate limiting",
				},
			),
			RateLimitFallbacks: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "readiness_rate_limit_fallbacks_total",
					Help: "Total number of requests served by the in-memory fallback limiter",
				},
			),

			ConfigReloads: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "readiness_config_reloads_total",
					Help: "Total number of scoring-config reloads",
				},
			),
			ConfigApplies: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "readiness_config_applies_total",
					Help: "Total number of applied scoring-config changes",
				},
			),
			ConfigVersion: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "readiness_config_version_info",
					Help: "Active scoring-config version (value is always 1)",
				},
				[]string{"version"},
			),

			EventsPublished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "readiness_events_published_total",
					Help: "Total number of events published",
				},
				[]string{"subject"},
			),
		}
	})

	return sharedMetrics
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAnalysis records one analysis computation
func (m *Metrics) RecordAnalysis(operation string, duration time.Duration) {
	m.AnalysisRunsTotal.WithLabelValues(operation).Inc()
	m.AnalysisDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordReadiness records a computed score and its recommendation band
func (m *Metrics) RecordReadiness(score int, recommendation string) {
	m.ReadinessScores.Observe(float64(score))
	m.RecommendationsTotal.WithLabelValues(recommendation).Inc()
}

// RecordOutcome records a decided bid outcome
func (m *Metrics) RecordOutcome(outcome string) {
	m.OutcomesRecorded.WithLabelValues(outcome).Inc()
}

// RecordRateLimitBlock records a rate limited request
func (m *Metrics) RecordRateLimitBlock(endpoint string) {
	m.RateLimitBlocks.WithLabelValues(endpoint).Inc()
}

// RecordEvent records a published event
func (m *Metrics) RecordEvent(subject string) {
	m.EventsPublished.WithLabelValues(subject).Inc()
}

// SetConfigVersion exposes the active scoring-config version as an info gauge
func (m *Metrics) SetConfigVersion(version string) {
	m.ConfigVersion.Reset()
	m.ConfigVersion.WithLabelValues(version).Set(1)
}

// IncrementCacheHit increments cache hit count
func (m *Metrics) IncrementCacheHit() {
	m.CacheHits.Inc()
}

// IncrementCacheMiss increments cache miss count
func (m *Metrics) IncrementCacheMiss() {
	m.CacheMisses.Inc()
}

// IncrementRateLimitRedisError increments Redis error count for rate limiting
func (m *Metrics) IncrementRateLimitRedisError() {
	m.RateLimitRedisErrors.Inc()
}

// IncrementRateLimitFallback increments fallback rate limiter usage count
func (m *Metrics) IncrementRateLimitFallback() {
	m.RateLimitFallbacks.Inc()
}

// Uptime reports time since metrics initialization
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Ensure Metrics implements the cache metrics interface
var _ interface {
	IncrementCacheHit()
	IncrementCacheMiss()
} = (*Metrics)(nil)
