// Package api exposes the readiness analysis, record and configuration
// operations over HTTP. All scoring stays in internal/analysis; handlers
// translate between transport and the pure core.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/bidforge/readiness/internal/analysis"
	"github.com/bidforge/readiness/internal/cache"
	"github.com/bidforge/readiness/internal/calibration"
	"github.com/bidforge/readiness/internal/database"
	apperrors "github.com/bidforge/readiness/internal/errors"
	"github.com/bidforge/readiness/internal/events"
	"github.com/bidforge/readiness/internal/monitoring"
	"github.com/bidforge/readiness/internal/ratelimit"
)

const serviceVersion = "1.0.0"

// Deps bundles everything the server needs. Calibration and Records are
// required; the rest degrade to no-ops or defaults when absent.
type Deps struct {
	Calibration *calibration.Store
	Records     *database.RecordService
	DB          *database.DB
	Limiter     *ratelimit.RateLimiter
	Cache       *cache.Cache
	Publisher   *events.Publisher
	Metrics     *monitoring.Metrics
	Logger      *monitoring.Logger
	Auth        *ReviewerAuth

	AllowedOrigins       []string
	ConfigApplyPerMinute int
}

// Server wires the delivery surface over the analysis core.
type Server struct {
	coverage    *analysis.CoverageAnalyzer
	calibration *calibration.Store
	records     *database.RecordService
	db          *database.DB
	limiter     *ratelimit.RateLimiter
	respCache   *cache.Cache
	publisher   *events.Publisher
	metrics     *monitoring.Metrics
	logger      *monitoring.Logger
	auth        *ReviewerAuth
	origins     []string
	applyBudget int
}

// NewServer creates a server from its dependencies.
func NewServer(deps Deps) *Server {
	s := &Server{
		coverage:    analysis.NewCoverageAnalyzer(),
		calibration: deps.Calibration,
		records:     deps.Records,
		db:          deps.DB,
		limiter:     deps.Limiter,
		respCache:   deps.Cache,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		auth:        deps.Auth,
		origins:     deps.AllowedOrigins,
		applyBudget: deps.ConfigApplyPerMinute,
	}
	if s.metrics == nil {
		s.metrics = monitoring.NewMetrics()
	}
	if s.logger == nil {
		s.logger = monitoring.NewLogger()
	}
	if s.auth == nil {
		s.auth = NewReviewerAuth("", time.Hour)
	}
	if s.applyBudget <= 0 {
		s.applyBudget = 10
	}
	return s
}

// Router builds the gin engine with the full middleware chain and route
// table.
func (s *Server) Router() *gin.Engine {
	r := gin.New()

	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())
	r.Use(SecurityHeaders())
	r.Use(RequestTimeout(defaultRequestTimeout))
	r.Use(ValidateContentType())
	r.Use(BodySizeLimit(maxBodyBytes))
	r.Use(CORS(s.origins))
	if s.respCache != nil {
		r.Use(s.respCache.Middleware(s.metrics, "/api/v1/coverage", "/api/v1/readiness"))
	}

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")

	scored := v1.Group("")
	if s.limiter != nil {
		scored.Use(s.limiter.IPRateLimitMiddleware())
	}
	scored.POST("/coverage", s.handleCoverage)
	scored.POST("/readiness", s.handleReadiness)

	v1.POST("/snapshots", s.handleRecordSnapshot)
	v1.POST("/outcomes", s.handleRecordOutcome)
	v1.GET("/outcomes/analysis", s.handleOutcomeAnalysis)
	v1.GET("/tuning/suggestions", s.handleTuningSuggestions)
	v1.POST("/tuning/stage", s.handleStageSuggestion)

	v1.GET("/config", s.handleGetConfig)
	v1.POST("/config/validate", s.handleValidateConfig)
	v1.POST("/config/diff", s.handleDiffConfig)

	reviewed := v1.Group("")
	reviewed.Use(s.auth.Middleware(s.logger))
	if s.limiter != nil {
		reviewed.Use(s.limiter.EndpointRateLimitMiddleware("config_apply", s.applyBudget))
	}
	reviewed.POST("/config/apply", s.handleApplyConfig)

	if s.limiter != nil {
		v1.GET("/ratelimit/status", s.limiter.HandleRateLimitStatus())

		admin := v1.Group("")
		admin.Use(s.auth.Middleware(s.logger))
		admin.POST("/ratelimit/reset", s.limiter.HandleResetRateLimits())
	}

	return r
}

// handleHealth godoc
// @Summary Service health
// @Description Reports component health: record store, rate limiter, cache and event publisher.
// @Tags operations
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	components := gin.H{}

	if s.db != nil {
		components["database"] = s.db.GetPoolStats()
	}

	if stats, err := s.records.Stats(c.Request.Context()); err == nil {
		components["records"] = stats
	} else {
		status = "degraded"
		code = http.StatusServiceUnavailable
		components["records"] = gin.H{"error": err.Error()}
	}

	if s.limiter != nil {
		components["rate_limiter"] = s.limiter.GetStats()
	}
	if s.respCache != nil {
		components["cache"] = s.respCache.Stats()
	}
	if s.publisher != nil {
		components["events"] = gin.H{
			"enabled": s.publisher.Enabled(),
			"healthy": s.publisher.HealthCheck() == nil,
		}
	}

	c.JSON(code, gin.H{
		"status":         status,
		"timestamp":      time.Now().Format(time.RFC3339),
		"version":        serviceVersion,
		"config_version": s.calibration.Active().Version,
		"uptime_seconds": int(s.metrics.Uptime().Seconds()),
		"components":     components,
	})
}
