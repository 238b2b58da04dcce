// Package http exposes the entigo resolution service over a JSON HTTP API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/entigo/internal/interfaces/http/handlers"
	"github.com/turtacn/entigo/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.
type RouterConfig struct {
	// Handlers
	ResolutionHandler *handlers.ResolutionHandler
	HealthHandler     *handlers.HealthHandler

	// Middleware
	CORS        *middleware.CORSConfig
	RateLimiter *middleware.RateLimiter
	Logging     middleware.LoggingConfig

	// MaxBodySize caps request bodies in bytes; zero means no limit.
	MaxBodySize int64

	// Infrastructure
	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
}

// NewRouter builds the gin engine.  Middleware order is request id,
// recovery, metrics, logging, CORS, rate limit.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.RequestLogging(logger, cfg.Logging))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler())
	}
	if cfg.MaxBodySize > 0 {
		r.Use(limitBody(cfg.MaxBodySize))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}

	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	v1 := r.Group("/api/v1")
	registerResolutionRoutes(v1, cfg.ResolutionHandler)

	return r
}

// registerResolutionRoutes mounts the resolution endpoints.
func registerResolutionRoutes(r *gin.RouterGroup, h *handlers.ResolutionHandler) {
	if h == nil {
		return
	}
	r.POST("/resolve", h.Resolve)
	r.POST("/entities", h.Entities)
	r.POST("/entities/:name/value", h.Value)
	r.GET("/dependencies", h.Dependencies)
	r.GET("/detectors", h.Detectors)
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

//Personal.AI order the ending
