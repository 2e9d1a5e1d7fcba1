// Package http assembles the gin engine and server of the TechIntel API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TechIntel/internal/interfaces/http/handlers"
	"github.com/turtacn/TechIntel/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil handlers leave their routes unregistered.
type RouterConfig struct {
	CompareHandler    *handlers.CompareHandler
	TechnologyHandler *handlers.TechnologyHandler
	HealthHandler     *handlers.HealthHandler

	// MetricsHandler is mounted at MetricsPath, "/metrics" by default.
	MetricsHandler http.Handler
	MetricsPath    string

	CORS        *middleware.CORSConfig
	RateLimiter middleware.RateLimiter
	MaxBodySize int64

	// Mode is the gin mode: debug, release or test.
	Mode string

	Logger  logging.Logger
	Metrics *prometheus.AppMetrics
}

// NewRouter builds the route tree.  Probes and metrics are outside /api/v1
// and are neither rate limited nor size limited.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(cfg.Logger),
		middleware.RequestLogging(cfg.Logger.Named("http"), cfg.Metrics, middleware.DefaultLoggingConfig()),
	)
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimit(cfg.RateLimiter))
	}
	api.Use(middleware.BodyLimit(cfg.MaxBodySize))

	registerCompareRoutes(api, cfg.CompareHandler)
	registerTechnologyRoutes(api, cfg.TechnologyHandler)

	return r
}

func registerCompareRoutes(r *gin.RouterGroup, h *handlers.CompareHandler) {
	if h == nil {
		return
	}
	r.POST("/compare", h.Post)
	r.GET("/compare", h.Get)
}

func registerTechnologyRoutes(r *gin.RouterGroup, h *handlers.TechnologyHandler) {
	if h == nil {
		return
	}
	r.POST("/validate", h.Validate)

	tech := r.Group("/technologies")
	tech.GET("", h.List)
	tech.POST("/:name", h.Track)
	tech.GET("/:name", h.Get)
	tech.DELETE("/:name", h.Delete)
}
