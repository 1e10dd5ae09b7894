package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trades-api/internal/handlers"
	"trades-api/internal/middleware"
	"trades-api/internal/monitoring"
)

type Router struct {
	engine         *gin.Engine
	ledgerHandler  *handlers.LedgerHandler
	healthHandler  *handlers.HealthHandler
	logMiddleware  *middleware.LoggingMiddleware
	authMiddleware *middleware.AuthMiddleware      // nil when auth is disabled
	rateLimit      *middleware.RateLimitMiddleware // nil when rate limiting is disabled
	metrics        monitoring.MetricsService
	metricsPath    string
}

type RouterConfig struct {
	Debug          bool
	AllowedOrigins []string
	MetricsPath    string
}

func NewRouter(
	ledgerHandler *handlers.LedgerHandler,
	healthHandler *handlers.HealthHandler,
	logMiddleware *middleware.LoggingMiddleware,
	authMiddleware *middleware.AuthMiddleware,
	rateLimit *middleware.RateLimitMiddleware,
	metrics monitoring.MetricsService,
	config *RouterConfig,
) *Router {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsPath := config.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	r := &Router{
		engine:         gin.New(),
		ledgerHandler:  ledgerHandler,
		healthHandler:  healthHandler,
		logMiddleware:  logMiddleware,
		authMiddleware: authMiddleware,
		rateLimit:      rateLimit,
		metrics:        metrics,
		metricsPath:    metricsPath,
	}
	r.setupRoutes(config)
	return r
}

func (r *Router) setupRoutes(config *RouterConfig) {
	r.setupGlobalMiddleware(config)
	r.setupHealthRoutes()

	r.engine.GET("/", r.ledgerHandler.Welcome)

	// Original paths
	root := r.engine.Group("")
	r.protect(root)
	root.POST("/upload-csv", r.ledgerHandler.UploadCSV)
	root.POST("/balance", r.ledgerHandler.GetBalance)
	root.GET("/uploads/:id", r.ledgerHandler.GetReport)

	v1 := r.engine.Group("/api/v1")
	r.protect(v1)
	{
		v1.POST("/trades/upload", r.ledgerHandler.UploadCSV)
		v1.POST("/balances", r.ledgerHandler.GetBalance)
		v1.GET("/uploads/:id", r.ledgerHandler.GetReport)
	}
}

func (r *Router) setupGlobalMiddleware(config *RouterConfig) {
	r.engine.Use(requestid.New())
	r.engine.Use(r.logMiddleware.LogPanic())
	r.engine.Use(r.logMiddleware.LogRequests())
	if r.metrics != nil {
		r.engine.Use(middleware.Metrics(r.metrics))
	}

	corsConfig := cors.Config{
		AllowOrigins: config.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Length",
			"Content-Type",
			"Authorization",
			"X-Request-ID",
		},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowCredentials = true
	}
	r.engine.Use(cors.New(corsConfig))

	// Security headers
	r.engine.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "route not found"})
	})
}

// protect applies rate limiting and, when configured, bearer auth to g.
func (r *Router) protect(g *gin.RouterGroup) {
	if r.rateLimit != nil {
		g.Use(r.rateLimit.IPRateLimit())
	}
	if r.authMiddleware != nil {
		g.Use(r.authMiddleware.ValidateToken())
	}
}

func (r *Router) setupHealthRoutes() {
	health := r.engine.Group("/health")
	{
		health.GET("", r.healthHandler.Health)
		health.GET("/live", r.healthHandler.Liveness)
		health.GET("/ready", r.healthHandler.Readiness)
	}

	if r.metrics != nil {
		r.engine.GET(r.metricsPath, gin.WrapH(promhttp.HandlerFor(r.metrics.Registry(), promhttp.HandlerOpts{})))
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
