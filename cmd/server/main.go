package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"trades-api/internal/config"
	"trades-api/internal/handlers"
	"trades-api/internal/messaging"
	"trades-api/internal/middleware"
	"trades-api/internal/monitoring"
	"trades-api/internal/normalizer"
	"trades-api/internal/routes"
	"trades-api/internal/scheduler"
	"trades-api/internal/services"
	"trades-api/internal/store"
	"trades-api/pkg/cache"
	"trades-api/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()

	logger.Init(cfg.Logger)
	log := logrus.WithField("service", "trades-api")

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	log.WithField("ledger", cfg.Ledger.Driver).Info("Starting Trades API service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ledger store
	repo, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open ledger store: ", err)
	}
	defer repo.Close()

	// Upload report store
	var reportCache cache.Store
	if cfg.Cache.RedisEnabled {
		reportCache, err = cache.NewRedisClient(cfg.Cache)
		if err != nil {
			log.Fatal("Failed to connect to Redis: ", err)
		}
	} else {
		reportCache = cache.NewLocalCache(cfg.Cache.LocalMaxSize, cfg.Cache.KeyPrefix)
	}
	defer reportCache.Close()

	// Ingestion events
	var publisher messaging.EventPublisher = messaging.NoopPublisher{}
	if cfg.RabbitMQ.Enabled {
		p, err := messaging.NewTradePublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey, logrus.StandardLogger())
		if err != nil {
			log.Fatal("Failed to initialize trade event publisher: ", err)
		}
		publisher = p
	}
	defer publisher.Close()

	metrics := monitoring.NewPrometheusMetrics(cfg.Monitoring.Namespace)

	ledger := services.NewLedgerService(
		repo,
		normalizer.Normalizer{Strict: cfg.Ingest.StrictOperations},
		services.NewCacheReportStore(reportCache, cfg.Cache.ReportTTL),
		publisher,
		metrics,
		logrus.StandardLogger(),
	)

	sched := scheduler.NewScheduler(cfg.Scheduler, cfg.Upload, ledger, metrics, logrus.StandardLogger())
	if err := sched.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler: ", err)
	}

	// HTTP layer
	checks := map[string]handlers.Pinger{"ledger": repo}
	if cfg.Cache.RedisEnabled {
		checks["redis"] = reportCache
	}

	var auth *middleware.AuthMiddleware
	if cfg.Auth.Enabled {
		auth = middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	}
	var rateLimit *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rateLimit = middleware.NewRateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize)
	}
	var routeMetrics monitoring.MetricsService
	if cfg.Monitoring.EnableMetrics {
		routeMetrics = metrics
	}

	router := routes.NewRouter(
		handlers.NewLedgerHandler(ledger, cfg, logrus.StandardLogger()),
		handlers.NewHealthHandler(checks, version, cfg.Server.Environment),
		middleware.NewLoggingMiddleware(logrus.StandardLogger(), "/health/live", cfg.Monitoring.MetricsPath),
		auth,
		rateLimit,
		routeMetrics,
		&routes.RouterConfig{
			Debug:          cfg.Server.Environment == "development",
			AllowedOrigins: cfg.Server.CORSOrigins,
			MetricsPath:    cfg.Monitoring.MetricsPath,
		},
	)

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router.GetEngine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server: ", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: ", err)
	}
	if err := sched.Stop(); err != nil {
		log.Error("Failed to stop scheduler: ", err)
	}

	log.Info("Server exited")
}
