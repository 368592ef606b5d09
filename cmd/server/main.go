package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/econ-trends/internal/api"
	"github.com/irfndi/econ-trends/internal/cache"
	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/database"
	"github.com/irfndi/econ-trends/internal/logging"
	"github.com/irfndi/econ-trends/internal/metrics"
	"github.com/irfndi/econ-trends/internal/services"
	"github.com/irfndi/econ-trends/internal/telemetry"
	"github.com/irfndi/econ-trends/pkg/interfaces"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = logger.Shutdown(ctx)
	}()
	slog.SetDefault(logger.Logger())

	if err := telemetry.InitTelemetry(telemetryConfig(cfg)); err != nil {
		logger.WithError(err).Warn("Failed to initialize telemetry")
	}
	defer func() {
		if err := telemetry.Shutdown(); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	serviceLogger := logging.NewLogrusLogger(cfg.LogLevel, cfg.Environment)
	logrus.SetLevel(serviceLogger.GetLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	repo := database.NewSeriesRepository(db.Pool, cfg.Database.SeriesTable)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare series table: %w", err)
	}
	store := database.NewRetryingStore(repo, database.DefaultRetryPolicy(cfg.Database.MaxRetries), serviceLogger)

	deps := api.Dependencies{
		DB:             db,
		Probe:          services.HostProbe{},
		Security:       cfg.Security,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ServiceName:    cfg.Telemetry.ServiceName,
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        metrics.New(),
	}

	// Interfaces stay untyped nil when Redis is absent so health and admin
	// report the cache as disabled.
	var resultCache interfaces.ResultCache
	redisClient, err := database.NewRedisConnection(ctx, cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("Failed to connect to Redis, continuing without cache")
	} else {
		defer redisClient.Close()
		guarded := cache.NewGuardedCache(
			cache.NewRedisAnalysisCache(redisClient.Client, serviceLogger),
			cache.NewBreaker("redis-cache", cache.BreakerConfig{}, serviceLogger),
		)
		resultCache = guarded
		deps.Redis = redisClient
		deps.CacheAdmin = guarded
	}

	analytics := services.NewAnalyticsService(cfg.Analytics, store, resultCache, deps.Metrics, serviceLogger)
	deps.Analytics = analytics
	logger.Logger().Info("Analytics engine ready", "concurrency", analytics.Concurrency())

	if resultCache != nil {
		warmer := services.NewCacheWarmingService(analytics, cfg.Analytics.WarmIndicators, cfg.Analytics.WarmSchedule)
		if err := startCacheWarmer(ctx, warmer, logger); err != nil {
			return err
		}
		defer func() { _ = stopCacheWarmer(warmer, logger, shutdownTimeout) }()
	}

	srv := newHTTPServer(cfg, newRouter(cfg, deps))

	serveErr := make(chan error, 1)
	go func() {
		logger.LogStartup(cfg.Telemetry.ServiceName, telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.LogShutdown(cfg.Telemetry.ServiceName, "signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// startCacheWarmer runs one warm-up in the background and schedules the rest.
func startCacheWarmer(ctx context.Context, warmer *services.CacheWarmingService, logger *logging.StandardLogger) error {
	go func() {
		warmed, err := warmer.WarmCache(ctx)
		if err != nil {
			logger.WithError(err).Warn("Initial cache warming failed")
			return
		}
		logger.Logger().Info("Initial cache warming complete", "indicators", warmed)
	}()
	if err := warmer.Start(); err != nil {
		return fmt.Errorf("failed to start cache warmer: %w", err)
	}
	return nil
}

func stopCacheWarmer(warmer *services.CacheWarmingService, logger *logging.StandardLogger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := warmer.Stop(ctx); err != nil {
		logger.WithError(err).Warn("Cache warmer did not stop cleanly")
		return err
	}
	return nil
}

func newLogger(cfg *config.Config) *logging.StandardLogger {
	if cfg.Telemetry.OTLPLogs {
		return logging.NewStandardOTLPLogger(logging.OTLPConfig{
			Enabled:        cfg.Telemetry.Enabled,
			Endpoint:       cfg.Telemetry.OTLPEndpoint,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: telemetry.ServiceVersion,
			Environment:    cfg.Environment,
			LogLevel:       cfg.LogLevel,
		})
	}
	return logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
}

func telemetryConfig(cfg *config.Config) telemetry.TelemetryConfig {
	tc := *telemetry.DefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	if cfg.Telemetry.ServiceName != "" {
		tc.ServiceName = cfg.Telemetry.ServiceName
	}
	tc.Environment = cfg.Environment
	tc.LogLevel = cfg.LogLevel
	return tc
}

func newRouter(cfg *config.Config, deps api.Dependencies) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, deps)
	return router
}

func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
