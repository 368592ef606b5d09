package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/irfndi/econ-trends/internal/api/handlers"
	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/metrics"
	"github.com/irfndi/econ-trends/internal/middleware"
	"github.com/irfndi/econ-trends/internal/services"
)

// Dependencies are the collaborators the router needs. Redis and
// CacheAdmin are nil when the result cache is disabled.
type Dependencies struct {
	Analytics      handlers.AnalyticsProvider
	CacheAdmin     handlers.CacheAdmin
	DB             handlers.HealthChecker
	Redis          handlers.HealthChecker
	Probe          services.SystemProbe
	Metrics        *metrics.Recorder
	Security       config.SecurityConfig
	AllowedOrigins []string
	ServiceName    string
	RequestTimeout time.Duration
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	if deps.ServiceName == "" {
		deps.ServiceName = "econ-trends"
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	router.Use(
		otelgin.Middleware(deps.ServiceName),
		middleware.RequestID(),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(deps.AllowedOrigins),
	)

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis, deps.Probe)
	health := router.Group("/", middleware.HealthCheckTelemetryMiddleware())
	{
		health.GET("/health", gin.WrapF(healthHandler.HealthCheck))
		health.HEAD("/health", gin.WrapF(healthHandler.HealthCheck))
		health.GET("/ready", gin.WrapF(healthHandler.ReadinessCheck))
		health.GET("/live", gin.WrapF(healthHandler.LivenessCheck))
	}
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	auth := middleware.NewAuthMiddleware(deps.Security.JWTSecret)
	admin := middleware.NewAdminMiddleware(deps.Security.AdminAPIKey)
	analysisHandler := handlers.NewAnalysisHandler(deps.Analytics)
	adminHandler := handlers.NewAdminHandler(deps.Analytics, deps.CacheAdmin)

	v1 := router.Group("/api/v1", middleware.Timeout(deps.RequestTimeout))
	{
		indicators := v1.Group("/indicators")
		{
			reads := indicators.Group("", auth.OptionalAuth())
			reads.GET("", analysisHandler.ListIndicators)
			reads.GET("/:indicator/trend", analysisHandler.GetTrend)
			reads.GET("/:indicator/outliers", analysisHandler.GetOutliers)
			reads.GET("/:indicator/seasonality", analysisHandler.GetSeasonality)
			reads.GET("/:indicator/forecast", analysisHandler.GetForecast)
			reads.GET("/:indicator/forecast/compare", analysisHandler.CompareForecastMethods)
			reads.GET("/:indicator/summary", analysisHandler.GetSummary)

			maintenance := indicators.Group("", admin.RequireAdminAuth())
			maintenance.PUT("/:indicator/observations", adminHandler.IngestObservations)
			maintenance.DELETE("/:indicator/cache", adminHandler.InvalidateCache)
		}

		v1.GET("/correlations", auth.OptionalAuth(), analysisHandler.GetCorrelations)
		v1.GET("/trends/summary", auth.OptionalAuth(), analysisHandler.GetTrendSummary)

		// Ad-hoc forecasts run arbitrary caller data through the engine
		v1.POST("/forecast", auth.RequireAuth(), analysisHandler.ForecastSeries)

		adminGroup := v1.Group("/admin", admin.RequireAdminAuth())
		{
			adminGroup.GET("/cache", adminHandler.GetCacheReport)
			adminGroup.DELETE("/cache", adminHandler.ClearCache)
		}
	}
}
