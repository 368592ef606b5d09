package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	Security    SecurityConfig  `mapstructure:"security"`
	Analytics   AnalyticsConfig `mapstructure:"analytics"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// RequestTimeout bounds every /api/v1 request. Zero disables the bound.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=0"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
	// SeriesTable holds one row per (indicator, observed_at, value).
	SeriesTable string `mapstructure:"series_table"`
	// MaxRetries bounds retries of transient query failures. Zero disables them.
	MaxRetries int `mapstructure:"max_retries"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPLogs     bool   `mapstructure:"otlp_logs"`
}

type SecurityConfig struct {
	// JWTSecret guards the write endpoints. Empty disables authentication.
	JWTSecret string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	// AdminAPIKey guards cache maintenance endpoints. Empty disables them.
	AdminAPIKey string `mapstructure:"admin_api_key" json:"-" yaml:"-"`
}

// AnalyticsConfig carries every tunable of the analytics engine. It is resolved
// once by Load (or DefaultAnalyticsConfig) and passed by value afterwards.
type AnalyticsConfig struct {
	MinDataPoints          int     `mapstructure:"min_data_points" validate:"min=2"`
	TrendWindow            int     `mapstructure:"trend_window" validate:"min=2"`
	VolatilityWindow       int     `mapstructure:"volatility_window" validate:"min=2"`
	OutlierFactor          float64 `mapstructure:"outlier_factor" validate:"gt=0"`
	CorrelationThreshold   float64 `mapstructure:"correlation_threshold" validate:"gt=0,lte=1"`
	CorrelationWindow      int     `mapstructure:"correlation_window" validate:"min=2"`
	MaxForecastHorizon     int     `mapstructure:"max_forecast_horizon" validate:"min=1"`
	DefaultForecastHorizon int     `mapstructure:"default_forecast_horizon" validate:"min=1,ltefield=MaxForecastHorizon"`
	ConfidenceDecayRate    float64 `mapstructure:"confidence_decay_rate" validate:"gte=0"`
	MinConfidence          float64 `mapstructure:"min_confidence" validate:"gte=0,lte=1"`

	BaseConfidenceExponential   float64 `mapstructure:"base_confidence_exponential" validate:"gte=0,lte=1"`
	BaseConfidenceMovingAverage float64 `mapstructure:"base_confidence_moving_average" validate:"gte=0,lte=1"`
	BaseConfidenceFallback      float64 `mapstructure:"base_confidence_fallback" validate:"gte=0,lte=1"`

	CleanOutlierSigma     float64 `mapstructure:"clean_outlier_sigma" validate:"gt=0"`
	ForecastOutlierSigma  float64 `mapstructure:"forecast_outlier_sigma" validate:"gt=0"`
	StrategyMinPoints     int     `mapstructure:"strategy_min_points" validate:"min=2"`
	TrainRatio            float64 `mapstructure:"train_ratio" validate:"gt=0,lt=1"`
	SmoothingAlpha        float64 `mapstructure:"smoothing_alpha" validate:"gt=0,lt=1"`
	SmoothingBeta         float64 `mapstructure:"smoothing_beta" validate:"gt=0,lt=1"`
	MovingAverageAlpha    float64 `mapstructure:"moving_average_alpha" validate:"gt=0,lt=1"`
	MovingAverageWindow   int     `mapstructure:"moving_average_max_window" validate:"min=1"`
	MovingAveragePeriod   int     `mapstructure:"moving_average_period" validate:"min=1"`
	SeasonalityThreshold  float64 `mapstructure:"seasonality_threshold" validate:"gte=0,lte=1"`
	SeasonalityMinPoints  int     `mapstructure:"seasonality_min_points" validate:"min=2"`
	FallbackBandFraction  float64 `mapstructure:"fallback_band_fraction" validate:"gte=0"`

	SeriesLookback int           `mapstructure:"series_lookback" validate:"min=2"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	WarmIndicators []string      `mapstructure:"warm_indicators"`
	WarmSchedule   string        `mapstructure:"warm_schedule"`
	MaxConcurrency int           `mapstructure:"max_concurrency" validate:"min=0"`
}

// DefaultAnalyticsConfig returns the analytics defaults without touching viper.
func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		MinDataPoints:          10,
		TrendWindow:            30,
		VolatilityWindow:       20,
		OutlierFactor:          1.5,
		CorrelationThreshold:   0.7,
		CorrelationWindow:      12,
		MaxForecastHorizon:     24,
		DefaultForecastHorizon: 12,
		ConfidenceDecayRate:    0.15,
		MinConfidence:          0.5,

		BaseConfidenceExponential:   0.8,
		BaseConfidenceMovingAverage: 0.75,
		BaseConfidenceFallback:      0.3,

		CleanOutlierSigma:    10,
		ForecastOutlierSigma: 5,
		StrategyMinPoints:    5,
		TrainRatio:           0.8,
		SmoothingAlpha:       0.3,
		SmoothingBeta:        0.1,
		MovingAverageAlpha:   0.3,
		MovingAverageWindow:  12,
		MovingAveragePeriod:  3,
		SeasonalityThreshold: 0.1,
		SeasonalityMinPoints: 24,
		FallbackBandFraction: 0.2,

		SeriesLookback: 240,
		CacheTTL:       time.Hour,
		WarmIndicators: []string{},
		WarmSchedule:   "@every 1h",
		MaxConcurrency: 4,
	}
}

// Validate checks the analytics settings against their declared bounds.
func (c AnalyticsConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid analytics config: %w", err)
	}
	return nil
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := viper.BindEnv("security.admin_api_key", "ADMIN_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind ADMIN_API_KEY environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := validator.New().Struct(config.Server); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if err := config.Analytics.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.request_timeout", "30s")

	// Set database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "econ_trends")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")
	viper.SetDefault("database.series_table", "indicator_observations")
	viper.SetDefault("database.max_retries", 2)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Telemetry
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.otlp_endpoint", "")
	viper.SetDefault("telemetry.service_name", "econ-trends")
	viper.SetDefault("telemetry.otlp_logs", false)

	// Security
	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.admin_api_key", "")

	// Analytics
	d := DefaultAnalyticsConfig()
	viper.SetDefault("analytics.min_data_points", d.MinDataPoints)
	viper.SetDefault("analytics.trend_window", d.TrendWindow)
	viper.SetDefault("analytics.volatility_window", d.VolatilityWindow)
	viper.SetDefault("analytics.outlier_factor", d.OutlierFactor)
	viper.SetDefault("analytics.correlation_threshold", d.CorrelationThreshold)
	viper.SetDefault("analytics.correlation_window", d.CorrelationWindow)
	viper.SetDefault("analytics.max_forecast_horizon", d.MaxForecastHorizon)
	viper.SetDefault("analytics.default_forecast_horizon", d.DefaultForecastHorizon)
	viper.SetDefault("analytics.confidence_decay_rate", d.ConfidenceDecayRate)
	viper.SetDefault("analytics.min_confidence", d.MinConfidence)
	viper.SetDefault("analytics.base_confidence_exponential", d.BaseConfidenceExponential)
	viper.SetDefault("analytics.base_confidence_moving_average", d.BaseConfidenceMovingAverage)
	viper.SetDefault("analytics.base_confidence_fallback", d.BaseConfidenceFallback)
	viper.SetDefault("analytics.clean_outlier_sigma", d.CleanOutlierSigma)
	viper.SetDefault("analytics.forecast_outlier_sigma", d.ForecastOutlierSigma)
	viper.SetDefault("analytics.strategy_min_points", d.StrategyMinPoints)
	viper.SetDefault("analytics.train_ratio", d.TrainRatio)
	viper.SetDefault("analytics.smoothing_alpha", d.SmoothingAlpha)
	viper.SetDefault("analytics.smoothing_beta", d.SmoothingBeta)
	viper.SetDefault("analytics.moving_average_alpha", d.MovingAverageAlpha)
	viper.SetDefault("analytics.moving_average_max_window", d.MovingAverageWindow)
	viper.SetDefault("analytics.moving_average_period", d.MovingAveragePeriod)
	viper.SetDefault("analytics.seasonality_threshold", d.SeasonalityThreshold)
	viper.SetDefault("analytics.seasonality_min_points", d.SeasonalityMinPoints)
	viper.SetDefault("analytics.fallback_band_fraction", d.FallbackBandFraction)
	viper.SetDefault("analytics.series_lookback", d.SeriesLookback)
	viper.SetDefault("analytics.cache_ttl", d.CacheTTL)
	viper.SetDefault("analytics.warm_indicators", d.WarmIndicators)
	viper.SetDefault("analytics.warm_schedule", d.WarmSchedule)
	viper.SetDefault("analytics.max_concurrency", d.MaxConcurrency)
}
