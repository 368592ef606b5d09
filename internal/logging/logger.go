package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logging surface shared by the server and its handlers.
type Logger interface {
	WithComponent(componentName string) *slog.Logger
	WithOperation(operationName string) *slog.Logger
	WithIndicator(indicator string) *slog.Logger
	WithRequestID(requestID string) *slog.Logger
	WithError(err error) *slog.Logger
	LogStartup(serviceName string, version string, port int)
	LogShutdown(serviceName string, reason string)
	LogCacheOperation(operation string, key string, hit bool, duration int64)
	LogForecast(indicator string, method string, horizon int, fallbackReason string)
	LogBusinessEvent(eventType string, details map[string]interface{})
	Logger() *slog.Logger
}

// StandardLogger is the slog-backed Logger used across the service.
type StandardLogger struct {
	logger   *slog.Logger
	shutdown func(context.Context) error
}

// NewStandardLogger creates a JSON logger writing to stdout.
func NewStandardLogger(logLevel string, environment string) *StandardLogger {
	return newStandardLogger(os.Stdout, logLevel, environment)
}

func newStandardLogger(w io.Writer, logLevel string, environment string) *StandardLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: getSlogLevel(logLevel),
	})
	logger := slog.New(handler)
	if environment != "" {
		logger = logger.With("environment", environment)
	}
	return &StandardLogger{logger: logger}
}

// NewStandardOTLPLogger creates a logger that exports through OTLP, falling back
// to stdout JSON when the exporter cannot be built.
func NewStandardOTLPLogger(config OTLPConfig) *StandardLogger {
	otlpLogger, err := NewOTLPLogger(config)
	if err != nil {
		fallback := NewStandardLogger(config.LogLevel, config.Environment)
		fallback.WithError(err).Warn("OTLP logging unavailable, using stdout")
		return fallback
	}
	return &StandardLogger{logger: otlpLogger.Logger(), shutdown: otlpLogger.Shutdown}
}

// Shutdown flushes any exporter behind the logger.
func (l *StandardLogger) Shutdown(ctx context.Context) error {
	if l.shutdown == nil {
		return nil
	}
	return l.shutdown(ctx)
}

func (l *StandardLogger) WithComponent(componentName string) *slog.Logger {
	return l.logger.With("component", componentName)
}

func (l *StandardLogger) WithOperation(operationName string) *slog.Logger {
	return l.logger.With("operation", operationName)
}

func (l *StandardLogger) WithIndicator(indicator string) *slog.Logger {
	return l.logger.With("indicator", indicator)
}

func (l *StandardLogger) WithRequestID(requestID string) *slog.Logger {
	return l.logger.With("request_id", requestID)
}

func (l *StandardLogger) WithError(err error) *slog.Logger {
	if err == nil {
		return l.logger
	}
	return l.logger.With("error", err.Error())
}

// LogStartup logs application startup information
func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.logger.Info("Application startup",
		"service", serviceName,
		"version", version,
		"port", port,
		"event", "startup",
	)
}

// LogShutdown logs application shutdown information
func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.logger.Info("Application shutdown",
		"service", serviceName,
		"reason", reason,
		"event", "shutdown",
	)
}

func (l *StandardLogger) LogCacheOperation(operation string, key string, hit bool, duration int64) {
	l.logger.Debug("Cache operation",
		"operation", operation,
		"key", key,
		"hit", hit,
		"duration_ms", duration,
		"event", "cache",
	)
}

// LogForecast records which strategy produced a forecast. Fallbacks are logged at warn.
func (l *StandardLogger) LogForecast(indicator string, method string, horizon int, fallbackReason string) {
	if fallbackReason != "" {
		l.logger.Warn("Forecast fell back",
			"indicator", indicator,
			"method", method,
			"horizon", horizon,
			"reason", fallbackReason,
			"event", "forecast",
		)
		return
	}
	l.logger.Info("Forecast generated",
		"indicator", indicator,
		"method", method,
		"horizon", horizon,
		"event", "forecast",
	)
}

// LogBusinessEvent logs business events in a standardized format
func (l *StandardLogger) LogBusinessEvent(eventType string, details map[string]interface{}) {
	fields := []interface{}{
		"event", "business",
		"event_type", eventType,
	}
	for k, v := range details {
		fields = append(fields, k, v)
	}
	l.logger.Info("Business event", fields...)
}

// Logger returns the underlying *slog.Logger
func (l *StandardLogger) Logger() *slog.Logger {
	return l.logger
}

// NewLogrusLogger builds the logrus logger handed to analytics services.
// Text output is used in development, JSON elsewhere.
func NewLogrusLogger(level string, environment string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(ParseLogrusLevel(level))
	if strings.EqualFold(environment, "development") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// getSlogLevel converts string level to slog.Level
func getSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogrusLevel converts string level to logrus.Level
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
