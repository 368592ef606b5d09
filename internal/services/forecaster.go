package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/models"
)

// Selection thresholds on full-series coefficient of variation and R².
const (
	selectShortSeries      = 6
	selectMediumSeries     = 12
	selectShortExpCV       = 0.2
	selectLinearRSquared   = 0.6
	selectLinearCV         = 0.15
	selectExponentialCV    = 0.25
	forecastPrefilterAbove = 5
)

// Forecaster selects and runs forecasting strategies. Predict always returns
// a well-formed result; failures degrade to the fallback strategy.
type Forecaster struct {
	config     config.AnalyticsConfig
	preparer   *SeriesPreparer
	strategies map[models.ForecastMethod]ForecastStrategy
	fallback   *FallbackStrategy
	logger     *logrus.Logger
	now        func() time.Time
}

// NewForecaster wires the built-in strategies. A nil logger uses the logrus standard logger.
func NewForecaster(cfg config.AnalyticsConfig, logger *logrus.Logger) *Forecaster {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	f := &Forecaster{
		config:   cfg,
		preparer: NewSeriesPreparer(cfg),
		logger:   logger,
		now:      time.Now,
	}
	f.fallback = NewFallbackStrategy(cfg, func() time.Time { return f.now() })
	f.strategies = map[models.ForecastMethod]ForecastStrategy{
		models.MethodLinear:        NewLinearStrategy(cfg),
		models.MethodExponential:   NewExponentialStrategy(cfg),
		models.MethodMovingAverage: NewMovingAverageStrategy(cfg),
		models.MethodFallback:      f.fallback,
	}
	return f
}

// Strategy returns the registered strategy for method.
func (f *Forecaster) Strategy(method models.ForecastMethod) (ForecastStrategy, bool) {
	s, ok := f.strategies[method]
	return s, ok
}

// ConcreteMethods lists the non-fallback strategies in comparison order.
func ConcreteMethods() []models.ForecastMethod {
	return []models.ForecastMethod{models.MethodLinear, models.MethodExponential, models.MethodMovingAverage}
}

// MethodDisplayName title-cases a method identifier, e.g. "Moving Average".
func MethodDisplayName(method models.ForecastMethod) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(method), "_", " "))
}

// ClampHorizon bounds horizon to [1, MaxForecastHorizon].
func (f *Forecaster) ClampHorizon(horizon int) int {
	if horizon < 1 {
		return 1
	}
	if horizon > f.config.MaxForecastHorizon {
		return f.config.MaxForecastHorizon
	}
	return horizon
}

// prepare cleans the series and applies a single ForecastOutlierSigma pass
// when more than five points remain.
func (f *Forecaster) prepare(series models.TimeSeries) models.TimeSeries {
	cleaned := f.preparer.Clean(series)
	if cleaned.Len() > forecastPrefilterAbove {
		cleaned.Points = filterSigma(cleaned.Points, f.config.ForecastOutlierSigma)
	}
	return cleaned
}

// SelectMethod picks a strategy for the series after the same preparation Predict applies.
func (f *Forecaster) SelectMethod(series models.TimeSeries) models.ForecastMethod {
	return selectMethod(f.prepare(series).Values())
}

func selectMethod(values []float64) models.ForecastMethod {
	n := len(values)
	cv := coefficientOfVariation(values)

	switch {
	case n < selectShortSeries:
		return models.MethodMovingAverage
	case n < selectMediumSeries:
		if cv < selectShortExpCV {
			return models.MethodExponential
		}
		return models.MethodMovingAverage
	}

	slope, intercept := linearFit(values)
	r2 := rSquared(values, slope, intercept)
	switch {
	case r2 > selectLinearRSquared && cv < selectLinearCV:
		return models.MethodLinear
	case cv < selectExponentialCV:
		return models.MethodExponential
	default:
		return models.MethodMovingAverage
	}
}

// Predict forecasts horizon steps (clamped to [1, MaxForecastHorizon]) using
// method, or an automatically selected method for MethodAuto.
func (f *Forecaster) Predict(series models.TimeSeries, horizon int, method models.ForecastMethod) models.ForecastResult {
	horizon = f.ClampHorizon(horizon)
	prepared := f.prepare(series)

	var result models.ForecastResult
	switch {
	case prepared.Len() < 2:
		result = f.degrade(series, prepared, horizon,
			fmt.Sprintf("%v: need at least 2 usable points, got %d", ErrInsufficientData, prepared.Len()))
	case method == models.MethodFallback:
		result = f.fallback.Build(prepared, horizon, "fallback requested")
	default:
		if method == models.MethodAuto || method == "" {
			method = selectMethod(prepared.Values())
		}
		strategy, ok := f.strategies[method]
		if !ok {
			result = f.degrade(series, prepared, horizon, fmt.Sprintf("%v: %q", models.ErrUnknownMethod, method))
			break
		}
		outcome := strategy.Run(prepared, horizon)
		r, ok := outcome.Result()
		switch {
		case !ok:
			result = f.degrade(series, prepared, horizon, outcome.Reason())
		case !resultFinite(r):
			result = f.degrade(series, prepared, horizon,
				fmt.Sprintf("%v: %s produced non-finite output", ErrNumericDegeneracy, method))
		default:
			result = r
		}
	}

	result.Indicator = series.Name
	result.MethodName = MethodDisplayName(result.Method)
	result.GeneratedAt = f.now().UTC()

	entry := f.logger.WithFields(logrus.Fields{
		"indicator": series.Name,
		"method":    result.Method,
		"horizon":   horizon,
		"points":    prepared.Len(),
	})
	if result.IsFallback() {
		entry.WithField("reason", result.Diagnostics.FallbackReason).Warn("Forecast degraded to fallback")
	} else {
		entry.Debug("Forecast generated")
	}
	return result
}

// degrade builds a fallback from the prepared series, or from the raw series
// when preparation left nothing usable.
func (f *Forecaster) degrade(raw, prepared models.TimeSeries, horizon int, reason string) models.ForecastResult {
	source := prepared
	if source.Len() == 0 {
		source = raw
	}
	return f.fallback.Build(source, horizon, reason)
}

func resultFinite(r models.ForecastResult) bool {
	return allFinite(r.Values) && allFinite(r.LowerBounds) && allFinite(r.UpperBounds) && allFinite(r.ConfidenceScores)
}
