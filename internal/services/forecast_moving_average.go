package services

import (
	"math"

	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/models"
)

const (
	movingAverageIntervalFactor = 1.5
	movingAverageTrendDecay     = 0.1
	movingAverageMinWindow      = 3
	volatilityLookback          = 12
)

// MovingAverageStrategy forecasts from an exponentially weighted recent level
// plus a damped local trend.
type MovingAverageStrategy struct {
	config config.AnalyticsConfig
}

func NewMovingAverageStrategy(cfg config.AnalyticsConfig) *MovingAverageStrategy {
	return &MovingAverageStrategy{config: cfg}
}

func (s *MovingAverageStrategy) Method() models.ForecastMethod { return models.MethodMovingAverage }

func (s *MovingAverageStrategy) ExposesRSquared() bool { return false }

// window is a quarter of the history, at least three points and at most the configured maximum.
func (s *MovingAverageStrategy) window(n int) int {
	maxWindow := s.config.MovingAverageWindow
	if n < maxWindow {
		maxWindow = n
	}
	w := n / 4
	if w < movingAverageMinWindow {
		w = movingAverageMinWindow
	}
	if w > maxWindow {
		w = maxWindow
	}
	return w
}

func (s *MovingAverageStrategy) Run(series models.TimeSeries, horizon int) StrategyOutcome {
	values := series.Values()
	n := len(values)
	if n < s.config.StrategyMinPoints || n == 0 {
		return fallbackf(ErrInsufficientData, "moving average needs %d points, got %d", s.config.StrategyMinPoints, n)
	}

	alpha := s.config.MovingAverageAlpha
	window := s.window(n)
	recent := values[n-window:]

	// weight α(1-α)^j applies to the j-th most recent value, so the newest
	// observation carries α and older ones decay geometrically
	var level, weightSum float64
	for j := 0; j < window; j++ {
		w := alpha * math.Pow(1-alpha, float64(j))
		level += w * recent[window-1-j]
		weightSum += w
	}
	if weightSum == 0 {
		return fallbackf(ErrNumericDegeneracy, "moving average weights sum to zero")
	}
	level /= weightSum
	baseLevel := level

	slope, _ := linearFit(recent)

	lookback := volatilityLookback
	if n < lookback {
		lookback = n
	}
	volatility := calculatePopulationStdDev(values[n-lookback:])

	forecast := make([]float64, horizon)
	for i := range forecast {
		pred := level + slope*math.Exp(-movingAverageTrendDecay*float64(i))
		forecast[i] = pred
		level = alpha*pred + (1-alpha)*level
	}
	lower, upper := symmetricBounds(forecast, func(i int) float64 {
		return volatility * (1 + 0.25*float64(i)) * movingAverageIntervalFactor
	})

	return Ok(models.ForecastResult{
		Method:           models.MethodMovingAverage,
		Horizon:          horizon,
		Dates:            futureDates(lastTimestamp(series), horizon),
		Values:           forecast,
		LowerBounds:      lower,
		UpperBounds:      upper,
		ConfidenceScores: confidenceScores(s.config, s.config.BaseConfidenceMovingAverage, horizon),
		Diagnostics: models.ForecastDiagnostics{
			ModelParams: map[string]float64{
				"window_size": float64(window),
				"alpha":       alpha,
				"trend":       slope,
				"ma_value":    baseLevel,
				"volatility":  volatility,
			},
		},
	})
}
