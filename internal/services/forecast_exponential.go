package services

import (
	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/models"
)

const exponentialIntervalFactor = 2.0

// ExponentialStrategy is Holt double exponential smoothing (level and trend).
type ExponentialStrategy struct {
	config config.AnalyticsConfig
}

func NewExponentialStrategy(cfg config.AnalyticsConfig) *ExponentialStrategy {
	return &ExponentialStrategy{config: cfg}
}

func (s *ExponentialStrategy) Method() models.ForecastMethod { return models.MethodExponential }

func (s *ExponentialStrategy) ExposesRSquared() bool { return false }

func (s *ExponentialStrategy) Run(series models.TimeSeries, horizon int) StrategyOutcome {
	values := series.Values()
	n := len(values)
	if n < s.config.StrategyMinPoints || n < 2 {
		return fallbackf(ErrInsufficientData, "exponential smoothing needs %d points, got %d", s.config.StrategyMinPoints, n)
	}

	alpha, beta := s.config.SmoothingAlpha, s.config.SmoothingBeta
	level := values[0]
	slope := values[1] - values[0]

	oneStep := make([]float64, 0, n-1)
	for _, actual := range values[1:] {
		oneStep = append(oneStep, level+slope)

		prevLevel := level
		level = alpha*actual + (1-alpha)*(level+slope)
		slope = beta*(level-prevLevel) + (1-beta)*slope
	}
	errRMSE := rmse(values[1:], oneStep)

	forecast := make([]float64, horizon)
	for i := range forecast {
		forecast[i] = level + slope*float64(i+1)
	}
	lower, upper := symmetricBounds(forecast, func(i int) float64 {
		return errRMSE * exponentialIntervalFactor * (1 + 0.15*float64(i))
	})

	return Ok(models.ForecastResult{
		Method:           models.MethodExponential,
		Horizon:          horizon,
		Dates:            futureDates(lastTimestamp(series), horizon),
		Values:           forecast,
		LowerBounds:      lower,
		UpperBounds:      upper,
		ConfidenceScores: confidenceScores(s.config, s.config.BaseConfidenceExponential, horizon),
		Diagnostics: models.ForecastDiagnostics{
			RMSE: floatPtr(errRMSE),
			ModelParams: map[string]float64{
				"alpha":       alpha,
				"beta":        beta,
				"final_level": level,
				"final_trend": slope,
			},
		},
	})
}
