package services

import (
	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/models"
)

const linearIntervalFactor = 1.96

// LinearStrategy extends a least-squares line fitted on the older part of the
// series and scores it on the most recent part.
type LinearStrategy struct {
	config config.AnalyticsConfig
}

func NewLinearStrategy(cfg config.AnalyticsConfig) *LinearStrategy {
	return &LinearStrategy{config: cfg}
}

func (s *LinearStrategy) Method() models.ForecastMethod { return models.MethodLinear }

func (s *LinearStrategy) ExposesRSquared() bool { return true }

func (s *LinearStrategy) Run(series models.TimeSeries, horizon int) StrategyOutcome {
	values := series.Values()
	n := len(values)
	if n < s.config.StrategyMinPoints {
		return fallbackf(ErrInsufficientData, "linear needs %d points, got %d", s.config.StrategyMinPoints, n)
	}

	split := int(float64(n) * s.config.TrainRatio)
	if split < 1 {
		split = 1
	}
	if split < 2 {
		return fallbackf(ErrNumericDegeneracy, "training split of %d point cannot fit a line", split)
	}

	train := values[:split]
	slope, intercept := linearFit(train)

	var errRMSE float64
	if split < n {
		predicted := make([]float64, 0, n-split)
		for x := split; x < n; x++ {
			predicted = append(predicted, slope*float64(x)+intercept)
		}
		errRMSE = rmse(values[split:], predicted)
	} else {
		predicted := make([]float64, split)
		for x := range predicted {
			predicted[x] = slope*float64(x) + intercept
		}
		errRMSE = rmse(train, predicted)
	}

	r2 := rSquared(values, slope, intercept)

	forecast := make([]float64, horizon)
	for i := range forecast {
		forecast[i] = slope*float64(n+i) + intercept
	}
	lower, upper := symmetricBounds(forecast, func(i int) float64 {
		return errRMSE * linearIntervalFactor * (1 + 0.15*float64(i))
	})

	return Ok(models.ForecastResult{
		Method:           models.MethodLinear,
		Horizon:          horizon,
		Dates:            futureDates(lastTimestamp(series), horizon),
		Values:           forecast,
		LowerBounds:      lower,
		UpperBounds:      upper,
		ConfidenceScores: confidenceScores(s.config, r2, horizon),
		Diagnostics: models.ForecastDiagnostics{
			RMSE:     floatPtr(errRMSE),
			RSquared: floatPtr(r2),
			ModelParams: map[string]float64{
				"slope":      slope,
				"intercept":  intercept,
				"train_size": float64(split),
			},
		},
	})
}
