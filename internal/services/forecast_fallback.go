package services

import (
	"math"
	"time"

	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/models"
)

// FallbackStrategy continues the last known value flat with wide bounds and
// a fixed low confidence. It always succeeds.
type FallbackStrategy struct {
	config config.AnalyticsConfig
	now    func() time.Time
}

func NewFallbackStrategy(cfg config.AnalyticsConfig, now func() time.Time) *FallbackStrategy {
	if now == nil {
		now = time.Now
	}
	return &FallbackStrategy{config: cfg, now: now}
}

func (s *FallbackStrategy) Method() models.ForecastMethod { return models.MethodFallback }

func (s *FallbackStrategy) ExposesRSquared() bool { return false }

func (s *FallbackStrategy) Run(series models.TimeSeries, horizon int) StrategyOutcome {
	return Ok(s.Build(series, horizon, "fallback requested"))
}

// Build produces the flat forecast and records reason in the diagnostics.
// The base value is the last finite observation, or zero for an empty series.
func (s *FallbackStrategy) Build(series models.TimeSeries, horizon int, reason string) models.ForecastResult {
	base := 0.0
	anchor := s.now()
	for i := series.Len() - 1; i >= 0; i-- {
		p := series.Points[i]
		if isFinite(p.Value) {
			base = p.Value
			anchor = p.Timestamp
			break
		}
	}

	band := s.config.FallbackBandFraction
	values := make([]float64, horizon)
	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	scores := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		values[i] = base
		a, b := base*(1-band), base*(1+band)
		lower[i] = math.Min(a, b)
		upper[i] = math.Max(a, b)
		scores[i] = s.config.BaseConfidenceFallback
	}

	return models.ForecastResult{
		Indicator:        series.Name,
		Method:           models.MethodFallback,
		Horizon:          horizon,
		Dates:            futureDates(anchor, horizon),
		Values:           values,
		LowerBounds:      lower,
		UpperBounds:      upper,
		ConfidenceScores: scores,
		Diagnostics: models.ForecastDiagnostics{
			ModelParams:    map[string]float64{"base_value": base},
			FallbackReason: reason,
		},
	}
}
