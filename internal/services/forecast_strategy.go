package services

import (
	"fmt"
	"math"
	"time"

	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/models"
)

// ForecastStrategy is one forecasting technique. Implementations never panic
// on bad input; they return a Fallback outcome instead.
type ForecastStrategy interface {
	Method() models.ForecastMethod
	// ExposesRSquared reports whether results carry a meaningful R² diagnostic.
	ExposesRSquared() bool
	Run(series models.TimeSeries, horizon int) StrategyOutcome
}

// StrategyOutcome is either a forecast or the reason the strategy declined to produce one.
type StrategyOutcome struct {
	result models.ForecastResult
	reason string
	ok     bool
}

// Ok wraps a successful forecast.
func Ok(result models.ForecastResult) StrategyOutcome {
	return StrategyOutcome{result: result, ok: true}
}

// Fallback records why a strategy could not forecast.
func Fallback(reason string) StrategyOutcome {
	return StrategyOutcome{reason: reason}
}

func fallbackf(cause error, format string, args ...interface{}) StrategyOutcome {
	return Fallback(fmt.Sprintf("%v: %s", cause, fmt.Sprintf(format, args...)))
}

// Result returns the forecast and true for Ok outcomes.
func (o StrategyOutcome) Result() (models.ForecastResult, bool) {
	return o.result, o.ok
}

// Reason is the fallback reason, empty for Ok outcomes.
func (o StrategyOutcome) Reason() string {
	return o.reason
}

// confidenceScores decays base exponentially per step, floored at the configured minimum.
func confidenceScores(cfg config.AnalyticsConfig, base float64, horizon int) []float64 {
	scores := make([]float64, horizon)
	for i := range scores {
		scores[i] = math.Max(cfg.MinConfidence, base*math.Exp(-cfg.ConfidenceDecayRate*float64(i)))
	}
	return scores
}

// futureDates returns horizon monthly dates after last. Days past the end of
// a shorter month are clamped to its last day.
func futureDates(last time.Time, horizon int) []time.Time {
	dates := make([]time.Time, horizon)
	for i := range dates {
		dates[i] = addMonths(last, i+1)
	}
	return dates
}

func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)
	lastDay := target.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// symmetricBounds applies margin(i) around each value.
func symmetricBounds(values []float64, margin func(i int) float64) (lower, upper []float64) {
	lower = make([]float64, len(values))
	upper = make([]float64, len(values))
	for i, v := range values {
		m := margin(i)
		lower[i] = v - m
		upper[i] = v + m
	}
	return lower, upper
}

func lastTimestamp(series models.TimeSeries) time.Time {
	last, _ := series.Last()
	return last.Timestamp
}

func floatPtr(v float64) *float64 {
	return &v
}
