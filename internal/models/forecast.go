package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ForecastMethod is the closed set of forecasting strategies.
type ForecastMethod string

const (
	MethodLinear        ForecastMethod = "linear"
	MethodExponential   ForecastMethod = "exponential"
	MethodMovingAverage ForecastMethod = "moving_average"
	MethodFallback      ForecastMethod = "fallback"
	// MethodAuto asks the forecaster to choose a strategy from series statistics.
	MethodAuto ForecastMethod = "auto"
)

// ErrUnknownMethod is returned when a method name is not recognised.
var ErrUnknownMethod = errors.New("unknown forecast method")

// ParseForecastMethod maps a user-supplied name onto a ForecastMethod.
// An empty name means auto. Fallback cannot be requested directly.
func ParseForecastMethod(name string) (ForecastMethod, error) {
	switch ForecastMethod(strings.ToLower(strings.TrimSpace(name))) {
	case "", MethodAuto:
		return MethodAuto, nil
	case MethodLinear:
		return MethodLinear, nil
	case MethodExponential:
		return MethodExponential, nil
	case MethodMovingAverage:
		return MethodMovingAverage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
}

// ForecastDiagnostics carries fit statistics and strategy parameters.
// RMSE and RSquared are nil when the strategy does not produce them.
type ForecastDiagnostics struct {
	RMSE           *float64           `json:"rmse,omitempty"`
	RSquared       *float64           `json:"r_squared,omitempty"`
	ModelParams    map[string]float64 `json:"model_params,omitempty"`
	FallbackReason string             `json:"fallback_reason,omitempty"`
}

// ForecastResult is a horizon of predicted values with bounds and confidences.
// All per-step slices have length Horizon.
type ForecastResult struct {
	Indicator        string              `json:"indicator"`
	Method           ForecastMethod      `json:"method"`
	MethodName       string              `json:"method_name"`
	Horizon          int                 `json:"horizon"`
	Dates            []time.Time         `json:"dates"`
	Values           []float64           `json:"values"`
	LowerBounds      []float64           `json:"lower_bounds"`
	UpperBounds      []float64           `json:"upper_bounds"`
	ConfidenceScores []float64           `json:"confidence_scores"`
	Diagnostics      ForecastDiagnostics `json:"diagnostics"`
	GeneratedAt      time.Time           `json:"generated_at"`
}

// IsFallback reports whether the result came from the fallback strategy.
func (r ForecastResult) IsFallback() bool {
	return r.Method == MethodFallback
}

// MethodEvaluation pairs a strategy's forecast with its quality score.
type MethodEvaluation struct {
	Forecast ForecastResult `json:"forecast"`
	Quality  QualityScore   `json:"quality"`
}

// MethodComparison is the outcome of running every concrete strategy on one series.
type MethodComparison struct {
	ID             string                              `json:"id"`
	Indicator      string                              `json:"indicator"`
	PerMethod      map[ForecastMethod]MethodEvaluation `json:"per_method"`
	Ranking        []ForecastMethod                    `json:"ranking"`
	BestMethod     ForecastMethod                      `json:"best_method"`
	BestScore      float64                             `json:"best_score"`
	Recommendation string                              `json:"recommendation"`
	Summary        []string                            `json:"summary"`
}

// ForecastExplanation is a human-readable account of a forecast.
type ForecastExplanation struct {
	Method                ForecastMethod `json:"method"`
	Description           string         `json:"description"`
	Assumptions           []string       `json:"assumptions"`
	BestFor               string         `json:"best_for"`
	Limitations           []string       `json:"limitations"`
	ConfidenceExplanation string         `json:"confidence_explanation"`
	GeneralLimitations    []string       `json:"general_limitations"`
}

// ForecastReport pairs a forecast with its quality score and explanation.
type ForecastReport struct {
	Forecast    ForecastResult      `json:"forecast"`
	Quality     QualityScore        `json:"quality"`
	Explanation ForecastExplanation `json:"explanation"`
}
