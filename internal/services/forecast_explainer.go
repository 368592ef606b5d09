package services

import (
	"fmt"

	"github.com/irfndi/econ-trends/internal/models"
)

type methodNarrative struct {
	description string
	assumptions []string
	bestFor     string
	limitations []string
}

var methodNarratives = map[models.ForecastMethod]methodNarrative{
	models.MethodLinear: {
		description: "Identifies a linear trend in the history and projects it forward",
		assumptions: []string{
			"The current trend continues",
			"No structural change in the series",
			"The historical pattern holds",
		},
		bestFor: "Series with a clear, roughly constant trend",
		limitations: []string{
			"Does not capture seasonality",
			"Sensitive to outliers",
			"Assumes a linear relationship over time",
		},
	},
	models.MethodExponential: {
		description: "Weighted average favouring recent data, tracking both level and trend",
		assumptions: []string{
			"Recent observations are more relevant than older ones",
			"The trend changes gradually",
		},
		bestFor: "Series with a variable trend that shifts gradually",
		limitations: []string{
			"Slow to react to abrupt changes",
			"Smoothing constants may need calibration",
		},
	},
	models.MethodMovingAverage: {
		description: "Average of recent values with decreasing weights and a damped local trend",
		assumptions: []string{
			"The near future resembles the recent past",
			"Changes are gradual",
		},
		bestFor: "Stable series or highly volatile ones without a clear trend",
		limitations: []string{
			"Reacts to changes rather than anticipating them",
			"Cannot predict turning points",
		},
	},
	models.MethodFallback: {
		description: "Flat continuation of the last known value with wide bounds",
		assumptions: []string{
			"No reliable pattern could be estimated from the data",
		},
		bestFor: "Very short or degenerate series",
		limitations: []string{
			"Ignores any trend",
			"Confidence is fixed and low",
		},
	},
}

var generalLimitations = []string{
	"Forecasts use historical data only",
	"Extraordinary events are not anticipated",
	"Past patterns are assumed to continue",
	"External economic factors are not modelled",
	"Precision decreases as the horizon grows",
}

// Explain describes how a forecast was produced and how far to trust it.
func (f *Forecaster) Explain(result models.ForecastResult) models.ForecastExplanation {
	narrative, ok := methodNarratives[result.Method]
	if !ok {
		narrative = methodNarratives[models.MethodFallback]
	}

	return models.ForecastExplanation{
		Method:                result.Method,
		Description:           narrative.description,
		Assumptions:           append([]string(nil), narrative.assumptions...),
		BestFor:               narrative.bestFor,
		Limitations:           append([]string(nil), narrative.limitations...),
		ConfidenceExplanation: f.confidenceExplanation(result),
		GeneralLimitations:    append([]string(nil), generalLimitations...),
	}
}

func (f *Forecaster) confidenceExplanation(result models.ForecastResult) string {
	avg := calculateMeanFloat64(result.ConfidenceScores)

	var level string
	switch {
	case avg > 0.7:
		level = "High confidence: the model fits the history well"
	case avg > 0.5:
		level = "Moderate confidence: treat the forecast as a reasonable estimate"
	case avg > 0.3:
		level = "Low confidence: use the forecast as a rough indication"
	default:
		level = "Very low confidence: the forecast is little more than the last value"
	}
	if result.IsFallback() {
		return fmt.Sprintf("%s (fixed at %.2f for every step).", level, avg)
	}
	return fmt.Sprintf("%s (average %.2f). Confidence decays by a rate of %.2f per step and never drops below %.2f.",
		level, avg, f.config.ConfidenceDecayRate, f.config.MinConfidence)
}
