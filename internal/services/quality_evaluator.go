package services

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/models"
)

const (
	volumeMaxPoints      = 20.0
	fitMaxPoints         = 25.0
	volatilityMaxPoints  = 20.0
	robustnessMaxPoints  = 15.0
	consistencyMaxPoints = 20.0

	consistencyMinPoints = 6
)

var methodRobustness = map[models.ForecastMethod]float64{
	models.MethodLinear:        15,
	models.MethodExponential:   12,
	models.MethodMovingAverage: 8,
	models.MethodFallback:      3,
}

// QualityEvaluator scores forecasts against the series they were built from.
type QualityEvaluator struct {
	config     config.AnalyticsConfig
	forecaster *Forecaster
	logger     *logrus.Logger
}

// NewQualityEvaluator creates an evaluator. The forecaster supplies strategy
// capabilities and runs the strategies for CompareMethods.
func NewQualityEvaluator(cfg config.AnalyticsConfig, forecaster *Forecaster, logger *logrus.Logger) *QualityEvaluator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if forecaster == nil {
		forecaster = NewForecaster(cfg, logger)
	}
	return &QualityEvaluator{config: cfg, forecaster: forecaster, logger: logger}
}

// Evaluate rates forecast on a 0-100 scale from five weighted factors.
func (qe *QualityEvaluator) Evaluate(series models.TimeSeries, forecast models.ForecastResult) models.QualityScore {
	values := finiteValues(series.Values())
	if len(values) == 0 {
		return models.QualityScore{
			Score:       0,
			Reliability: models.ReliabilityVeryLow,
			MaxPoints:   volumeMaxPoints + fitMaxPoints + volatilityMaxPoints + robustnessMaxPoints + consistencyMaxPoints,
		}
	}

	factors := []models.QualityFactor{
		volumeFactor(len(values)),
		qe.fitFactor(forecast),
		volatilityFactor(values),
		robustnessFactor(forecast.Method),
		consistencyFactor(values),
	}

	var achieved, possible float64
	for _, f := range factors {
		achieved += f.Points
		possible += f.MaxPoints
	}
	score, _ := decimal.NewFromFloat(achieved / possible * 100).Round(1).Float64()

	return models.QualityScore{
		Score:          score,
		Reliability:    ReliabilityFor(score),
		Factors:        factors,
		AchievedPoints: achieved,
		MaxPoints:      possible,
	}
}

// ReliabilityFor grades a 0-100 quality score.
func ReliabilityFor(score float64) models.Reliability {
	switch {
	case score >= 80:
		return models.ReliabilityHigh
	case score >= 60:
		return models.ReliabilityModerate
	case score >= 40:
		return models.ReliabilityLow
	default:
		return models.ReliabilityVeryLow
	}
}

func volumeFactor(n int) models.QualityFactor {
	f := models.QualityFactor{Name: "data_volume", MaxPoints: volumeMaxPoints}
	switch {
	case n >= 24:
		f.Points, f.Description = 20, fmt.Sprintf("%d observations, ample history", n)
	case n >= 12:
		f.Points, f.Description = 15, fmt.Sprintf("%d observations, adequate history", n)
	default:
		f.Points, f.Description = 5, fmt.Sprintf("%d observations, limited history", n)
	}
	return f
}

func (qe *QualityEvaluator) fitFactor(forecast models.ForecastResult) models.QualityFactor {
	f := models.QualityFactor{Name: "model_fit", MaxPoints: fitMaxPoints, Points: 5}

	strategy, ok := qe.forecaster.Strategy(forecast.Method)
	if !ok || !strategy.ExposesRSquared() || forecast.Diagnostics.RSquared == nil {
		f.Description = "method does not report R²"
		return f
	}

	r2 := *forecast.Diagnostics.RSquared
	switch {
	case r2 > 0.7:
		f.Points = 25
	case r2 > 0.5:
		f.Points = 18
	case r2 > 0.3:
		f.Points = 10
	}
	f.Description = fmt.Sprintf("R² = %.3f", r2)
	return f
}

func volatilityFactor(values []float64) models.QualityFactor {
	f := models.QualityFactor{Name: "volatility", MaxPoints: volatilityMaxPoints}

	cvPct := 100.0
	if calculateMeanFloat64(values) != 0 {
		cvPct = coefficientOfVariation(values) * 100
	}
	switch {
	case cvPct < 10:
		f.Points = 20
	case cvPct < 25:
		f.Points = 15
	case cvPct < 50:
		f.Points = 8
	default:
		f.Points = 3
	}
	f.Description = fmt.Sprintf("coefficient of variation %.1f%%", cvPct)
	return f
}

func robustnessFactor(method models.ForecastMethod) models.QualityFactor {
	return models.QualityFactor{
		Name:        "method_robustness",
		Points:      methodRobustness[method],
		MaxPoints:   robustnessMaxPoints,
		Description: MethodDisplayName(method),
	}
}

// consistencyFactor compares the slopes of the two halves of the series.
func consistencyFactor(values []float64) models.QualityFactor {
	f := models.QualityFactor{Name: "trend_consistency", MaxPoints: consistencyMaxPoints}
	if len(values) < consistencyMinPoints {
		f.Points, f.Description = 10, "too few points to compare halves"
		return f
	}

	mid := len(values) / 2
	first, _ := linearFit(values[:mid])
	second, _ := linearFit(values[mid:])

	switch {
	case sameSign(first, second) && math.Abs(first) > nearZero && math.Abs(second) > nearZero:
		f.Points, f.Description = 20, "both halves trend the same way"
	case math.Abs(first) < nearZero && math.Abs(second) < nearZero:
		f.Points, f.Description = 15, "both halves are flat"
	default:
		f.Points, f.Description = 8, "trend changes between halves"
	}
	return f
}

// CompareMethods forecasts with every concrete strategy, scores each and
// ranks them. Ties keep the order of ConcreteMethods.
func (qe *QualityEvaluator) CompareMethods(series models.TimeSeries, horizon int) models.MethodComparison {
	comparison := models.MethodComparison{
		ID:        uuid.NewString(),
		Indicator: series.Name,
		PerMethod: make(map[models.ForecastMethod]models.MethodEvaluation, len(ConcreteMethods())),
	}

	methods := ConcreteMethods()
	allFallback := true
	for _, m := range methods {
		fc := qe.forecaster.Predict(series, horizon, m)
		if !fc.IsFallback() {
			allFallback = false
		}
		comparison.PerMethod[m] = models.MethodEvaluation{
			Forecast: fc,
			Quality:  qe.Evaluate(series, fc),
		}
	}

	ranking := append([]models.ForecastMethod(nil), methods...)
	sort.SliceStable(ranking, func(i, j int) bool {
		return comparison.PerMethod[ranking[i]].Quality.Score > comparison.PerMethod[ranking[j]].Quality.Score
	})
	comparison.Ranking = ranking
	comparison.BestMethod = ranking[0]
	comparison.BestScore = comparison.PerMethod[ranking[0]].Quality.Score

	if allFallback {
		comparison.Recommendation = "Insufficient data for a reliable recommendation; every method fell back to a flat forecast"
	} else {
		comparison.Recommendation = recommendation(comparison.BestMethod, comparison.BestScore)
	}
	comparison.Summary = comparisonSummary(ranking, comparison.PerMethod)

	qe.logger.WithFields(logrus.Fields{
		"indicator":   series.Name,
		"best_method": comparison.BestMethod,
		"best_score":  comparison.BestScore,
	}).Debug("Forecast methods compared")
	return comparison
}

func recommendation(method models.ForecastMethod, score float64) string {
	name := MethodDisplayName(method)
	switch {
	case score >= 80:
		return fmt.Sprintf("%s is recommended with high quality (score %.1f): excellent fit", name, score)
	case score >= 60:
		return fmt.Sprintf("%s is recommended with moderate quality (score %.1f): adequate, monitor accuracy", name, score)
	default:
		return fmt.Sprintf("%s scored best with low quality (score %.1f): use with caution, collect more data", name, score)
	}
}

func comparisonSummary(ranking []models.ForecastMethod, evals map[models.ForecastMethod]models.MethodEvaluation) []string {
	lines := make([]string, 0, len(ranking))
	for i, m := range ranking {
		score := evals[m].Quality.Score
		var verdict string
		switch {
		case i == 0:
			verdict = "best performance"
		case score >= 60:
			verdict = "good alternative"
		case score >= 40:
			verdict = "adequate with limitations"
		default:
			verdict = "not recommended"
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %.1f (%s)", i+1, MethodDisplayName(m), score, verdict))
	}
	return lines
}

func finiteValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
