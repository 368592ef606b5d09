package services

import (
	"fmt"
	"math"
	"sort"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/models"
)

const (
	// directionThresholdRatio scales volatility into the slope needed to call a trend.
	directionThresholdRatio = 0.1
	// flatThreshold replaces the volatility-based threshold for constant windows.
	flatThreshold         = 0.01
	strongCorrelation     = 0.7
	zScoreLimit           = 3.0
	modifiedZScoreLimit   = 3.5
	modifiedZScoreScale   = 0.6745
	iqrMinPoints          = 4
	degenerateIQRStdRange = 2.0
)

// TrendAnalyzer produces read-only diagnostics over cleaned series.
type TrendAnalyzer struct {
	config config.AnalyticsConfig
	logger *logrus.Logger
}

// NewTrendAnalyzer creates a trend analyzer. A nil logger uses the logrus standard logger.
func NewTrendAnalyzer(cfg config.AnalyticsConfig, logger *logrus.Logger) *TrendAnalyzer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TrendAnalyzer{config: cfg, logger: logger}
}

// AnalyzeTrend classifies the most recent window of the series. A window of
// zero or less uses the configured trend window.
func (ta *TrendAnalyzer) AnalyzeTrend(series models.TimeSeries, window int) models.TrendReport {
	if window <= 0 {
		window = ta.config.TrendWindow
	}

	recent := series.Tail(window)
	report := models.TrendReport{
		Indicator:  series.Name,
		PointCount: recent.Len(),
	}
	if recent.Len() > 0 {
		report.WindowStart = recent.Points[0].Timestamp
		report.WindowEnd = recent.Points[recent.Len()-1].Timestamp
		report.CurrentValue = recent.Points[recent.Len()-1].Value
	}

	if recent.Len() < ta.config.MinDataPoints {
		report.InsufficientData = true
		report.Direction = models.TrendStable
		report.Strength = models.StrengthStable
		report.Message = fmt.Sprintf("fewer than %d points available", ta.config.MinDataPoints)
		ta.logger.WithFields(logrus.Fields{
			"indicator": series.Name,
			"points":    recent.Len(),
			"required":  ta.config.MinDataPoints,
		}).Debug("Trend analysis skipped for short series")
		return report
	}

	values := recent.Values()
	slope, _ := linearFit(values)
	volatility := calculateStdDev(values)

	report.Slope = slope
	report.Volatility = volatility
	report.PctChange = percentChange(values[0], values[len(values)-1])
	report.Direction, report.Strength = classifyTrend(slope, volatility)
	report.Stats = describe(values)
	report.MovingAverage = ta.movingAverage(values)

	return report
}

// classifyTrend maps a slope onto a direction and strength relative to volatility.
func classifyTrend(slope, volatility float64) (models.TrendDirection, models.TrendStrength) {
	threshold := volatility * directionThresholdRatio
	if volatility <= 0 {
		threshold = flatThreshold
	}

	strength := models.StrengthModerate
	if math.Abs(slope) > 2*threshold {
		strength = models.StrengthStrong
	}

	switch {
	case slope > threshold:
		return models.TrendIncreasing, strength
	case slope < -threshold:
		return models.TrendDecreasing, strength
	default:
		return models.TrendStable, models.StrengthStable
	}
}

func percentChange(first, last float64) float64 {
	if first == 0 {
		return 0
	}
	return (last - first) / first * 100
}

func describe(values []float64) models.DescriptiveStats {
	lo, hi := minMax(values)
	return models.DescriptiveStats{
		Mean:   calculateMeanFloat64(values),
		Median: calculateMedian(values),
		Std:    calculateStdDev(values),
		Min:    lo,
		Max:    hi,
		Range:  hi - lo,
		Q25:    calculateQuantile(values, 0.25),
		Q75:    calculateQuantile(values, 0.75),
	}
}

// movingAverage returns the simple moving average overlay, or nil when the
// window is shorter than the period.
func (ta *TrendAnalyzer) movingAverage(values []float64) []float64 {
	period := ta.config.MovingAveragePeriod
	if period <= 0 || len(values) < period {
		return nil
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
}

// DetectOutliers flags anomalous observations and returns them ordered by
// descending deviation score. A factor of zero or less uses the configured
// outlier factor (only the iqr rule uses it).
func (ta *TrendAnalyzer) DetectOutliers(series models.TimeSeries, method models.OutlierMethod, factor float64) ([]models.OutlierRecord, error) {
	if factor <= 0 {
		factor = ta.config.OutlierFactor
	}
	if method == "" {
		method = models.OutlierIQR
	}

	var records []models.OutlierRecord
	switch method {
	case models.OutlierIQR:
		records = iqrOutliers(series, factor)
	case models.OutlierZScore:
		records = zScoreOutliers(series)
	case models.OutlierModifiedZScore:
		records = modifiedZScoreOutliers(series)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutlierMethod, method)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DeviationScore > records[j].DeviationScore
	})
	return records, nil
}

// iqrOutliers flags values outside the Tukey fences. When the interquartile
// range collapses the fences fall back to two standard deviations around the mean.
func iqrOutliers(series models.TimeSeries, factor float64) []models.OutlierRecord {
	if series.Len() < iqrMinPoints {
		return []models.OutlierRecord{}
	}
	values := series.Values()
	q1 := calculateQuantile(values, 0.25)
	q3 := calculateQuantile(values, 0.75)
	iqr := q3 - q1
	std := calculateStdDev(values)

	var lower, upper float64
	if iqr < nearZero {
		mean := calculateMeanFloat64(values)
		lower = mean - degenerateIQRStdRange*std
		upper = mean + degenerateIQRStdRange*std
	} else {
		lower = q1 - factor*iqr
		upper = q3 + factor*iqr
	}

	median := calculateMedian(values)
	return collectOutliers(series, lower, upper, func(v float64) float64 {
		if std <= nearZero {
			return 0
		}
		return math.Abs(v-median) / std
	})
}

func zScoreOutliers(series models.TimeSeries) []models.OutlierRecord {
	values := series.Values()
	std := calculateStdDev(values)
	if std <= 0 {
		return []models.OutlierRecord{}
	}
	mean := calculateMeanFloat64(values)
	lower := mean - zScoreLimit*std
	upper := mean + zScoreLimit*std
	return collectOutliers(series, lower, upper, func(v float64) float64 {
		return math.Abs(v-mean) / std
	})
}

func modifiedZScoreOutliers(series models.TimeSeries) []models.OutlierRecord {
	values := series.Values()
	median := calculateMedian(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - median)
	}
	mad := calculateMedian(deviations)
	if mad <= 0 {
		return []models.OutlierRecord{}
	}
	span := modifiedZScoreLimit * mad / modifiedZScoreScale
	return collectOutliers(series, median-span, median+span, func(v float64) float64 {
		return math.Abs(modifiedZScoreScale * (v - median) / mad)
	})
}

func collectOutliers(series models.TimeSeries, lower, upper float64, score func(float64) float64) []models.OutlierRecord {
	records := []models.OutlierRecord{}
	for _, p := range series.Points {
		if p.Value >= lower && p.Value <= upper {
			continue
		}
		kind := models.OutlierLow
		if p.Value > upper {
			kind = models.OutlierHigh
		}
		records = append(records, models.OutlierRecord{
			Timestamp:      p.Timestamp,
			Value:          p.Value,
			Kind:           kind,
			DeviationScore: score(p.Value),
			LowerBound:     lower,
			UpperBound:     upper,
		})
	}
	return records
}

// AnalyzeSeasonality compares the spread of calendar-month means with the
// spread of all values.
func (ta *TrendAnalyzer) AnalyzeSeasonality(series models.TimeSeries) models.SeasonalityReport {
	report := models.SeasonalityReport{Indicator: series.Name}
	if series.Len() < ta.config.SeasonalityMinPoints {
		report.InsufficientData = true
		report.Message = fmt.Sprintf("seasonality needs at least %d points", ta.config.SeasonalityMinPoints)
		return report
	}

	buckets := make(map[int][]float64, 12)
	for _, p := range series.Points {
		month := int(p.Timestamp.Month())
		buckets[month] = append(buckets[month], p.Value)
	}

	months := make([]int, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Ints(months)

	report.MonthlyMeans = make(map[int]float64, len(months))
	means := make([]float64, 0, len(months))
	for _, m := range months {
		mean := calculateMeanFloat64(buckets[m])
		report.MonthlyMeans[m] = mean
		means = append(means, mean)
	}

	total := calculateSampleVariance(series.Values())
	if total > 0 {
		report.Strength = clamp(calculateSampleVariance(means)/total, 0, 1)
	}

	if report.Strength > ta.config.SeasonalityThreshold {
		report.HasPattern = true
		peak, trough := months[0], months[0]
		for _, m := range months[1:] {
			if report.MonthlyMeans[m] > report.MonthlyMeans[peak] {
				peak = m
			}
			if report.MonthlyMeans[m] < report.MonthlyMeans[trough] {
				trough = m
			}
		}
		report.PeakPeriod = peak
		report.TroughPeriod = trough
		report.Message = fmt.Sprintf("seasonal pattern (peak month %d, trough month %d)", peak, trough)
	} else {
		report.Message = "weak or no seasonality"
	}
	return report
}

// CompareIndicators correlates the most recent CorrelationWindow values of
// each series. Windows of different length are paired on their latest
// observations. A threshold of zero or less uses the configured threshold.
func (ta *TrendAnalyzer) CompareIndicators(seriesByName map[string]models.TimeSeries, threshold float64) (models.CorrelationMatrix, error) {
	if threshold <= 0 {
		threshold = ta.config.CorrelationThreshold
	}

	windows := make(map[string][]float64, len(seriesByName))
	names := make([]string, 0, len(seriesByName))
	for name, s := range seriesByName {
		if s.Len() == 0 {
			continue
		}
		windows[name] = s.Tail(ta.config.CorrelationWindow).Values()
		names = append(names, name)
	}
	if len(names) < 2 {
		return models.CorrelationMatrix{}, fmt.Errorf("%w: need at least 2 non-empty series, got %d", ErrInsufficientData, len(names))
	}
	sort.Strings(names)

	matrix := make([][]float64, len(names))
	for i := range matrix {
		matrix[i] = make([]float64, len(names))
		matrix[i][i] = 1
	}

	pairs := []models.CorrelationPair{}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			x, y := alignLatest(windows[names[i]], windows[names[j]])
			corr := calculateCorrelation(x, y)
			matrix[i][j] = corr
			matrix[j][i] = corr

			if math.Abs(corr) <= threshold {
				continue
			}
			pair := models.CorrelationPair{
				IndicatorA:  names[i],
				IndicatorB:  names[j],
				Correlation: corr,
				Strength:    models.CorrelationModerate,
				Direction:   models.CorrelationPositive,
			}
			if math.Abs(corr) > strongCorrelation {
				pair.Strength = models.CorrelationStrong
			}
			if corr < 0 {
				pair.Direction = models.CorrelationNegative
			}
			pairs = append(pairs, pair)
		}
	}

	return models.CorrelationMatrix{
		Indicators: names,
		Matrix:     matrix,
		WindowSize: ta.config.CorrelationWindow,
		Pairs:      pairs,
		Threshold:  threshold,
	}, nil
}

func alignLatest(x, y []float64) ([]float64, []float64) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	return x[len(x)-n:], y[len(y)-n:]
}

// SummarizeTrends aggregates reports across indicators. Reports flagged as
// insufficient are counted in the total but not in the statistics.
func (ta *TrendAnalyzer) SummarizeTrends(reports []models.TrendReport) models.TrendSummary {
	summary := models.TrendSummary{
		TotalIndicators: len(reports),
		Distribution:    map[models.TrendDirection]int{},
	}

	var volatilities, changes []float64
	for _, r := range reports {
		if r.InsufficientData {
			continue
		}
		summary.ValidAnalyses++
		summary.Distribution[r.Direction]++
		volatilities = append(volatilities, r.Volatility)
		changes = append(changes, r.PctChange)
	}
	if summary.ValidAnalyses == 0 {
		return summary
	}

	summary.AvgVolatility = calculateMeanFloat64(volatilities)
	summary.AvgPctChange = calculateMeanFloat64(changes)

	// fixed order keeps ties deterministic
	best := 0
	for _, d := range []models.TrendDirection{models.TrendIncreasing, models.TrendDecreasing, models.TrendStable} {
		if summary.Distribution[d] > best {
			best = summary.Distribution[d]
			summary.MostCommonDirection = d
		}
	}
	return summary
}
