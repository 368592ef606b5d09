package services

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/models"
)

// Accepted date layouts for raw observations, tried in order.
var observationDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"02/01/2006",
}

// SeriesPreparer validates raw observations and cleans series before analysis.
type SeriesPreparer struct {
	config config.AnalyticsConfig
}

// NewSeriesPreparer creates a preparer bound to the given analytics settings.
func NewSeriesPreparer(cfg config.AnalyticsConfig) *SeriesPreparer {
	return &SeriesPreparer{config: cfg}
}

// Validate checks that raw observations form a usable series: at least two
// entries, every date parseable and every value numeric or blank.
func (sp *SeriesPreparer) Validate(raw []models.RawObservation) error {
	if len(raw) == 0 {
		return newInvalidSeriesError(-1, "no observations")
	}
	if len(raw) < 2 {
		return newInvalidSeriesError(-1, "need at least 2 observations, got %d", len(raw))
	}
	for i, obs := range raw {
		if _, err := parseObservationDate(obs.Date); err != nil {
			return newInvalidSeriesError(i, "unparseable date %q", obs.Date)
		}
		if _, err := parseObservationValue(obs.Value); err != nil {
			return newInvalidSeriesError(i, "non-numeric value %q", obs.Value)
		}
	}
	return nil
}

// IsValid is the boolean form of Validate.
func (sp *SeriesPreparer) IsValid(raw []models.RawObservation) bool {
	return sp.Validate(raw) == nil
}

// Parse validates and coerces raw observations. Blank or null values become
// NaN and are removed later by Clean.
func (sp *SeriesPreparer) Parse(name string, raw []models.RawObservation) (models.TimeSeries, error) {
	if err := sp.Validate(raw); err != nil {
		return models.TimeSeries{}, err
	}
	points := make([]models.Observation, len(raw))
	for i, obs := range raw {
		ts, _ := parseObservationDate(obs.Date)
		v, _ := parseObservationValue(obs.Value)
		points[i] = models.Observation{Timestamp: ts, Value: v}
	}
	return models.TimeSeries{Name: name, Points: points}, nil
}

// Normalize deduplicates timestamps keeping the last occurrence, sorts
// chronologically and drops non-finite values.
func (sp *SeriesPreparer) Normalize(series models.TimeSeries) models.TimeSeries {
	latest := make(map[int64]int, len(series.Points))
	for i, p := range series.Points {
		latest[p.Timestamp.UnixNano()] = i
	}

	points := make([]models.Observation, 0, len(latest))
	for i, p := range series.Points {
		if latest[p.Timestamp.UnixNano()] != i || !isFinite(p.Value) {
			continue
		}
		points = append(points, p)
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return models.TimeSeries{Name: series.Name, Points: points}
}

// Clean normalizes the series and, when at least six points remain, drops
// values CleanOutlierSigma sample standard deviations or more from the mean.
// The sigma filter is repeated until nothing more is removed, so
// Clean(Clean(s)) equals Clean(s).
func (sp *SeriesPreparer) Clean(series models.TimeSeries) models.TimeSeries {
	points := sp.Normalize(series).Points
	for len(points) > 5 {
		filtered := filterSigma(points, sp.config.CleanOutlierSigma)
		if len(filtered) == len(points) {
			break
		}
		points = filtered
	}
	return models.TimeSeries{Name: series.Name, Points: points}
}

// filterSigma keeps points strictly within sigma sample standard deviations of the mean.
func filterSigma(points []models.Observation, sigma float64) []models.Observation {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	std := calculateStdDev(values)
	if std <= 0 {
		return points
	}
	mean := calculateMeanFloat64(values)
	out := make([]models.Observation, 0, len(points))
	for _, p := range points {
		if math.Abs(p.Value-mean) < sigma*std {
			out = append(out, p)
		}
	}
	return out
}

// FilterRecent keeps the observations from the last months months before asOf.
// If the window would be empty the series is returned unchanged.
func (sp *SeriesPreparer) FilterRecent(series models.TimeSeries, months int, asOf time.Time) models.TimeSeries {
	if months <= 0 {
		return series.Clone()
	}
	cutoff := asOf.AddDate(0, -months, 0)
	points := make([]models.Observation, 0, len(series.Points))
	for _, p := range series.Points {
		if !p.Timestamp.Before(cutoff) {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return series.Clone()
	}
	return models.TimeSeries{Name: series.Name, Points: points}
}

// DataQuality scores completeness (share of non-missing values), consistency
// (penalised coefficient of variation) and validity (share inside a 3x IQR
// band). The overall score weights them 0.4, 0.3 and 0.3.
func (sp *SeriesPreparer) DataQuality(series models.TimeSeries) models.DataQuality {
	if series.Len() == 0 {
		return models.DataQuality{}
	}

	values := make([]float64, 0, series.Len())
	for _, p := range series.Points {
		if !math.IsNaN(p.Value) {
			values = append(values, p.Value)
		}
	}
	completeness := float64(len(values)) / float64(series.Len()) * 100

	consistency := 50.0
	std := calculateStdDev(values)
	mean := calculateMeanFloat64(values)
	if std > 0 && mean != 0 {
		cv := std / math.Abs(mean)
		consistency = math.Max(0, 100-cv*10)
	}

	validity := 100.0
	q1 := calculateQuantile(values, 0.25)
	q3 := calculateQuantile(values, 0.75)
	if iqr := q3 - q1; iqr > 0 && len(values) > 0 {
		lower, upper := q1-3*iqr, q3+3*iqr
		valid := 0
		for _, v := range values {
			if v >= lower && v <= upper {
				valid++
			}
		}
		validity = float64(valid) / float64(len(values)) * 100
	}

	overall := completeness*0.4 + consistency*0.3 + validity*0.3

	return models.DataQuality{
		Completeness: roundTo(completeness, 2),
		Consistency:  roundTo(consistency, 2),
		Validity:     roundTo(validity, 2),
		OverallScore: roundTo(overall, 2),
	}
}

// Summarize describes a series: count, covered period, moments and its data quality.
func (sp *SeriesPreparer) Summarize(series models.TimeSeries) models.DataSummary {
	summary := models.DataSummary{Indicator: series.Name}
	if series.Len() == 0 {
		return summary
	}

	values := series.Values()
	lo, hi := minMax(values)
	summary.Count = series.Len()
	summary.PeriodStart = series.Points[0].Timestamp
	summary.PeriodEnd = series.Points[series.Len()-1].Timestamp
	summary.Mean = roundTo(calculateMeanFloat64(values), 3)
	summary.Std = roundTo(calculateStdDev(values), 3)
	summary.Min = roundTo(lo, 3)
	summary.Max = roundTo(hi, 3)
	summary.QualityScore = sp.DataQuality(series).OverallScore
	return summary
}

func parseObservationDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range observationDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func parseObservationValue(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "", "null", "nan", "none":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// roundTo rounds half away from zero at the given number of decimal places.
func roundTo(v float64, places int32) float64 {
	if !isFinite(v) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
