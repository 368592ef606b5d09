package models

import "time"

// TrendDirection is the qualitative direction of a series over a window.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// TrendStrength grades how far the slope exceeds the noise threshold.
type TrendStrength string

const (
	StrengthStrong   TrendStrength = "strong"
	StrengthModerate TrendStrength = "moderate"
	StrengthStable   TrendStrength = "stable"
)

// DescriptiveStats summarises the values of an analysis window.
type DescriptiveStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Range  float64 `json:"range"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
}

// TrendReport is the result of a trend analysis over the most recent window.
type TrendReport struct {
	Indicator        string           `json:"indicator"`
	Direction        TrendDirection   `json:"direction"`
	Strength         TrendStrength    `json:"strength"`
	Slope            float64          `json:"slope"`
	Volatility       float64          `json:"volatility"`
	PctChange        float64          `json:"pct_change"`
	CurrentValue     float64          `json:"current_value"`
	WindowStart      time.Time        `json:"window_start"`
	WindowEnd        time.Time        `json:"window_end"`
	PointCount       int              `json:"point_count"`
	Stats            DescriptiveStats `json:"stats"`
	MovingAverage    []float64        `json:"moving_average,omitempty"`
	InsufficientData bool             `json:"insufficient_data"`
	Message          string           `json:"message,omitempty"`
}

// OutlierKind tells whether an outlier lies above or below the typical range.
type OutlierKind string

const (
	OutlierHigh OutlierKind = "high"
	OutlierLow  OutlierKind = "low"
)

// OutlierMethod selects the detection rule.
type OutlierMethod string

const (
	OutlierIQR            OutlierMethod = "iqr"
	OutlierZScore         OutlierMethod = "zscore"
	OutlierModifiedZScore OutlierMethod = "modified_zscore"
)

// OutlierRecord is one anomalous observation.
type OutlierRecord struct {
	Timestamp      time.Time   `json:"timestamp"`
	Value          float64     `json:"value"`
	Kind           OutlierKind `json:"kind"`
	DeviationScore float64     `json:"deviation_score"`
	LowerBound     float64     `json:"lower_bound"`
	UpperBound     float64     `json:"upper_bound"`
}

// SeasonalityReport describes a calendar-month pattern, if any.
type SeasonalityReport struct {
	Indicator        string          `json:"indicator"`
	HasPattern       bool            `json:"has_pattern"`
	Strength         float64         `json:"strength"`
	PeakPeriod       int             `json:"peak_period,omitempty"`
	TroughPeriod     int             `json:"trough_period,omitempty"`
	MonthlyMeans     map[int]float64 `json:"monthly_means,omitempty"`
	InsufficientData bool            `json:"insufficient_data"`
	Message          string          `json:"message,omitempty"`
}

// CorrelationStrength grades a reported correlation pair.
type CorrelationStrength string

const (
	CorrelationStrong   CorrelationStrength = "strong"
	CorrelationModerate CorrelationStrength = "moderate"
)

// CorrelationDirection is the sign of a correlation.
type CorrelationDirection string

const (
	CorrelationPositive CorrelationDirection = "positive"
	CorrelationNegative CorrelationDirection = "negative"
)

// CorrelationPair is a pair of indicators whose correlation passed the threshold.
type CorrelationPair struct {
	IndicatorA  string               `json:"indicator_a"`
	IndicatorB  string               `json:"indicator_b"`
	Correlation float64              `json:"correlation"`
	Strength    CorrelationStrength  `json:"strength"`
	Direction   CorrelationDirection `json:"direction"`
}

// CorrelationMatrix holds pairwise Pearson correlations of aligned recent windows.
type CorrelationMatrix struct {
	Indicators []string          `json:"indicators"`
	Matrix     [][]float64       `json:"matrix"`
	WindowSize int               `json:"window_size"`
	Pairs      []CorrelationPair `json:"pairs"`
	Threshold  float64           `json:"threshold"`
}

// Get returns the correlation between two indicators and whether both exist.
func (m CorrelationMatrix) Get(a, b string) (float64, bool) {
	ia, ib := -1, -1
	for i, name := range m.Indicators {
		if name == a {
			ia = i
		}
		if name == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return 0, false
	}
	return m.Matrix[ia][ib], true
}

// TrendSummary aggregates trend reports across indicators.
type TrendSummary struct {
	TotalIndicators     int                    `json:"total_indicators"`
	ValidAnalyses       int                    `json:"valid_analyses"`
	Distribution        map[TrendDirection]int `json:"distribution"`
	AvgVolatility       float64                `json:"avg_volatility"`
	AvgPctChange        float64                `json:"avg_pct_change"`
	MostCommonDirection TrendDirection         `json:"most_common_direction,omitempty"`
}

// TrendOverview is the result of analysing several indicators at once.
// Failed maps an indicator to the reason it could not be analysed.
type TrendOverview struct {
	Reports []TrendReport     `json:"reports"`
	Summary TrendSummary      `json:"summary"`
	Failed  map[string]string `json:"failed,omitempty"`
}
