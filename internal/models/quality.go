package models

import "time"

// Reliability grades a quality score.
type Reliability string

const (
	ReliabilityHigh     Reliability = "high"
	ReliabilityModerate Reliability = "moderate"
	ReliabilityLow      Reliability = "low"
	ReliabilityVeryLow  Reliability = "very_low"
)

// QualityFactor is one scored component of a forecast quality assessment.
type QualityFactor struct {
	Name        string  `json:"name"`
	Points      float64 `json:"points"`
	MaxPoints   float64 `json:"max_points"`
	Description string  `json:"description"`
}

// QualityScore rates a forecast on a 0-100 scale.
type QualityScore struct {
	Score          float64         `json:"score"`
	Reliability    Reliability     `json:"reliability"`
	Factors        []QualityFactor `json:"factors"`
	AchievedPoints float64         `json:"achieved_points"`
	MaxPoints      float64         `json:"max_points"`
}

// DataQuality rates the input series itself, each component 0-100.
type DataQuality struct {
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
	Validity     float64 `json:"validity"`
	OverallScore float64 `json:"overall_score"`
}

// DataSummary describes a series for display.
type DataSummary struct {
	Indicator    string    `json:"indicator"`
	Count        int       `json:"count"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	Mean         float64   `json:"mean"`
	Std          float64   `json:"std"`
	Min          float64   `json:"min"`
	Max          float64   `json:"max"`
	QualityScore float64   `json:"quality_score"`
}

// SeriesOverview is the summary endpoint payload.
type SeriesOverview struct {
	Summary     DataSummary `json:"summary"`
	DataQuality DataQuality `json:"data_quality"`
}
