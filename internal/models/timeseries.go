package models

import (
	"sort"
	"time"
)

// Observation is a single value recorded for a period.
type Observation struct {
	Timestamp time.Time `json:"timestamp" db:"observed_at"`
	Value     float64   `json:"value" db:"value"`
}

// TimeSeries is an ordered sequence of observations for one indicator.
// Operations in the analytics engine treat it as a value and never mutate
// the caller's Points slice.
type TimeSeries struct {
	Name   string        `json:"name"`
	Points []Observation `json:"points"`
}

// IndicatorStats describes the stored history of one indicator.
type IndicatorStats struct {
	Indicator        string    `json:"indicator" db:"indicator"`
	Count            int64     `json:"count" db:"observations"`
	FirstObservation time.Time `json:"first_observation" db:"first_observed_at"`
	LastObservation  time.Time `json:"last_observation" db:"last_observed_at"`
}

// RawObservation is an uncoerced observation as delivered by collaborators
// (CSV rows, request bodies).
type RawObservation struct {
	Date  string `json:"date" binding:"required"`
	Value string `json:"value"`
}

// ForecastRequest is the body accepted by the ad-hoc forecast endpoint.
type ForecastRequest struct {
	Name         string           `json:"name" binding:"required"`
	Observations []RawObservation `json:"observations" binding:"required"`
	Horizon      int              `json:"horizon"`
	Method       string           `json:"method"`
}

// NewTimeSeries builds a series from parallel timestamp/value slices.
// Extra entries in the longer slice are ignored.
func NewTimeSeries(name string, timestamps []time.Time, values []float64) TimeSeries {
	n := len(timestamps)
	if len(values) < n {
		n = len(values)
	}
	points := make([]Observation, n)
	for i := 0; i < n; i++ {
		points[i] = Observation{Timestamp: timestamps[i], Value: values[i]}
	}
	return TimeSeries{Name: name, Points: points}
}

// Len returns the number of observations.
func (ts TimeSeries) Len() int {
	return len(ts.Points)
}

// Values returns a copy of the observation values in order.
func (ts TimeSeries) Values() []float64 {
	out := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		out[i] = p.Value
	}
	return out
}

// Clone returns a deep copy of the series.
func (ts TimeSeries) Clone() TimeSeries {
	points := make([]Observation, len(ts.Points))
	copy(points, ts.Points)
	return TimeSeries{Name: ts.Name, Points: points}
}

// Tail returns a copy of the last n observations (all of them when n >= Len).
func (ts TimeSeries) Tail(n int) TimeSeries {
	if n <= 0 {
		return TimeSeries{Name: ts.Name, Points: []Observation{}}
	}
	if n >= len(ts.Points) {
		return ts.Clone()
	}
	points := make([]Observation, n)
	copy(points, ts.Points[len(ts.Points)-n:])
	return TimeSeries{Name: ts.Name, Points: points}
}

// Last returns the most recent observation and false when the series is empty.
func (ts TimeSeries) Last() (Observation, bool) {
	if len(ts.Points) == 0 {
		return Observation{}, false
	}
	return ts.Points[len(ts.Points)-1], true
}

// IsSorted reports whether timestamps are strictly increasing.
func (ts TimeSeries) IsSorted() bool {
	return sort.SliceIsSorted(ts.Points, func(i, j int) bool {
		return ts.Points[i].Timestamp.Before(ts.Points[j].Timestamp)
	}) && !hasDuplicateTimestamps(ts.Points)
}

func hasDuplicateTimestamps(points []Observation) bool {
	for i := 1; i < len(points); i++ {
		if points[i].Timestamp.Equal(points[i-1].Timestamp) {
			return true
		}
	}
	return false
}
