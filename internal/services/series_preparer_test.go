package services

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/econ-trends/internal/models"
)

func TestSeriesPreparer_Validate(t *testing.T) {
	sp := NewSeriesPreparer(testConfig())

	tests := []struct {
		name    string
		raw     []models.RawObservation
		wantErr bool
		index   int
	}{
		{name: "empty", raw: nil, wantErr: true, index: -1},
		{name: "single observation", raw: []models.RawObservation{{Date: "2024-01-01", Value: "1"}}, wantErr: true, index: -1},
		{name: "bad date", raw: []models.RawObservation{{Date: "2024-01-01", Value: "1"}, {Date: "yesterday", Value: "2"}}, wantErr: true, index: 1},
		{name: "bad value", raw: []models.RawObservation{{Date: "2024-01-01", Value: "abc"}, {Date: "2024-02-01", Value: "2"}}, wantErr: true, index: 0},
		{name: "valid with blank value", raw: []models.RawObservation{{Date: "2024-01", Value: "1.5"}, {Date: "2024-02", Value: ""}}},
		{name: "mixed layouts", raw: []models.RawObservation{{Date: "2024-01-01T00:00:00Z", Value: "1"}, {Date: "01/02/2024", Value: "null"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sp.Validate(tt.raw)
			if !tt.wantErr {
				assert.NoError(t, err)
				assert.True(t, sp.IsValid(tt.raw))
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSeries))
			var invalid *InvalidSeriesError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.index, invalid.Index)
			assert.False(t, sp.IsValid(tt.raw))
		})
	}
}

func TestSeriesPreparer_Parse(t *testing.T) {
	sp := NewSeriesPreparer(testConfig())

	series, err := sp.Parse("cpi", []models.RawObservation{
		{Date: "2024-01-01", Value: " 3.1 "},
		{Date: "2024-02-01", Value: "NaN"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cpi", series.Name)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, 3.1, series.Points[0].Value)
	assert.True(t, math.IsNaN(series.Points[1].Value))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), series.Points[1].Timestamp)
}

func TestSeriesPreparer_Clean_DedupesSortsAndDropsNonFinite(t *testing.T) {
	sp := NewSeriesPreparer(testConfig())
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := jan.AddDate(0, 1, 0)
	mar := jan.AddDate(0, 2, 0)

	input := models.TimeSeries{Name: "x", Points: []models.Observation{
		{Timestamp: mar, Value: 3},
		{Timestamp: jan, Value: 1},
		{Timestamp: feb, Value: 99},
		{Timestamp: feb, Value: 2},
		{Timestamp: mar.AddDate(0, 1, 0), Value: math.Inf(1)},
		{Timestamp: mar.AddDate(0, 2, 0), Value: math.NaN()},
	}}
	original := input.Clone()

	cleaned := sp.Clean(input)

	require.Equal(t, 3, cleaned.Len())
	assert.Equal(t, []float64{1, 2, 3}, cleaned.Values())
	assert.True(t, cleaned.IsSorted())
	// caller's slice is untouched
	assert.Equal(t, original.Points[0], input.Points[0])
	assert.Equal(t, 6, input.Len())
}

func TestSeriesPreparer_Clean_SigmaFilter(t *testing.T) {
	sp := NewSeriesPreparer(testConfig())

	// a single point can only sit 10 sample deviations out in a long series
	values := constantValues(150, 10)
	for i := range values {
		values[i] += float64(i%2) * 0.1
	}
	values[20] = 1e9

	cleaned := sp.Clean(monthlySeries("x", values...))

	assert.Equal(t, 149, cleaned.Len())
	for _, v := range cleaned.Values() {
		assert.Less(t, v, 100.0)
	}
}

func TestSeriesPreparer_Clean_SmallSeriesSkipsSigmaFilter(t *testing.T) {
	sp := NewSeriesPreparer(testConfig())

	cleaned := sp.Clean(monthlySeries("x", 1, 2, 3, 4, 1e12))
	assert.Equal(t, 5, cleaned.Len())
}

func TestSeriesPreparer_Clean_Idempotent(t *testing.T) {
	sp := NewSeriesPreparer(testConfig())

	inputs := []models.TimeSeries{
		monthlySeries("empty"),
		monthlySeries("linear", linearValues(30, 100, 2)...),
		monthlySeries("spiky", append(noisyValues(50, 100, 1), 1e6, 1e5, -1e5)...),
		monthlySeries("constant", constantValues(12, 4)...),
		monthlySeries("nested spikes", append(noisyValues(200, 100, 1), 1e6, 1e4)...),
	}

	for _, in := range inputs {
		t.Run(in.Name, func(t *testing.T) {
			once := sp.Clean(in)
			twice := sp.Clean(once)
			assert.Equal(t, once, twice)
		})
	}
}

func TestSeriesPreparer_Clean_RepeatsSigmaFilter(t *testing.T) {
	sp := NewSeriesPreparer(testConfig())
	// 1e4 only stands out once 1e6 is gone
	series := monthlySeries("x", append(noisyValues(200, 100, 1), 1e6, 1e4)...)

	cleaned := sp.Clean(series)

	assert.Equal(t, 200, cleaned.Len())
	_, hi := minMax(cleaned.Values())
	assert.LessOrEqual(t, hi, 103.0)
}

func TestSeriesPreparer_FilterRecent(t *testing.T) {
	sp := NewSeriesPreparer(testConfig())
	series := monthlySeries("x", linearValues(24, 1, 1)...)
	asOf := fixtureStart.AddDate(0, 23, 0)

	recent := sp.FilterRecent(series, 6, asOf)
	assert.Equal(t, 7, recent.Len())
	assert.Equal(t, 24.0, recent.Values()[6])

	// window before the data falls back to the full series
	old := sp.FilterRecent(series, 1, fixtureStart.AddDate(10, 0, 0))
	assert.Equal(t, 24, old.Len())

	assert.Equal(t, 24, sp.FilterRecent(series, 0, asOf).Len())
}

func TestSeriesPreparer_DataQuality(t *testing.T) {
	sp := NewSeriesPreparer(testConfig())

	assert.Equal(t, models.DataQuality{}, sp.DataQuality(monthlySeries("empty")))

	constant := sp.DataQuality(monthlySeries("c", constantValues(10, 5)...))
	assert.Equal(t, 100.0, constant.Completeness)
	assert.Equal(t, 50.0, constant.Consistency)
	assert.Equal(t, 100.0, constant.Validity)
	assert.Equal(t, 85.0, constant.OverallScore)

	withGap := sp.DataQuality(monthlySeries("g", 10, 11, math.NaN(), 12))
	assert.Equal(t, 75.0, withGap.Completeness)
	assert.Greater(t, withGap.Consistency, 90.0)

	values := append(constantValues(9, 10), 10.5, 11, 11.5, 1000)
	outlier := sp.DataQuality(monthlySeries("o", values...))
	assert.Less(t, outlier.Validity, 100.0)
}

func TestSeriesPreparer_Summarize(t *testing.T) {
	sp := NewSeriesPreparer(testConfig())

	empty := sp.Summarize(monthlySeries("empty"))
	assert.Equal(t, 0, empty.Count)

	summary := sp.Summarize(monthlySeries("gdp", 1, 2, 3, 4.12345))
	assert.Equal(t, "gdp", summary.Indicator)
	assert.Equal(t, 4, summary.Count)
	assert.Equal(t, fixtureStart, summary.PeriodStart)
	assert.Equal(t, fixtureStart.AddDate(0, 3, 0), summary.PeriodEnd)
	assert.Equal(t, 2.531, summary.Mean)
	assert.Equal(t, 1.0, summary.Min)
	assert.Equal(t, 4.123, summary.Max)
	assert.Greater(t, summary.QualityScore, 0.0)
}
