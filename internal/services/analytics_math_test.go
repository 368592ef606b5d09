package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateMeanFloat64(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{name: "empty slice", values: []float64{}, expected: 0},
		{name: "single value", values: []float64{5.0}, expected: 5.0},
		{name: "multiple positive values", values: []float64{1, 2, 3, 4, 5}, expected: 3.0},
		{name: "negative values", values: []float64{-5, -3, -1}, expected: -3.0},
		{name: "mixed positive and negative", values: []float64{-10, 0, 10}, expected: 0.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, calculateMeanFloat64(tc.values), 1e-10, "mean calculation mismatch")
		})
	}
}

func TestCalculateStdDev(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		sample     float64
		population float64
	}{
		{name: "empty slice", values: []float64{}, sample: 0, population: 0},
		{name: "single value", values: []float64{5.0}, sample: 0, population: 0},
		{name: "constant values", values: []float64{3, 3, 3, 3}, sample: 0, population: 0},
		{name: "known set", values: []float64{2, 4, 4, 4, 5, 5, 7, 9}, sample: math.Sqrt(32.0 / 7.0), population: 2.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.sample, calculateStdDev(tc.values), 1e-10)
			assert.InDelta(t, tc.population, calculatePopulationStdDev(tc.values), 1e-10)
		})
	}
}

func TestCoefficientOfVariation(t *testing.T) {
	assert.Equal(t, 0.0, coefficientOfVariation([]float64{-1, 1}))
	assert.InDelta(t, 2.0/5.0, coefficientOfVariation([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-10)
	assert.InDelta(t, 2.0/5.0, coefficientOfVariation([]float64{-2, -4, -4, -4, -5, -5, -7, -9}), 1e-10)
}

func TestCalculateQuantile(t *testing.T) {
	values := []float64{7, 1, 3, 5}

	assert.Equal(t, 0.0, calculateQuantile(nil, 0.5))
	assert.Equal(t, 1.0, calculateQuantile(values, 0))
	assert.Equal(t, 7.0, calculateQuantile(values, 1))
	assert.InDelta(t, 4.0, calculateMedian(values), 1e-10)
	assert.InDelta(t, 2.5, calculateQuantile(values, 0.25), 1e-10)
	assert.InDelta(t, 5.5, calculateQuantile(values, 0.75), 1e-10)
	// input untouched
	assert.Equal(t, []float64{7, 1, 3, 5}, values)
}

func TestLinearFit(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		slope     float64
		intercept float64
	}{
		{name: "empty", values: nil, slope: 0, intercept: 0},
		{name: "single point", values: []float64{4}, slope: 0, intercept: 4},
		{name: "exact line", values: []float64{1, 3, 5, 7}, slope: 2, intercept: 1},
		{name: "flat", values: []float64{2, 2, 2}, slope: 0, intercept: 2},
		{name: "descending", values: []float64{10, 8, 6}, slope: -2, intercept: 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			slope, intercept := linearFit(tc.values)
			assert.InDelta(t, tc.slope, slope, 1e-10)
			assert.InDelta(t, tc.intercept, intercept, 1e-10)
		})
	}
}

func TestRSquared(t *testing.T) {
	line := []float64{1, 3, 5, 7}
	slope, intercept := linearFit(line)
	assert.InDelta(t, 1.0, rSquared(line, slope, intercept), 1e-10)

	flat := []float64{5, 5, 5}
	assert.Equal(t, 0.0, rSquared(flat, 0, 5))

	// a terrible line is clamped to zero
	assert.Equal(t, 0.0, rSquared([]float64{1, 2, 3}, -100, 0))
}

func TestCalculateCorrelation(t *testing.T) {
	tests := []struct {
		name     string
		x        []float64
		y        []float64
		expected float64
	}{
		{name: "empty", x: nil, y: nil, expected: 0},
		{name: "length mismatch", x: []float64{1, 2}, y: []float64{1}, expected: 0},
		{name: "perfect positive", x: []float64{1, 2, 3}, y: []float64{2, 4, 6}, expected: 1},
		{name: "perfect negative", x: []float64{1, 2, 3}, y: []float64{3, 2, 1}, expected: -1},
		{name: "zero variance", x: []float64{1, 1, 1}, y: []float64{1, 2, 3}, expected: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, calculateCorrelation(tc.x, tc.y), 1e-10)
		})
	}
}

func TestRMSE(t *testing.T) {
	assert.Equal(t, 0.0, rmse(nil, nil))
	assert.InDelta(t, 1.0, rmse([]float64{1, 2, 3}, []float64{2, 3, 4}), 1e-10)
}

func TestAllFinite(t *testing.T) {
	assert.True(t, allFinite([]float64{1, 2}))
	assert.False(t, allFinite([]float64{1, math.NaN()}))
	assert.False(t, allFinite([]float64{math.Inf(-1)}))
}
