package services

import (
	"math"
	"time"

	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/models"
)

var fixtureStart = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

func testConfig() config.AnalyticsConfig {
	return config.DefaultAnalyticsConfig()
}

// monthlySeries builds a series with one observation per month from January 2020.
func monthlySeries(name string, values ...float64) models.TimeSeries {
	points := make([]models.Observation, len(values))
	for i, v := range values {
		points[i] = models.Observation{Timestamp: fixtureStart.AddDate(0, i, 0), Value: v}
	}
	return models.TimeSeries{Name: name, Points: points}
}

func linearValues(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func constantValues(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// seasonalValues produces a level series with a sine wave peaking in April.
func seasonalValues(n int, level, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = level + amplitude*math.Sin(2*math.Pi*float64(i)/12)
	}
	return out
}

// noisyValues alternates around a level, deterministic so tests are stable.
func noisyValues(n int, level, swing float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		sign := 1.0
		if i%2 == 1 {
			sign = -1.0
		}
		out[i] = level + sign*swing*float64(1+i%3)
	}
	return out
}
