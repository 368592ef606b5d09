package services

import (
	"math"
	"sort"
)

// nearZero is the tolerance below which a variance or slope is treated as zero.
const nearZero = 1e-10

func calculateMeanFloat64(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateStdDev returns the sample standard deviation (n-1 denominator).
func calculateStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return math.Sqrt(sumSquaredDeviations(values) / float64(len(values)-1))
}

// calculatePopulationStdDev returns the population standard deviation (n denominator).
func calculatePopulationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return math.Sqrt(sumSquaredDeviations(values) / float64(len(values)))
}

func calculateSampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return sumSquaredDeviations(values) / float64(len(values)-1)
}

func sumSquaredDeviations(values []float64) float64 {
	mean := calculateMeanFloat64(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares
}

// coefficientOfVariation is population std over |mean|, 0 when the mean is
// zero. The result is never negative.
func coefficientOfVariation(values []float64) float64 {
	mean := calculateMeanFloat64(values)
	if mean == 0 {
		return 0
	}
	return calculatePopulationStdDev(values) / math.Abs(mean)
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func calculateMedian(values []float64) float64 {
	return calculateQuantile(values, 0.5)
}

// calculateQuantile uses linear interpolation between closest ranks.
func calculateQuantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := sortedCopy(values)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// linearFit fits y = slope*x + intercept by ordinary least squares with x = 0..n-1.
func linearFit(values []float64) (slope float64, intercept float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return 0, values[0]
	}

	var sumX, sumY, sumXX, sumXY float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}

	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / nf
	}
	slope = (nf*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / nf
	return slope, intercept
}

// rSquared is the coefficient of determination of a line over x = 0..n-1,
// clamped to [0, 1] and 0 when the values have no variance.
func rSquared(values []float64, slope, intercept float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := calculateMeanFloat64(values)
	var ssRes, ssTot float64
	for i, y := range values {
		pred := slope*float64(i) + intercept
		ssRes += (y - pred) * (y - pred)
		ssTot += (y - mean) * (y - mean)
	}
	if ssTot < nearZero {
		return 0
	}
	return clamp(1-ssRes/ssTot, 0, 1)
}

func calculateCorrelation(x []float64, y []float64) float64 {
	n := len(x)
	if n == 0 || len(y) != n {
		return 0
	}
	meanX := calculateMeanFloat64(x)
	meanY := calculateMeanFloat64(y)

	var numerator float64
	var denomX float64
	var denomY float64

	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		numerator += dx * dy
		denomX += dx * dx
		denomY += dy * dy
	}

	denom := math.Sqrt(denomX * denomY)
	if denom == 0 {
		return 0
	}

	return clamp(numerator/denom, -1, 1)
}

func rmse(actual, predicted []float64) float64 {
	n := len(actual)
	if len(predicted) < n {
		n = len(predicted)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if !isFinite(v) {
			return false
		}
	}
	return true
}
