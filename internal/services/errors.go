package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeries marks input that cannot be coerced into a time series.
	ErrInvalidSeries = errors.New("invalid series")
	// ErrInsufficientData marks an operation that needs more observations than it was given.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNumericDegeneracy labels fallbacks caused by zero variance or non-finite arithmetic.
	ErrNumericDegeneracy = errors.New("numeric degeneracy")
	// ErrUnknownOutlierMethod is returned for an unsupported outlier detection rule.
	ErrUnknownOutlierMethod = errors.New("unknown outlier method")
)

// InvalidSeriesError describes why raw observations failed validation.
// Index is the offending observation, or -1 when the whole series is at fault.
type InvalidSeriesError struct {
	Reason string
	Index  int
}

func (e *InvalidSeriesError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid series: observation %d: %s", e.Index, e.Reason)
	}
	return "invalid series: " + e.Reason
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidSeries).
func (e *InvalidSeriesError) Unwrap() error {
	return ErrInvalidSeries
}

func newInvalidSeriesError(index int, format string, args ...interface{}) error {
	return &InvalidSeriesError{Reason: fmt.Sprintf(format, args...), Index: index}
}
