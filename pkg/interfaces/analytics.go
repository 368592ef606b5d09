package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/irfndi/econ-trends/internal/models"
)

// ErrSeriesNotFound is returned by a SeriesSource that has no observations
// for the requested indicator.
var ErrSeriesNotFound = errors.New("series not found")

// SeriesSource loads indicator history, oldest observation first.
type SeriesSource interface {
	// LoadSeries returns at most limit of the most recent observations.
	// A limit of zero or less returns the full history.
	LoadSeries(ctx context.Context, indicator string, limit int) (models.TimeSeries, error)
	ListIndicators(ctx context.Context) ([]string, error)
}

// SeriesStore is a SeriesSource that also accepts new observations.
type SeriesStore interface {
	SeriesSource
	// SaveObservations upserts the points of series keyed by timestamp and
	// returns the number of rows written.
	SaveObservations(ctx context.Context, series models.TimeSeries) (int64, error)
	IndicatorStats(ctx context.Context) ([]models.IndicatorStats, error)
}

// ResultCache stores JSON-encodable analysis results.
type ResultCache interface {
	// Get decodes the cached value into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// InvalidateIndicator drops every cached result of indicator and returns
	// how many entries were removed.
	InvalidateIndicator(ctx context.Context, indicator string) (int, error)
}
