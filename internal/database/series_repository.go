package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/irfndi/econ-trends/internal/models"
	"github.com/irfndi/econ-trends/pkg/interfaces"
)

// DatabasePool is the subset of pgxpool.Pool the repository needs, so tests
// can substitute pgxmock.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// SeriesRepository stores indicator observations in a single table keyed by
// (indicator, observed_at).
type SeriesRepository struct {
	pool  DatabasePool
	table string
}

var _ interfaces.SeriesStore = (*SeriesRepository)(nil)

// NewSeriesRepository creates a repository over table, which may be
// schema-qualified ("analytics.observations").
func NewSeriesRepository(pool DatabasePool, table string) *SeriesRepository {
	if table == "" {
		table = "indicator_observations"
	}
	return &SeriesRepository{
		pool:  pool,
		table: pgx.Identifier(strings.Split(table, ".")).Sanitize(),
	}
}

// EnsureSchema creates the observations table and its lookup index.
func (r *SeriesRepository) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	indicator TEXT NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (indicator, observed_at)
)`, r.table)
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create observations table: %w", err)
	}
	return nil
}

// LoadSeries returns the most recent limit observations of indicator in
// chronological order. A limit of zero or less loads everything.
func (r *SeriesRepository) LoadSeries(ctx context.Context, indicator string, limit int) (models.TimeSeries, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		query := fmt.Sprintf(`SELECT observed_at, value FROM (
	SELECT observed_at, value FROM %s WHERE indicator = $1 ORDER BY observed_at DESC LIMIT $2
) recent ORDER BY observed_at ASC`, r.table)
		rows, err = r.pool.Query(ctx, query, indicator, limit)
	} else {
		query := fmt.Sprintf(`SELECT observed_at, value FROM %s WHERE indicator = $1 ORDER BY observed_at ASC`, r.table)
		rows, err = r.pool.Query(ctx, query, indicator)
	}
	if err != nil {
		return models.TimeSeries{}, fmt.Errorf("failed to load series %q: %w", indicator, err)
	}
	defer rows.Close()

	series := models.TimeSeries{Name: indicator, Points: []models.Observation{}}
	for rows.Next() {
		var obs models.Observation
		if err := rows.Scan(&obs.Timestamp, &obs.Value); err != nil {
			return models.TimeSeries{}, fmt.Errorf("failed to scan observation of %q: %w", indicator, err)
		}
		obs.Timestamp = obs.Timestamp.UTC()
		series.Points = append(series.Points, obs)
	}
	if err := rows.Err(); err != nil {
		return models.TimeSeries{}, fmt.Errorf("failed to iterate series %q: %w", indicator, err)
	}

	if series.Len() == 0 {
		return models.TimeSeries{}, fmt.Errorf("%w: %s", interfaces.ErrSeriesNotFound, indicator)
	}
	return series, nil
}

// ListIndicators returns the distinct indicator names, sorted.
func (r *SeriesRepository) ListIndicators(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT DISTINCT indicator FROM %s ORDER BY indicator`, r.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list indicators: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan indicator: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// IndicatorStats reports the observation count and date range per indicator.
func (r *SeriesRepository) IndicatorStats(ctx context.Context) ([]models.IndicatorStats, error) {
	query := fmt.Sprintf(`SELECT indicator, COUNT(*), MIN(observed_at), MAX(observed_at)
FROM %s GROUP BY indicator ORDER BY indicator`, r.table)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query indicator stats: %w", err)
	}
	defer rows.Close()

	stats := []models.IndicatorStats{}
	for rows.Next() {
		var s models.IndicatorStats
		if err := rows.Scan(&s.Indicator, &s.Count, &s.FirstObservation, &s.LastObservation); err != nil {
			return nil, fmt.Errorf("failed to scan indicator stats: %w", err)
		}
		s.FirstObservation = s.FirstObservation.UTC()
		s.LastObservation = s.LastObservation.UTC()
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// ErrNonFiniteObservation rejects NaN and infinite values on write.
var ErrNonFiniteObservation = errors.New("non-finite observation")

// SaveObservations upserts every point of series in one statement. Existing
// rows for the same timestamp take the new value.
func (r *SeriesRepository) SaveObservations(ctx context.Context, series models.TimeSeries) (int64, error) {
	if series.Name == "" {
		return 0, fmt.Errorf("series name is required")
	}
	if series.Len() == 0 {
		return 0, nil
	}

	timestamps := make([]time.Time, series.Len())
	values := make([]float64, series.Len())
	for i, p := range series.Points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return 0, fmt.Errorf("%w at %s", ErrNonFiniteObservation, p.Timestamp.Format(time.RFC3339))
		}
		timestamps[i] = p.Timestamp.UTC()
		values[i] = p.Value
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (indicator, observed_at, value)
SELECT $1, unnest($2::timestamptz[]), unnest($3::float8[])
ON CONFLICT (indicator, observed_at) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, r.table)
	tag, err := r.pool.Exec(ctx, stmt, series.Name, timestamps, values)
	if err != nil {
		return 0, fmt.Errorf("failed to save observations for %q: %w", series.Name, err)
	}
	return tag.RowsAffected(), nil
}
