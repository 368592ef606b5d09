package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/econ-trends/internal/models"
	"github.com/irfndi/econ-trends/pkg/interfaces"
)

// flakyStore fails with errs in order and then succeeds.
type flakyStore struct {
	errs  []error
	calls int
}

func (f *flakyStore) next() error {
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *flakyStore) LoadSeries(ctx context.Context, indicator string, limit int) (models.TimeSeries, error) {
	if err := f.next(); err != nil {
		return models.TimeSeries{}, err
	}
	return models.TimeSeries{Name: indicator}, nil
}

func (f *flakyStore) ListIndicators(ctx context.Context) ([]string, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return []string{"cpi"}, nil
}

func (f *flakyStore) IndicatorStats(ctx context.Context) ([]models.IndicatorStats, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return []models.IndicatorStats{{Indicator: "cpi"}}, nil
}

func (f *flakyStore) SaveObservations(ctx context.Context, series models.TimeSeries) (int64, error) {
	if err := f.next(); err != nil {
		return 0, err
	}
	return int64(len(series.Points)), nil
}

var deadlock = &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}

func newTestRetryingStore(inner interfaces.SeriesStore, maxRetries int) (*RetryingStore, *[]time.Duration) {
	store := NewRetryingStore(inner, RetryPolicy{
		MaxRetries:    maxRetries,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      25 * time.Millisecond,
		BackoffFactor: 2,
	}, nil)
	var waits []time.Duration
	store.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return store, &waits
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock wrapped", fmt.Errorf("load cpi: %w", deadlock), true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"not found", interfaces.ErrSeriesNotFound, false},
		{"cancelled", context.Canceled, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetryingStore_RecoversFromTransientFailures(t *testing.T) {
	inner := &flakyStore{errs: []error{deadlock, deadlock}}
	store, waits := newTestRetryingStore(inner, 3)

	series, err := store.LoadSeries(context.Background(), "cpi", 10)

	require.NoError(t, err)
	assert.Equal(t, "cpi", series.Name)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *waits)
}

func TestRetryingStore_CapsDelay(t *testing.T) {
	inner := &flakyStore{errs: []error{deadlock, deadlock, deadlock}}
	store, waits := newTestRetryingStore(inner, 3)

	_, err := store.ListIndicators(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}, *waits)
}

func TestRetryingStore_GivesUp(t *testing.T) {
	inner := &flakyStore{errs: []error{deadlock, deadlock, deadlock}}
	store, _ := newTestRetryingStore(inner, 1)

	_, err := store.IndicatorStats(context.Background())

	assert.ErrorIs(t, err, deadlock)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingStore_PermanentErrorsAreNotRetried(t *testing.T) {
	inner := &flakyStore{errs: []error{interfaces.ErrSeriesNotFound}}
	store, waits := newTestRetryingStore(inner, 3)

	_, err := store.LoadSeries(context.Background(), "missing", 0)

	assert.ErrorIs(t, err, interfaces.ErrSeriesNotFound)
	assert.Equal(t, 1, inner.calls)
	assert.Empty(t, *waits)
}

func TestRetryingStore_StopsWhenContextEnds(t *testing.T) {
	inner := &flakyStore{errs: []error{deadlock, deadlock}}
	store, _ := newTestRetryingStore(inner, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.SaveObservations(ctx, models.TimeSeries{Name: "cpi"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingStore_ZeroRetries(t *testing.T) {
	inner := &flakyStore{errs: []error{deadlock}}
	store := NewRetryingStore(inner, DefaultRetryPolicy(0), nil)

	_, err := store.SaveObservations(context.Background(), models.TimeSeries{})

	assert.ErrorIs(t, err, deadlock)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingStore_Jitter(t *testing.T) {
	store := NewRetryingStore(&flakyStore{}, DefaultRetryPolicy(2), nil)

	for i := 0; i < 50; i++ {
		d := store.jitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 87*time.Millisecond)
		assert.LessOrEqual(t, d, 113*time.Millisecond)
	}
}
