package database

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/econ-trends/internal/models"
	"github.com/irfndi/econ-trends/pkg/interfaces"
)

// RetryPolicy defines the backoff between attempts of a transient failure.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryPolicy returns the policy used for series queries.
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:    maxRetries,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 1.5,
		Jitter:        true,
	}
}

// IsTransient reports whether a query error is worth retrying: dropped
// connections, timeouts, serialization failures and deadlocks.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			return true
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

// RetryingStore retries the transient failures of a SeriesStore. Saves are
// upserts keyed by timestamp and therefore safe to repeat.
type RetryingStore struct {
	inner  interfaces.SeriesStore
	policy RetryPolicy
	logger *logrus.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewRetryingStore wraps inner. A policy with MaxRetries 0 calls through once.
func NewRetryingStore(inner interfaces.SeriesStore, policy RetryPolicy, logger *logrus.Logger) *RetryingStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = 1
	}
	return &RetryingStore{inner: inner, policy: policy, logger: logger, sleep: sleepContext}
}

func (s *RetryingStore) LoadSeries(ctx context.Context, indicator string, limit int) (models.TimeSeries, error) {
	var series models.TimeSeries
	err := s.do(ctx, "load_series", func() error {
		var err error
		series, err = s.inner.LoadSeries(ctx, indicator, limit)
		return err
	})
	return series, err
}

func (s *RetryingStore) ListIndicators(ctx context.Context) ([]string, error) {
	var indicators []string
	err := s.do(ctx, "list_indicators", func() error {
		var err error
		indicators, err = s.inner.ListIndicators(ctx)
		return err
	})
	return indicators, err
}

func (s *RetryingStore) IndicatorStats(ctx context.Context) ([]models.IndicatorStats, error) {
	var stats []models.IndicatorStats
	err := s.do(ctx, "indicator_stats", func() error {
		var err error
		stats, err = s.inner.IndicatorStats(ctx)
		return err
	})
	return stats, err
}

func (s *RetryingStore) SaveObservations(ctx context.Context, series models.TimeSeries) (int64, error) {
	var written int64
	err := s.do(ctx, "save_observations", func() error {
		var err error
		written, err = s.inner.SaveObservations(ctx, series)
		return err
	})
	return written, err
}

func (s *RetryingStore) do(ctx context.Context, operation string, fn func() error) error {
	delay := s.policy.InitialDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				s.logger.WithFields(logrus.Fields{
					"operation": operation,
					"attempts":  attempt + 1,
				}).Info("Query recovered after retry")
			}
			return nil
		}
		if attempt >= s.policy.MaxRetries || !IsTransient(err) {
			return err
		}

		wait := s.jitter(delay)
		s.logger.WithFields(logrus.Fields{
			"operation": operation,
			"attempt":   attempt + 1,
			"delay":     wait,
			"error":     err.Error(),
		}).Warn("Transient query failure, retrying")
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}

		delay = time.Duration(float64(delay) * s.policy.BackoffFactor)
		if s.policy.MaxDelay > 0 && delay > s.policy.MaxDelay {
			delay = s.policy.MaxDelay
		}
	}
}

// jitter spreads delay by up to ±12.5%.
func (s *RetryingStore) jitter(delay time.Duration) time.Duration {
	if !s.policy.Jitter || delay <= 0 {
		return delay
	}
	return delay + time.Duration(float64(delay)*0.25*(rand.Float64()-0.5))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
