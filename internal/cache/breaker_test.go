package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/econ-trends/internal/models"
	"github.com/irfndi/econ-trends/internal/testutil"
)

var errRedisDown = errors.New("dial tcp: connection refused")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(config BreakerConfig) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker("test", config, nil)
	b.now = clock.now
	return b, clock
}

func fail(context.Context) error    { return errRedisDown }
func succeed(context.Context) error { return nil }

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker("defaults", BreakerConfig{}, nil)

	assert.Equal(t, 5, b.config.FailureThreshold)
	assert.Equal(t, 2, b.config.SuccessThreshold)
	assert.Equal(t, 30*time.Second, b.config.OpenTimeout)
	assert.Equal(t, 1, b.config.MaxProbes)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3})
	ctx := context.Background()

	assert.ErrorIs(t, b.Execute(ctx, fail), errRedisDown)
	assert.ErrorIs(t, b.Execute(ctx, fail), errRedisDown)
	require.NoError(t, b.Execute(ctx, succeed), "a success resets the streak")
	assert.ErrorIs(t, b.Execute(ctx, fail), errRedisDown)
	assert.ErrorIs(t, b.Execute(ctx, fail), errRedisDown)
	assert.Equal(t, StateClosed, b.State())

	assert.ErrorIs(t, b.Execute(ctx, fail), errRedisDown)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)

	stats := b.Stats()
	assert.Equal(t, "open", stats.State)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(5), stats.Failures)
	assert.Equal(t, int64(1), stats.StateChanges)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail))
	require.Equal(t, StateOpen, b.State())

	clock.advance(30 * time.Second)
	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrBreakerOpen)

	clock.advance(30 * time.Second)
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute})
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail))
	clock.advance(time.Minute)
	require.Error(t, b.Execute(ctx, fail))

	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrBreakerOpen)
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Second})
	ctx := context.Background()
	require.Error(t, b.Execute(ctx, fail))
	clock.advance(time.Second)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Execute(ctx, func(context.Context) error {
			close(entered)
			<-unblock
			return nil
		})
	}()

	<-entered
	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrBreakerOpen, "only one probe at a time")
	close(unblock)
	wg.Wait()
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1})
	require.Error(t, b.Execute(context.Background(), fail))
	require.Equal(t, StateOpen, b.State())

	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Execute(context.Background(), succeed))
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(42).String())
}

func TestGuardedCache_DegradesToMissWhenOpen(t *testing.T) {
	server, client := testutil.NewMiniredis(t)
	inner := NewRedisAnalysisCache(client, nil)
	breaker, _ := newTestBreaker(BreakerConfig{FailureThreshold: 2})
	guarded := NewGuardedCache(inner, breaker)
	ctx := context.Background()

	report := models.TrendReport{Indicator: "cpi"}
	require.NoError(t, guarded.Set(ctx, "cpi:trend", report, time.Hour))
	var got models.TrendReport
	found, err := guarded.Get(ctx, "cpi:trend", &got)
	require.NoError(t, err)
	assert.True(t, found)

	server.Close()
	_, err = guarded.Get(ctx, "cpi:trend", &got)
	assert.Error(t, err)
	assert.Error(t, guarded.Set(ctx, "cpi:trend", report, time.Hour))
	require.Equal(t, StateOpen, breaker.State())

	found, err = guarded.Get(ctx, "cpi:trend", &got)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, guarded.Set(ctx, "cpi:trend", report, time.Hour))
	assert.Equal(t, int64(2), breaker.Stats().Rejected)
}

func TestGuardedCache_InvalidateBypassesBreaker(t *testing.T) {
	server, client := testutil.NewMiniredis(t)
	breaker, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1})
	guarded := NewGuardedCache(NewRedisAnalysisCache(client, nil), breaker)
	ctx := context.Background()

	require.NoError(t, guarded.Set(ctx, "cpi:trend", models.TrendReport{Indicator: "cpi"}, time.Hour))
	server.Close()
	_, err := guarded.InvalidateIndicator(ctx, "cpi")
	require.Error(t, err)
	assert.Equal(t, StateOpen, breaker.State())

	_, err = guarded.InvalidateIndicator(ctx, "cpi")
	assert.Error(t, err, "admin calls still reach redis")
}

func TestGuardedCache_ClearClosesBreaker(t *testing.T) {
	_, client := testutil.NewMiniredis(t)
	breaker, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1})
	guarded := NewGuardedCache(NewRedisAnalysisCache(client, nil), breaker)
	ctx := context.Background()

	require.NoError(t, guarded.Set(ctx, "cpi:trend", models.TrendReport{Indicator: "cpi"}, time.Hour))
	require.NoError(t, guarded.Set(ctx, "gdp:summary", models.SeriesOverview{}, time.Hour))
	breaker.Record(errRedisDown)
	require.Equal(t, StateOpen, breaker.State())

	removed, err := guarded.Clear(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, StateClosed, breaker.State())
	found, err := guarded.Get(ctx, "cpi:trend", &models.TrendReport{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGuardedCache_ClearFailureFeedsBreaker(t *testing.T) {
	server, client := testutil.NewMiniredis(t)
	breaker, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1})
	guarded := NewGuardedCache(NewRedisAnalysisCache(client, nil), breaker)
	server.Close()

	_, err := guarded.Clear(context.Background())

	assert.Error(t, err)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestGuardedCache_Report(t *testing.T) {
	_, client := testutil.NewMiniredis(t)
	guarded := NewGuardedCache(NewRedisAnalysisCache(client, nil), NewBreaker("redis-cache", BreakerConfig{}, nil))

	report, err := guarded.Report(context.Background())

	require.NoError(t, err)
	require.NotNil(t, report.Breaker)
	assert.Equal(t, "closed", report.Breaker.State)
}
