package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/econ-trends/pkg/interfaces"
)

// ErrBreakerOpen is returned by Breaker.Execute while calls are rejected.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds thresholds for a Breaker. Zero values take defaults.
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // consecutive failures before opening
	SuccessThreshold int           `json:"success_threshold"` // half-open successes before closing
	OpenTimeout      time.Duration `json:"open_timeout"`      // wait before probing again
	MaxProbes        int           `json:"max_probes"`        // concurrent calls while half-open
}

// BreakerStats are cumulative counters of a Breaker.
type BreakerStats struct {
	State        string    `json:"state"`
	Allowed      int64     `json:"allowed"`
	Rejected     int64     `json:"rejected"`
	Failures     int64     `json:"failures"`
	StateChanges int64     `json:"state_changes"`
	LastFailure  time.Time `json:"last_failure,omitempty"`
}

// Breaker is a three-state circuit breaker. The protected call runs outside
// the lock so slow calls do not serialize callers.
type Breaker struct {
	name   string
	config BreakerConfig
	logger *logrus.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	inFlight  int
	openedAt  time.Time
	stats     BreakerStats
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, config BreakerConfig, logger *logrus.Logger) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}
	if config.MaxProbes <= 0 {
		config.MaxProbes = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Breaker{name: name, config: config, logger: logger, now: time.Now}
}

// Execute runs fn unless the breaker is open. Context cancellation by the
// caller is not counted as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !b.acquire() {
		return ErrBreakerOpen
	}
	err := fn(ctx)
	b.release(err)
	return err
}

func (b *Breaker) acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.OpenTimeout {
		b.setState(StateHalfOpen)
	}

	switch b.state {
	case StateOpen:
		b.stats.Rejected++
		return false
	case StateHalfOpen:
		if b.inFlight >= b.config.MaxProbes {
			b.stats.Rejected++
			return false
		}
	}
	b.inFlight++
	b.stats.Allowed++
	return true
}

func (b *Breaker) release(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight--
	b.recordLocked(err)
}

// Record feeds the outcome of a call made outside Execute.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordLocked(err)
}

func (b *Breaker) recordLocked(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		b.stats.Failures++
		b.stats.LastFailure = b.now()
		b.failures++
		b.successes = 0
		if b.state == StateHalfOpen || (b.state == StateClosed && b.failures >= b.config.FailureThreshold) {
			b.logger.WithFields(logrus.Fields{
				"breaker":  b.name,
				"failures": b.failures,
				"error":    err.Error(),
			}).Warn("Circuit breaker opened")
			b.setState(StateOpen)
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.setState(StateClosed)
			b.logger.WithField("breaker", b.name).Info("Circuit breaker closed")
		}
	}
}

// setState must be called with mu held.
func (b *Breaker) setState(state BreakerState) {
	if b.state == state {
		return
	}
	b.state = state
	b.stats.StateChanges++
	b.successes = 0
	if state == StateOpen {
		b.openedAt = b.now()
	}
	if state == StateClosed {
		b.failures = 0
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the counters.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := b.stats
	stats.State = b.state.String()
	return stats
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed)
	b.failures = 0
}

// GuardedCache routes a ResultCache through a Breaker. While the breaker is
// open reads are misses and writes are dropped.
type GuardedCache struct {
	inner   interfaces.ResultCache
	breaker *Breaker
}

// NewGuardedCache wraps inner with breaker.
func NewGuardedCache(inner interfaces.ResultCache, breaker *Breaker) *GuardedCache {
	return &GuardedCache{inner: inner, breaker: breaker}
}

func (g *GuardedCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	var found bool
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		found, err = g.inner.Get(ctx, key, dest)
		return err
	})
	if errors.Is(err, ErrBreakerOpen) {
		return false, nil
	}
	return found, err
}

func (g *GuardedCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Set(ctx, key, value, ttl)
	})
	if errors.Is(err, ErrBreakerOpen) {
		return nil
	}
	return err
}

// InvalidateIndicator always reaches the underlying cache so admin calls
// surface real errors, but the outcome still feeds the breaker.
func (g *GuardedCache) InvalidateIndicator(ctx context.Context, indicator string) (int, error) {
	removed, err := g.inner.InvalidateIndicator(ctx, indicator)
	g.breaker.Record(err)
	return removed, err
}

// Clear empties the wrapped cache, bypassing the breaker. A successful clear
// closes the breaker; a failed one counts against it.
func (g *GuardedCache) Clear(ctx context.Context) (int, error) {
	clearer, ok := g.inner.(interface {
		Clear(context.Context) (int, error)
	})
	if !ok {
		return 0, errors.New("wrapped cache does not support clearing")
	}
	removed, err := clearer.Clear(ctx)
	if err != nil {
		g.breaker.Record(err)
		return removed, err
	}
	g.breaker.Reset()
	return removed, nil
}

// Report adds the breaker counters to the report of the wrapped cache.
func (g *GuardedCache) Report(ctx context.Context) (CacheReport, error) {
	reporter, ok := g.inner.(interface {
		Report(context.Context) (CacheReport, error)
	})
	if !ok {
		return CacheReport{}, errors.New("wrapped cache does not support reports")
	}
	report, err := reporter.Report(ctx)
	if err != nil {
		return report, err
	}
	stats := g.breaker.Stats()
	report.Breaker = &stats
	return report, nil
}
