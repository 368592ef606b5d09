package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/irfndi/econ-trends/internal/models"
	"github.com/irfndi/econ-trends/internal/telemetry"
)

// warmTimeout bounds a single warming run.
const warmTimeout = 5 * time.Minute

// CacheWarmingService precomputes trend and forecast results so the first
// requests after startup, and after each scheduled run, are served from cache.
type CacheWarmingService struct {
	service    *AnalyticsService
	indicators []string
	schedule   string
	logger     *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewCacheWarmingService creates a warmer for indicators. An empty list warms
// every stored indicator; an empty schedule disables periodic runs.
func NewCacheWarmingService(service *AnalyticsService, indicators []string, schedule string) *CacheWarmingService {
	return &CacheWarmingService{
		service:    service,
		indicators: indicators,
		schedule:   schedule,
		logger:     telemetry.Logger(),
	}
}

// WarmCache runs the default trend analysis and forecast for each indicator
// and returns how many indicators were fully warmed. Per-indicator failures
// are logged and skipped.
func (c *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	c.logger.Info("Starting cache warming")
	start := time.Now()

	overview, err := c.service.AnalyzeIndicators(ctx, c.indicators, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to warm trends: %w", err)
	}
	for indicator, reason := range overview.Failed {
		c.logger.Warn("Failed to warm trend", "indicator", indicator, "error", reason)
	}

	warmed := 0
	for _, report := range overview.Reports {
		if err := ctx.Err(); err != nil {
			return warmed, err
		}
		if _, err := c.service.Forecast(ctx, report.Indicator, 0, models.MethodAuto); err != nil {
			c.logger.Warn("Failed to warm forecast", "indicator", report.Indicator, "error", err)
			continue
		}
		warmed++
	}

	c.logger.Info("Cache warming completed",
		"warmed", warmed,
		"failed", len(overview.Failed),
		"duration", time.Since(start))
	return warmed, nil
}

// Start schedules WarmCache on the configured cron expression.
func (c *CacheWarmingService) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("cache warming already running")
	}
	if c.schedule == "" {
		c.logger.Info("Periodic cache warming disabled")
		return nil
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(c.schedule, c.runScheduled); err != nil {
		return fmt.Errorf("invalid warm schedule %q: %w", c.schedule, err)
	}
	scheduler.Start()

	c.cron = scheduler
	c.running = true
	c.logger.Info("Periodic cache warming scheduled", "schedule", c.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running warm-up to finish. It
// returns ctx's error when ctx expires first.
func (c *CacheWarmingService) Stop(ctx context.Context) error {
	c.mu.Lock()
	scheduler := c.cron
	c.cron = nil
	c.running = false
	c.mu.Unlock()

	if scheduler == nil {
		return nil
	}
	select {
	case <-scheduler.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cache warming did not stop in time: %w", ctx.Err())
	}
}

func (c *CacheWarmingService) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	if _, err := c.WarmCache(ctx); err != nil {
		c.logger.Error("Scheduled cache warming failed", "error", err)
	}
}
