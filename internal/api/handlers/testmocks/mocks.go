package testmocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/irfndi/econ-trends/internal/cache"
	"github.com/irfndi/econ-trends/internal/models"
	"github.com/irfndi/econ-trends/internal/services"
)

// MockAnalytics implements handlers.AnalyticsProvider for testing
type MockAnalytics struct {
	mock.Mock
}

// MockCacheAdmin implements handlers.CacheAdmin for testing
type MockCacheAdmin struct {
	mock.Mock
}

// MockHealthChecker implements handlers.HealthChecker for testing
type MockHealthChecker struct {
	mock.Mock
}

// MockSystemProbe implements services.SystemProbe for testing
type MockSystemProbe struct {
	mock.Mock
}

func (m *MockAnalytics) Trend(ctx context.Context, indicator string, window, months int) (models.TrendReport, error) {
	args := m.Called(ctx, indicator, window, months)
	return args.Get(0).(models.TrendReport), args.Error(1)
}

func (m *MockAnalytics) Outliers(ctx context.Context, indicator string, method models.OutlierMethod, factor float64) ([]models.OutlierRecord, error) {
	args := m.Called(ctx, indicator, method, factor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OutlierRecord), args.Error(1)
}

func (m *MockAnalytics) Seasonality(ctx context.Context, indicator string) (models.SeasonalityReport, error) {
	args := m.Called(ctx, indicator)
	return args.Get(0).(models.SeasonalityReport), args.Error(1)
}

func (m *MockAnalytics) Forecast(ctx context.Context, indicator string, horizon int, method models.ForecastMethod) (models.ForecastReport, error) {
	args := m.Called(ctx, indicator, horizon, method)
	return args.Get(0).(models.ForecastReport), args.Error(1)
}

func (m *MockAnalytics) ForecastAdHoc(ctx context.Context, req models.ForecastRequest) (models.ForecastReport, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.ForecastReport), args.Error(1)
}

func (m *MockAnalytics) CompareMethods(ctx context.Context, indicator string, horizon int) (models.MethodComparison, error) {
	args := m.Called(ctx, indicator, horizon)
	return args.Get(0).(models.MethodComparison), args.Error(1)
}

func (m *MockAnalytics) Summary(ctx context.Context, indicator string, months int) (models.SeriesOverview, error) {
	args := m.Called(ctx, indicator, months)
	return args.Get(0).(models.SeriesOverview), args.Error(1)
}

func (m *MockAnalytics) Correlations(ctx context.Context, indicators []string, threshold float64) (models.CorrelationMatrix, error) {
	args := m.Called(ctx, indicators, threshold)
	return args.Get(0).(models.CorrelationMatrix), args.Error(1)
}

func (m *MockAnalytics) AnalyzeIndicators(ctx context.Context, indicators []string, window int) (models.TrendOverview, error) {
	args := m.Called(ctx, indicators, window)
	return args.Get(0).(models.TrendOverview), args.Error(1)
}

func (m *MockAnalytics) ListIndicators(ctx context.Context) ([]models.IndicatorStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.IndicatorStats), args.Error(1)
}

func (m *MockAnalytics) IngestObservations(ctx context.Context, indicator string, raw []models.RawObservation) (int64, error) {
	args := m.Called(ctx, indicator, raw)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAnalytics) InvalidateCache(ctx context.Context, indicator string) (int, error) {
	args := m.Called(ctx, indicator)
	return args.Int(0), args.Error(1)
}

func (m *MockCacheAdmin) Report(ctx context.Context) (cache.CacheReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(cache.CacheReport), args.Error(1)
}

func (m *MockCacheAdmin) Clear(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSystemProbe) Snapshot(ctx context.Context) (services.SystemSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(services.SystemSnapshot), args.Error(1)
}
