package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/irfndi/econ-trends/internal/cache"
	"github.com/irfndi/econ-trends/internal/config"
	"github.com/irfndi/econ-trends/internal/metrics"
	"github.com/irfndi/econ-trends/internal/models"
	"github.com/irfndi/econ-trends/internal/telemetry"
	"github.com/irfndi/econ-trends/pkg/interfaces"
)

// AnalyticsService runs the analytics engine over stored indicator history.
// Results are cached when a ResultCache is configured; cache failures are
// logged and never fail an operation.
type AnalyticsService struct {
	config      config.AnalyticsConfig
	store       interfaces.SeriesStore
	cache       interfaces.ResultCache
	preparer    *SeriesPreparer
	analyzer    *TrendAnalyzer
	forecaster  *Forecaster
	evaluator   *QualityEvaluator
	metrics     *metrics.Recorder
	logger      *logrus.Logger
	concurrency int
}

// NewAnalyticsService wires the engine components. cache may be nil. A nil
// recorder gets a private registry.
func NewAnalyticsService(
	cfg config.AnalyticsConfig,
	store interfaces.SeriesStore,
	resultCache interfaces.ResultCache,
	recorder *metrics.Recorder,
	logger *logrus.Logger,
) *AnalyticsService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if recorder == nil {
		recorder = metrics.New()
	}

	forecaster := NewForecaster(cfg, logger)
	return &AnalyticsService{
		config:      cfg,
		store:       store,
		cache:       resultCache,
		preparer:    NewSeriesPreparer(cfg),
		analyzer:    NewTrendAnalyzer(cfg, logger),
		forecaster:  forecaster,
		evaluator:   NewQualityEvaluator(cfg, forecaster, logger),
		metrics:     recorder,
		logger:      logger,
		concurrency: ResolveConcurrency(context.Background(), cfg.MaxConcurrency, HostProbe{}, logger),
	}
}

// Concurrency is the worker limit used for multi-indicator operations.
func (s *AnalyticsService) Concurrency() int {
	return s.concurrency
}

// Forecaster exposes the underlying forecaster, e.g. for method metadata.
func (s *AnalyticsService) Forecaster() *Forecaster {
	return s.forecaster
}

// Trend analyses the most recent window of indicator. A positive months first
// limits the series to that many months before its latest observation.
func (s *AnalyticsService) Trend(ctx context.Context, indicator string, window, months int) (models.TrendReport, error) {
	if window <= 0 {
		window = s.config.TrendWindow
	}
	if months < 0 {
		months = 0
	}
	key := cache.Key(indicator, "trend", "w"+strconv.Itoa(window), "m"+strconv.Itoa(months))

	return instrumented(ctx, s, "trend", indicator, func(ctx context.Context, _ trace.Span) (models.TrendReport, error) {
		return cached(ctx, s, key, func() (models.TrendReport, error) {
			series, err := s.loadClean(ctx, indicator)
			if err != nil {
				return models.TrendReport{}, err
			}
			return s.analyzer.AnalyzeTrend(s.recent(series, months), window), nil
		})
	})
}

// Outliers detects anomalous observations. A factor of zero or less uses
// the configured IQR factor.
func (s *AnalyticsService) Outliers(ctx context.Context, indicator string, method models.OutlierMethod, factor float64) ([]models.OutlierRecord, error) {
	if method == "" {
		method = models.OutlierIQR
	}
	if factor <= 0 {
		factor = s.config.OutlierFactor
	}
	key := cache.Key(indicator, "outliers", string(method), strconv.FormatFloat(factor, 'g', -1, 64))

	return instrumented(ctx, s, "outliers", indicator, func(ctx context.Context, _ trace.Span) ([]models.OutlierRecord, error) {
		return cached(ctx, s, key, func() ([]models.OutlierRecord, error) {
			series, err := s.loadClean(ctx, indicator)
			if err != nil {
				return nil, err
			}
			return s.analyzer.DetectOutliers(series, method, factor)
		})
	})
}

// Seasonality looks for a calendar-month pattern.
func (s *AnalyticsService) Seasonality(ctx context.Context, indicator string) (models.SeasonalityReport, error) {
	key := cache.Key(indicator, "seasonality")

	return instrumented(ctx, s, "seasonality", indicator, func(ctx context.Context, _ trace.Span) (models.SeasonalityReport, error) {
		return cached(ctx, s, key, func() (models.SeasonalityReport, error) {
			series, err := s.loadClean(ctx, indicator)
			if err != nil {
				return models.SeasonalityReport{}, err
			}
			return s.analyzer.AnalyzeSeasonality(series), nil
		})
	})
}

// Forecast predicts horizon periods of indicator and scores the forecast.
// A horizon of zero or less uses the configured default.
func (s *AnalyticsService) Forecast(ctx context.Context, indicator string, horizon int, method models.ForecastMethod) (models.ForecastReport, error) {
	horizon = s.resolveHorizon(horizon)
	if method == "" {
		method = models.MethodAuto
	}
	key := cache.Key(indicator, "forecast", "h"+strconv.Itoa(horizon), string(method))

	return instrumented(ctx, s, "forecast", indicator, func(ctx context.Context, span trace.Span) (models.ForecastReport, error) {
		report, err := cached(ctx, s, key, func() (models.ForecastReport, error) {
			series, err := s.loadClean(ctx, indicator)
			if err != nil {
				return models.ForecastReport{}, err
			}
			return s.forecastReport(series, horizon, method), nil
		})
		if err == nil {
			telemetry.RecordForecast(span, report.Forecast)
			telemetry.RecordQuality(span, report.Quality)
		}
		return report, err
	})
}

// ForecastAdHoc validates and forecasts a caller-supplied series. Nothing is
// stored or cached.
func (s *AnalyticsService) ForecastAdHoc(ctx context.Context, req models.ForecastRequest) (models.ForecastReport, error) {
	return instrumented(ctx, s, "forecast_adhoc", req.Name, func(ctx context.Context, span trace.Span) (models.ForecastReport, error) {
		method, err := models.ParseForecastMethod(req.Method)
		if err != nil {
			return models.ForecastReport{}, err
		}
		series, err := s.preparer.Parse(req.Name, req.Observations)
		if err != nil {
			return models.ForecastReport{}, err
		}

		report := s.forecastReport(s.preparer.Clean(series), s.resolveHorizon(req.Horizon), method)
		telemetry.RecordForecast(span, report.Forecast)
		telemetry.RecordQuality(span, report.Quality)
		return report, nil
	})
}

// CompareMethods runs every concrete method against indicator and ranks them.
func (s *AnalyticsService) CompareMethods(ctx context.Context, indicator string, horizon int) (models.MethodComparison, error) {
	horizon = s.resolveHorizon(horizon)
	key := cache.Key(indicator, "compare", "h"+strconv.Itoa(horizon))

	return instrumented(ctx, s, "compare_methods", indicator, func(ctx context.Context, span trace.Span) (models.MethodComparison, error) {
		comparison, err := cached(ctx, s, key, func() (models.MethodComparison, error) {
			series, err := s.loadClean(ctx, indicator)
			if err != nil {
				return models.MethodComparison{}, err
			}
			comparison := s.evaluator.CompareMethods(series, horizon)
			for method, eval := range comparison.PerMethod {
				s.metrics.RecordForecast(eval.Forecast)
				s.metrics.RecordQuality(method, eval.Quality.Score)
			}
			return comparison, nil
		})
		if err == nil {
			telemetry.SetSpanAttributes(span,
				attribute.String("forecast.best_method", string(comparison.BestMethod)),
				attribute.Float64("forecast.best_score", comparison.BestScore),
			)
		}
		return comparison, err
	})
}

// Summary describes the stored series and rates its data quality. It works
// on the series as stored, before cleaning, optionally limited to the last
// months months.
func (s *AnalyticsService) Summary(ctx context.Context, indicator string, months int) (models.SeriesOverview, error) {
	if months < 0 {
		months = 0
	}
	key := cache.Key(indicator, "summary", "m"+strconv.Itoa(months))

	return instrumented(ctx, s, "summary", indicator, func(ctx context.Context, _ trace.Span) (models.SeriesOverview, error) {
		return cached(ctx, s, key, func() (models.SeriesOverview, error) {
			series, err := s.store.LoadSeries(ctx, indicator, s.config.SeriesLookback)
			if err != nil {
				return models.SeriesOverview{}, err
			}
			series = s.recent(series, months)
			return models.SeriesOverview{
				Summary:     s.preparer.Summarize(series),
				DataQuality: s.preparer.DataQuality(series),
			}, nil
		})
	})
}

// Correlations correlates the recent windows of indicators. Series are
// loaded in parallel; any load failure fails the whole operation.
func (s *AnalyticsService) Correlations(ctx context.Context, indicators []string, threshold float64) (models.CorrelationMatrix, error) {
	indicators = uniqueSorted(indicators)
	label := fmt.Sprintf("%d indicators", len(indicators))

	return instrumented(ctx, s, "correlations", label, func(ctx context.Context, span trace.Span) (models.CorrelationMatrix, error) {
		telemetry.SetSpanAttributes(span, attribute.StringSlice("analytics.indicators", indicators))
		if len(indicators) < 2 {
			return models.CorrelationMatrix{}, fmt.Errorf("%w: need at least 2 indicators, got %d", ErrInsufficientData, len(indicators))
		}

		seriesByName := make(map[string]models.TimeSeries, len(indicators))
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, name := range indicators {
			g.Go(func() error {
				series, err := s.loadClean(gctx, name)
				if err != nil {
					return err
				}
				mu.Lock()
				seriesByName[name] = series
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return models.CorrelationMatrix{}, err
		}

		return s.analyzer.CompareIndicators(seriesByName, threshold)
	})
}

// AnalyzeIndicators runs Trend for each indicator with bounded parallelism
// and aggregates the reports. An empty list analyses every stored
// indicator. Per-indicator failures are reported in Failed, not returned.
func (s *AnalyticsService) AnalyzeIndicators(ctx context.Context, indicators []string, window int) (models.TrendOverview, error) {
	if len(indicators) == 0 {
		all, err := s.store.ListIndicators(ctx)
		if err != nil {
			return models.TrendOverview{}, fmt.Errorf("failed to list indicators: %w", err)
		}
		indicators = all
	}
	indicators = uniqueSorted(indicators)
	label := fmt.Sprintf("%d indicators", len(indicators))

	return instrumented(ctx, s, "analyze_indicators", label, func(ctx context.Context, span trace.Span) (models.TrendOverview, error) {
		reports := make([]models.TrendReport, len(indicators))
		errs := make([]error, len(indicators))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for i, name := range indicators {
			g.Go(func() error {
				reports[i], errs[i] = s.Trend(gctx, name, window, 0)
				// only cancellation aborts the batch
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return models.TrendOverview{}, err
		}

		overview := models.TrendOverview{Reports: []models.TrendReport{}}
		for i, name := range indicators {
			if errs[i] != nil {
				if overview.Failed == nil {
					overview.Failed = map[string]string{}
				}
				overview.Failed[name] = errs[i].Error()
				continue
			}
			overview.Reports = append(overview.Reports, reports[i])
		}
		overview.Summary = s.analyzer.SummarizeTrends(overview.Reports)

		telemetry.SetSpanAttributes(span,
			attribute.Int("analytics.analyzed", len(overview.Reports)),
			attribute.Int("analytics.failed", len(overview.Failed)),
		)
		return overview, nil
	})
}

// ListIndicators reports what is stored per indicator.
func (s *AnalyticsService) ListIndicators(ctx context.Context) ([]models.IndicatorStats, error) {
	return instrumented(ctx, s, "list_indicators", "", func(ctx context.Context, _ trace.Span) ([]models.IndicatorStats, error) {
		return s.store.IndicatorStats(ctx)
	})
}

// IngestObservations parses raw observations, stores the finite ones and
// drops every cached result of the indicator.
func (s *AnalyticsService) IngestObservations(ctx context.Context, indicator string, raw []models.RawObservation) (int64, error) {
	return instrumented(ctx, s, "ingest", indicator, func(ctx context.Context, span trace.Span) (int64, error) {
		series, err := s.preparer.Parse(indicator, raw)
		if err != nil {
			return 0, err
		}
		// outliers are kept in storage; only the analyses filter them
		series = s.preparer.Normalize(series)

		written, err := s.store.SaveObservations(ctx, series)
		if err != nil {
			return 0, err
		}
		telemetry.SetSpanAttributes(span, attribute.Int64("analytics.rows_written", written))

		if _, err := s.InvalidateCache(ctx, indicator); err != nil {
			s.logger.WithError(err).WithField("indicator", indicator).Warn("Failed to invalidate cache after ingest")
		}
		return written, nil
	})
}

// InvalidateCache drops every cached result of indicator. Without a cache
// it is a no-op.
func (s *AnalyticsService) InvalidateCache(ctx context.Context, indicator string) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.InvalidateIndicator(ctx, indicator)
}

func (s *AnalyticsService) forecastReport(series models.TimeSeries, horizon int, method models.ForecastMethod) models.ForecastReport {
	forecast := s.forecaster.Predict(series, horizon, method)
	quality := s.evaluator.Evaluate(series, forecast)

	s.metrics.RecordForecast(forecast)
	s.metrics.RecordQuality(forecast.Method, quality.Score)

	return models.ForecastReport{
		Forecast:    forecast,
		Quality:     quality,
		Explanation: s.forecaster.Explain(forecast),
	}
}

func (s *AnalyticsService) resolveHorizon(horizon int) int {
	if horizon <= 0 {
		horizon = s.config.DefaultForecastHorizon
	}
	return s.forecaster.ClampHorizon(horizon)
}

func (s *AnalyticsService) loadClean(ctx context.Context, indicator string) (models.TimeSeries, error) {
	series, err := s.store.LoadSeries(ctx, indicator, s.config.SeriesLookback)
	if err != nil {
		return models.TimeSeries{}, err
	}
	return s.preparer.Clean(series), nil
}

// instrumented wraps fn in a span, records the operation metrics and logs
// failures other than missing series.
func instrumented[T any](ctx context.Context, s *AnalyticsService, operation, indicator string, fn func(context.Context, trace.Span) (T, error)) (T, error) {
	start := time.Now()
	ctx, span := telemetry.StartAnalysisSpan(ctx, operation, indicator)

	result, err := fn(ctx, span)

	telemetry.EndSpan(span, err)
	elapsed := time.Since(start)
	s.metrics.RecordAnalysis(operation, err, elapsed)

	fields := logrus.Fields{
		"operation":   operation,
		"indicator":   indicator,
		"duration_ms": elapsed.Milliseconds(),
	}
	switch {
	case err == nil:
		s.logger.WithFields(fields).Debug("Analysis completed")
	case errors.Is(err, interfaces.ErrSeriesNotFound), errors.Is(err, ErrInvalidSeries):
		s.logger.WithFields(fields).WithError(err).Info("Analysis rejected")
	default:
		s.logger.WithFields(fields).WithError(err).Error("Analysis failed")
	}
	return result, err
}

// recent keeps the last months months of series, counted back from its
// latest observation. Zero keeps the whole series.
func (s *AnalyticsService) recent(series models.TimeSeries, months int) models.TimeSeries {
	last, ok := series.Last()
	if months <= 0 || !ok {
		return series
	}
	return s.preparer.FilterRecent(series, months, last.Timestamp)
}

// cached serves key from the result cache or computes and stores it.
func cached[T any](ctx context.Context, s *AnalyticsService, key string, compute func() (T, error)) (T, error) {
	if s.cache != nil {
		var hit T
		found, err := s.cache.Get(ctx, key, &hit)
		switch {
		case err != nil:
			s.metrics.RecordCache("error")
			s.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		case found:
			s.metrics.RecordCache("hit")
			return hit, nil
		default:
			s.metrics.RecordCache("miss")
		}
	}

	result, err := compute()
	if err != nil {
		return result, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.config.CacheTTL); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
		}
	}
	return result, nil
}

func uniqueSorted(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
