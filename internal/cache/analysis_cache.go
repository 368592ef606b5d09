package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/econ-trends/internal/telemetry"
	"github.com/irfndi/econ-trends/pkg/interfaces"
)

const defaultPrefix = "analysis:"

// AnalysisCacheEntry wraps a cached result with its write time.
type AnalysisCacheEntry struct {
	CachedAt time.Time       `json:"cached_at"`
	Payload  json.RawMessage `json:"payload"`
}

// AnalysisCacheStats tracks cache performance counters.
type AnalysisCacheStats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Errors      int64 `json:"errors"`
	Invalidated int64 `json:"invalidated"`
}

// HitRate returns hits as a percentage of lookups.
func (s AnalysisCacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// RedisAnalysisCache stores analysis results as JSON under
// "<prefix><indicator>:<operation>[:<params>]".
type RedisAnalysisCache struct {
	redis  *redis.Client
	prefix string
	logger *logrus.Logger
	now    func() time.Time

	mu    sync.RWMutex
	stats AnalysisCacheStats
}

var _ interfaces.ResultCache = (*RedisAnalysisCache)(nil)

func NewRedisAnalysisCache(client *redis.Client, logger *logrus.Logger) *RedisAnalysisCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisAnalysisCache{
		redis:  client,
		prefix: defaultPrefix,
		logger: logger,
		now:    time.Now,
	}
}

// Key builds the cache key of an operation on indicator. Empty params are skipped.
func Key(indicator, operation string, params ...string) string {
	parts := make([]string, 0, len(params)+2)
	parts = append(parts, indicator, operation)
	for _, p := range params {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ":")
}

// startSpan opens a client span for one cache command.
func startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return telemetry.GetCacheTracer().Start(ctx, "cache."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs, attribute.String("db.system", "redis"))...),
	)
}

// Get decodes the entry stored at key into dest.
func (c *RedisAnalysisCache) Get(ctx context.Context, key string, dest interface{}) (found bool, err error) {
	ctx, span := startSpan(ctx, "get", attribute.String("cache.key", key))
	defer func() {
		telemetry.SetSpanAttributes(span, attribute.Bool("cache.hit", found))
		telemetry.EndSpan(span, err)
	}()

	data, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.count(func(s *AnalysisCacheStats) { s.Misses++ })
		return false, nil
	}
	if err != nil {
		c.count(func(s *AnalysisCacheStats) { s.Errors++ })
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry AnalysisCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.count(func(s *AnalysisCacheStats) { s.Errors++ })
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if err := json.Unmarshal(entry.Payload, dest); err != nil {
		c.count(func(s *AnalysisCacheStats) { s.Errors++ })
		return false, fmt.Errorf("decode cached payload %s: %w", key, err)
	}

	c.count(func(s *AnalysisCacheStats) { s.Hits++ })
	return true, nil
}

// Set stores value at key for ttl. A ttl of zero keeps the entry until invalidated.
func (c *RedisAnalysisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) (err error) {
	ctx, span := startSpan(ctx, "set", attribute.String("cache.key", key))
	defer func() { telemetry.EndSpan(span, err) }()

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache payload %s: %w", key, err)
	}
	data, err := json.Marshal(AnalysisCacheEntry{CachedAt: c.now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	if err := c.redis.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		c.count(func(s *AnalysisCacheStats) { s.Errors++ })
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	c.count(func(s *AnalysisCacheStats) { s.Sets++ })
	return nil
}

// InvalidateIndicator removes every cached result of indicator.
func (c *RedisAnalysisCache) InvalidateIndicator(ctx context.Context, indicator string) (int, error) {
	return c.deleteMatching(ctx, c.prefix+indicator+":*")
}

// Clear removes every cached analysis result.
func (c *RedisAnalysisCache) Clear(ctx context.Context) (int, error) {
	return c.deleteMatching(ctx, c.prefix+"*")
}

func (c *RedisAnalysisCache) deleteMatching(ctx context.Context, pattern string) (removed int, err error) {
	ctx, span := startSpan(ctx, "delete", attribute.String("cache.pattern", pattern))
	defer func() {
		telemetry.SetSpanAttributes(span, attribute.Int("cache.removed", removed))
		telemetry.EndSpan(span, err)
	}()

	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("error scanning cache keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("error clearing cache: %w", err)
	}

	c.count(func(s *AnalysisCacheStats) { s.Invalidated += int64(len(keys)) })
	c.logger.WithFields(logrus.Fields{"pattern": pattern, "keys": len(keys)}).Info("Invalidated analysis cache entries")
	return len(keys), nil
}

// Stats returns a snapshot of the counters.
func (c *RedisAnalysisCache) Stats() AnalysisCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *RedisAnalysisCache) count(update func(*AnalysisCacheStats)) {
	c.mu.Lock()
	update(&c.stats)
	c.mu.Unlock()
}
