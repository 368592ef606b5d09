package cache

import (
	"context"
	"strings"
	"time"
)

// CacheReport combines the analysis cache counters with what Redis reports
// about itself.
type CacheReport struct {
	Stats        AnalysisCacheStats `json:"stats"`
	HitRate      float64            `json:"hit_rate"`
	AnalysisKeys int64              `json:"analysis_keys"`
	KeyCount     int64              `json:"key_count"`
	RedisInfo    map[string]string  `json:"redis_info"`
	Breaker      *BreakerStats      `json:"breaker,omitempty"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// Report gathers the cache counters and Redis server details. INFO is
// optional; servers that reject it leave RedisInfo empty.
func (c *RedisAnalysisCache) Report(ctx context.Context) (CacheReport, error) {
	stats := c.Stats()
	report := CacheReport{
		Stats:       stats,
		HitRate:     stats.HitRate(),
		RedisInfo:   map[string]string{},
		GeneratedAt: c.now().UTC(),
	}

	keyCount, err := c.redis.DBSize(ctx).Result()
	if err != nil {
		return CacheReport{}, err
	}
	report.KeyCount = keyCount

	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		report.AnalysisKeys++
	}
	if err := iter.Err(); err != nil {
		return CacheReport{}, err
	}

	if info, err := c.redis.Info(ctx, "memory", "clients", "keyspace").Result(); err == nil {
		report.RedisInfo = parseRedisInfo(info)
	} else {
		c.logger.WithError(err).Debug("Redis INFO unavailable")
	}
	return report, nil
}

// parseRedisInfo parses the "key:value" lines of an INFO reply.
func parseRedisInfo(info string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			result[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return result
}
