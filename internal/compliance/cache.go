package compliance

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"dppengine/internal/passport"
)

// CachedAggregator fronts Aggregate with a Redis cache keyed by record id.
// Cache misses and Redis outages fall back to the pure computation, so the
// decorator never changes results and never fails a read.
type CachedAggregator struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedAggregator builds the decorator. A nil client disables caching.
func NewCachedAggregator(client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedAggregator {
	return &CachedAggregator{client: client, ttl: ttl, logger: logger}
}

func cacheKey(recordID string) string {
	return "dpp:compliance:" + recordID
}

// Aggregate returns the cached overall status for the record, computing and
// storing it on miss.
func (c *CachedAggregator) Aggregate(ctx context.Context, recordID string, entries map[string]passport.ComplianceEntry) Status {
	if c.client != nil {
		cached, err := c.client.Get(ctx, cacheKey(recordID)).Result()
		if err == nil {
			return Status(cached)
		}
		if err != redis.Nil && c.logger != nil {
			c.logger.WarnContext(ctx, "compliance cache read failed", "record_id", recordID, "error", err)
		}
	}

	status := Aggregate(entries)

	if c.client != nil {
		if err := c.client.Set(ctx, cacheKey(recordID), string(status), c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.WarnContext(ctx, "compliance cache write failed", "record_id", recordID, "error", err)
		}
	}
	return status
}

// Invalidate drops the cached status for a record. Mutating paths call this
// after a successful write so readers never see a stale rollup past the TTL.
func (c *CachedAggregator) Invalidate(ctx context.Context, recordID string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKey(recordID)).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "compliance cache invalidation failed", "record_id", recordID, "error", err)
	}
}
