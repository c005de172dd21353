package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pantheon-ops/tenantd/pkg/observability"
)

const cacheKeyPrefix = "tenantd:rbac:resolve:"

// DefaultCacheTTL bounds staleness after role or group edits that bypass
// Invalidate.
const DefaultCacheTTL = 5 * time.Minute

// CachedResolver fronts a Resolver with a per-caller Redis cache. A nil or
// unreachable Redis degrades to straight resolution.
type CachedResolver struct {
	resolver *Resolver
	client   *redis.Client
	ttl      time.Duration
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewCachedResolver wraps resolver with a Redis cache. metrics may be nil.
func NewCachedResolver(resolver *Resolver, client *redis.Client, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *CachedResolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedResolver{resolver: resolver, client: client, ttl: ttl, logger: logger, metrics: metrics}
}

func cacheKey(callerEmail, tenantID string) string {
	return cacheKeyPrefix + strings.ToLower(callerEmail) + ":" + tenantID
}

// Resolve returns the cached result for the caller when present, resolving
// and caching on a miss. Cache failures are logged and treated as misses.
func (c *CachedResolver) Resolve(ctx context.Context, callerEmail, tenantID string) (*ResolveResult, error) {
	if c.client == nil {
		return c.resolver.Resolve(ctx, callerEmail, tenantID)
	}

	key := cacheKey(callerEmail, tenantID)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var cached ResolveResult
		decodeErr := json.Unmarshal([]byte(raw), &cached)
		if decodeErr == nil {
			if c.metrics != nil {
				c.metrics.ResolveCacheHitsTotal.Inc()
			}
			return &cached, nil
		}
		c.logger.WithError(decodeErr).WithField("key", key).Warn("discarding malformed cache entry")
	} else if err != redis.Nil {
		c.logger.WithError(err).Warn("permission cache read failed")
	}
	if c.metrics != nil {
		c.metrics.ResolveCacheMissesTotal.Inc()
	}

	result, err := c.resolver.Resolve(ctx, callerEmail, tenantID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(result); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.WithError(err).Warn("permission cache write failed")
		}
	}
	return result, nil
}

// Invalidate drops every cached resolution. Called after role, group, or
// permission edits; the blast radius is deliberately the whole keyspace
// since role edits affect an unknown set of callers.
func (c *CachedResolver) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, cacheKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan permission cache: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to drop permission cache entries: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
