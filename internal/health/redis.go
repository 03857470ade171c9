package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisProbeKey = "afisha:health:probe"

// RedisChecker probes the Redis behind the page cache and rate limiter.
// Both write on every request, so a read-only replica counts as unhealthy.
type RedisChecker struct {
	client redis.Cmdable
}

// NewRedisChecker returns a checker for client.
func NewRedisChecker(client redis.Cmdable) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck writes a short-lived probe key.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	if err := r.client.Set(ctx, redisProbeKey, time.Now().Unix(), 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis write probe: %w", err)
	}
	return nil
}
