package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter, starts its expiry on the
// first hit and returns {count, pttl_ms}.
var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RedisRateLimitStore keeps the limiter windows in Redis so every API
// instance sees the same counts. When Redis errors the request is admitted.
type RedisRateLimitStore struct {
	client  redis.Scripter
	prefix  string
	metrics *Metrics
}

// NewRedisRateLimitStore returns a store on client. metrics may be nil.
func NewRedisRateLimitStore(client redis.Scripter, metrics *Metrics) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, prefix: "afisha:rl:", metrics: metrics}
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	count, ttl, err := s.hit(ctx, s.prefix+key, config.WindowDuration)
	if err != nil {
		slog.WarnContext(ctx, "rate limit store unavailable, admitting request", "key", key, "error", err)
		if s.metrics != nil {
			s.metrics.IncRateLimitFailOpen()
		}
		return true, config.RequestsPerWindow, 0
	}

	if left := config.RequestsPerWindow - count; left >= 0 {
		return true, left, 0
	}
	return false, 0, max(int((ttl+time.Second-1)/time.Second), 1)
}

func (s *RedisRateLimitStore) hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	res, err := fixedWindowScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("rate limit script returned %d values", len(res))
	}
	return int(res[0]), time.Duration(res[1]) * time.Millisecond, nil
}
