package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"eventportal/internal/domain"
)

// fixedWindow increments the counter and starts its window on the first hit.
var fixedWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Connect returns a client for addr, or nil when Redis cannot be reached.
// Callers treat a nil client as "rate limiting disabled".
func Connect(ctx context.Context, addr, password string, db int, logger *slog.Logger) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, rate limiting disabled", "addr", addr, "err", err)
		_ = client.Close()
		return nil
	}
	return client
}

type redisLimiter struct {
	rdb    redis.Scripter
	prefix string
	logger *slog.Logger
}

// NewRedisLimiter returns a fixed-window RateLimiter. With a nil client every call is allowed.
func NewRedisLimiter(rdb *redis.Client, prefix string, logger *slog.Logger) domain.RateLimiter {
	if rdb == nil {
		return allowAll{}
	}
	return &redisLimiter{rdb: rdb, prefix: prefix, logger: logger}
}

// Allow fails open: a Redis error lets the request through and is only logged.
func (l *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := fixedWindow.Run(ctx, l.rdb, []string{l.key(key)}, window.Milliseconds()).Int64()
	if err != nil {
		l.logger.WarnContext(ctx, "rate limit check failed", "key", key, "err", err)
		return true, nil
	}
	return n <= int64(limit), nil
}

func (l *redisLimiter) key(k string) string {
	return fmt.Sprintf("%s:%s", l.prefix, k)
}

type allowAll struct{}

func (allowAll) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}
