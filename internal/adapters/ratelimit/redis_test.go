package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewRedisLimiter_NilClientAllowsEverything(t *testing.T) {
	l := NewRedisLimiter(nil, "rl", noopLogger())
	for i := 0; i < 20; i++ {
		ok, err := l.Allow(context.Background(), "verification:reg-1", 5, 15*time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestConnect_EmptyAddr(t *testing.T) {
	assert.Nil(t, Connect(context.Background(), "", "", 0, noopLogger()))
}

func TestConnect_Unreachable(t *testing.T) {
	assert.Nil(t, Connect(context.Background(), "127.0.0.1:1", "", 0, noopLogger()))
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	defer rdb.Close()
	l := &redisLimiter{rdb: rdb, prefix: "rl", logger: noopLogger()}

	ok, err := l.Allow(context.Background(), "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_Key(t *testing.T) {
	l := &redisLimiter{prefix: "eventportal:rl"}
	assert.Equal(t, "eventportal:rl:verification:reg-1", l.key("verification:reg-1"))
}
