package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLimiter(client, "signin", limit, window), mr
}

func TestLimiter_AllowUntilLimit(t *testing.T) {
	limiter, mr := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Allow(ctx, "alice"))
	}
	assert.ErrorIs(t, limiter.Allow(ctx, "alice"), ErrLimitExceeded)

	// 其他用户不受影响
	assert.NoError(t, limiter.Allow(ctx, "bob"))

	ttl := mr.TTL("ratelimit:signin:alice")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestLimiter_WindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "alice"))
	assert.ErrorIs(t, limiter.Allow(ctx, "alice"), ErrLimitExceeded)

	mr.FastForward(time.Minute + time.Second)
	assert.NoError(t, limiter.Allow(ctx, "alice"))
}

func TestLimiter_Reset(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "alice"))
	require.NoError(t, limiter.Reset(ctx, "alice"))
	assert.False(t, mr.Exists("ratelimit:signin:alice"))
	assert.NoError(t, limiter.Allow(ctx, "alice"))
}

func TestLimiter_NilIsNoop(t *testing.T) {
	var limiter *Limiter
	assert.NoError(t, limiter.Allow(context.Background(), "x"))
	assert.NoError(t, limiter.Reset(context.Background(), "x"))
	assert.Nil(t, NewLimiter(nil, "signin", 5, time.Minute))
}

func TestLimiter_RedisDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, 3, time.Minute)
	mr.Close()
	assert.Error(t, limiter.Allow(context.Background(), "alice"))
}
