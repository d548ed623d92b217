package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 基于 Redis 的固定窗口计数器
// ============================================================================
//
// 用于限制同一用户名的登录尝试次数，多实例部署时计数共享。
//
// 计数：INCR key，第一次计数时设置过期时间（窗口长度）
//   - 用 Lua 脚本保证 INCR 和 PEXPIRE 的原子性，避免进程在两步之间崩溃留下永不过期的 key
//
// 成功登录后调用 Reset 删除计数。
//
// ============================================================================

var ErrLimitExceeded = errors.New("尝试次数过多，请稍后再试")

const keyPrefix = "ratelimit:"

var hitScript = redis.NewScript(`
	local current = redis.call("INCR", KEYS[1])
	if current == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return current
`)

// Limiter 固定窗口限流器
type Limiter struct {
	client *redis.Client
	scope  string        // key 前缀区分不同业务，例如 signin
	limit  int           // 窗口内允许的次数
	window time.Duration // 窗口长度
}

// NewLimiter 创建限流器，client 为空时返回 nil（不限流）
func NewLimiter(client *redis.Client, scope string, limit int, window time.Duration) *Limiter {
	if client == nil || limit <= 0 {
		return nil
	}
	return &Limiter{
		client: client,
		scope:  scope,
		limit:  limit,
		window: window,
	}
}

func (l *Limiter) key(subject string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, l.scope, subject)
}

// Allow 记录一次尝试，超过上限返回 ErrLimitExceeded
func (l *Limiter) Allow(ctx context.Context, subject string) error {
	if l == nil {
		return nil
	}

	count, err := hitScript.Run(ctx, l.client, []string{l.key(subject)}, l.window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redis 计数失败: %w", err)
	}

	if count > int64(l.limit) {
		return ErrLimitExceeded
	}
	return nil
}

// Reset 清除计数
func (l *Limiter) Reset(ctx context.Context, subject string) error {
	if l == nil {
		return nil
	}
	return l.client.Del(ctx, l.key(subject)).Err()
}
