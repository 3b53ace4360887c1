// Package limiter throttles failed login attempts per account using a
// fixed window counter in Redis.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis failures. Callers may choose to fail open.
var ErrUnavailable = errors.New("login limiter unavailable")

const keyPrefix = "blindauth:login:"

// RedisLimiter allows at most maxAttempts failed logins per key within window.
type RedisLimiter struct {
	redis       *redis.Client
	maxAttempts int64
	window      time.Duration
}

func NewRedisLimiter(client *redis.Client, maxAttempts int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{redis: client, maxAttempts: int64(maxAttempts), window: window}
}

func (l *RedisLimiter) key(id string) string {
	return keyPrefix + strings.ToLower(id)
}

// Check returns common.ErrRateLimited once the failure budget for id is spent.
func (l *RedisLimiter) Check(ctx context.Context, id string) error {
	count, err := l.redis.Get(ctx, l.key(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= l.maxAttempts {
		return common.ErrRateLimited
	}
	return nil
}

// RecordFailure counts a failed attempt. The window starts at the first failure.
func (l *RedisLimiter) RecordFailure(ctx context.Context, id string) error {
	k := l.key(id)
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *RedisLimiter) Reset(ctx context.Context, id string) error {
	if err := l.redis.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Nop never limits.
type Nop struct{}

func (Nop) Check(context.Context, string) error         { return nil }
func (Nop) RecordFailure(context.Context, string) error { return nil }
func (Nop) Reset(context.Context, string) error         { return nil }
