// Package ratelimit throttles failed login attempts with Redis counters.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis failures so callers can decide to fail open.
var ErrUnavailable = errors.New("rate limiter unavailable")

// LoginLimiter counts failed logins per email and per client IP in fixed
// windows. A nil *LoginLimiter allows everything.
type LoginLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	window      time.Duration
	prefix      string
}

func NewLoginLimiter(client redis.UniversalClient, maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		redis:       client,
		maxAttempts: maxAttempts,
		window:      window,
		prefix:      "todoapi:login",
	}
}

func (l *LoginLimiter) keys(email, ip string) []string {
	keys := []string{l.prefix + ":email:" + email}
	if ip != "" {
		keys = append(keys, l.prefix+":ip:"+ip)
	}
	return keys
}

// Check returns common.ErrorRateLimited once either counter has reached
// the attempt budget for the current window.
func (l *LoginLimiter) Check(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}

	for _, key := range l.keys(email, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if count >= int64(l.maxAttempts) {
			return common.ErrorRateLimited
		}
	}

	return nil
}

// Fail records one failed attempt.
func (l *LoginLimiter) Fail(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}

	for _, key := range l.keys(email, ip) {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		// the window starts with the first failure
		if count == 1 {
			if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
	}

	return nil
}

// Reset clears the email counter after a successful login. The IP counter
// is kept so one address cannot probe many accounts.
func (l *LoginLimiter) Reset(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}

	if err := l.redis.Del(ctx, l.prefix+":email:"+email).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
