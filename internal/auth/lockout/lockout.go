// Package lockout throttles repeated failed logins for the same email.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard tracks failed logins per email.
type Guard interface {
	// Locked reports whether further attempts for email are currently rejected.
	Locked(ctx context.Context, email string) (bool, error)
	// RecordFailure counts one failed attempt for email.
	RecordFailure(ctx context.Context, email string) error
	// Reset clears the failure count after a successful login.
	Reset(ctx context.Context, email string) error
}

const keyPrefix = "crm:login_failures:"

// RedisGuard stores failure counters in Redis with a rolling expiry.
type RedisGuard struct {
	client      redis.UniversalClient
	maxFailures int64
	window      time.Duration
}

// NewRedisGuard creates a guard that locks an email after maxFailures
// failures until window has passed since the first of them.
func NewRedisGuard(client redis.UniversalClient, maxFailures int, window time.Duration) *RedisGuard {
	if maxFailures < 1 {
		maxFailures = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisGuard{client: client, maxFailures: int64(maxFailures), window: window}
}

// NewRedisGuardFromURL parses redisURL and builds a guard on a fresh client.
func NewRedisGuardFromURL(redisURL string, maxFailures int, window time.Duration) (*RedisGuard, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisGuard(redis.NewClient(opt), maxFailures, window), nil
}

func (g *RedisGuard) Locked(ctx context.Context, email string) (bool, error) {
	n, err := g.client.Get(ctx, key(email)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read login failures: %w", err)
	}
	return n >= g.maxFailures, nil
}

func (g *RedisGuard) RecordFailure(ctx context.Context, email string) error {
	k := key(email)
	n, err := g.client.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	// the window starts at the first failure
	if n == 1 {
		if err := g.client.Expire(ctx, k, g.window).Err(); err != nil {
			return fmt.Errorf("expire login failures: %w", err)
		}
	}
	return nil
}

func (g *RedisGuard) Reset(ctx context.Context, email string) error {
	if err := g.client.Del(ctx, key(email)).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

func key(email string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// Noop never locks anyone out. Used when Redis is not configured.
type Noop struct{}

func (Noop) Locked(context.Context, string) (bool, error) { return false, nil }
func (Noop) RecordFailure(context.Context, string) error  { return nil }
func (Noop) Reset(context.Context, string) error          { return nil }

var (
	_ Guard = (*RedisGuard)(nil)
	_ Guard = Noop{}
)
