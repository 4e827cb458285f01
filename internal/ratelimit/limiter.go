// Package ratelimit implements fixed-window rate limiting backed by Redis.
//
// Each (keyspace, key) pair owns an independent counter. The window starts at
// the first consume and ends period later; the counter then expires and the
// next consume opens a fresh window. A burst straddling a window boundary can
// therefore admit up to 2×limit requests — an accepted property of the
// fixed-window algorithm, not a defect.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keyspace partitions counters so unrelated quotas never share a key.
type Keyspace string

const (
	// KeyspaceUser meters generations per authenticated user.
	KeyspaceUser Keyspace = "generate:user"
	// KeyspaceOrigin meters generations per caller network origin.
	KeyspaceOrigin Keyspace = "generate:origin"
)

// Result is the outcome of a quota query. A denial is not an error.
type Result struct {
	OK         bool
	RetryAfter time.Duration
}

// Limiter enforces a fixed-window limit per (keyspace, key).
type Limiter struct {
	rdb    redis.Cmdable
	limit  int
	period time.Duration
}

// consumeScript checks and increments in one atomic step. Redis executes
// scripts serially, so two concurrent consumes of the last slot cannot both
// succeed. The counter is only created (with its TTL) when a slot is taken;
// a denied request leaves the window untouched.
var consumeScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= tonumber(ARGV[1]) then
	return {0, redis.call('PTTL', KEYS[1])}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, 0}
`)

// New creates a Limiter allowing limit consumes per period for each key.
func New(rdb redis.Cmdable, limit int, period time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, period: period}
}

// Limit returns the configured per-window limit.
func (l *Limiter) Limit() int {
	return l.limit
}

// Consume atomically takes one slot from the key's current window. When the
// window is exhausted it returns OK=false and the time until the window
// resets; the counter is not advanced in that case.
func (l *Limiter) Consume(ctx context.Context, ks Keyspace, key string) (Result, error) {
	vals, err := consumeScript.Run(ctx, l.rdb, []string{l.redisKey(ks, key)},
		l.limit, l.period.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit consume %s/%s: %w", ks, key, err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate limit consume %s/%s: unexpected script reply", ks, key)
	}

	if vals[0] == 1 {
		return Result{OK: true}, nil
	}
	return Result{OK: false, RetryAfter: l.retryAfter(vals[1])}, nil
}

// Check answers whether a consume would currently succeed. It is a pure read
// and never advances the counter.
func (l *Limiter) Check(ctx context.Context, ks Keyspace, key string) (Result, error) {
	rk := l.redisKey(ks, key)

	pipe := l.rdb.Pipeline()
	getCmd := pipe.Get(ctx, rk)
	ttlCmd := pipe.PTTL(ctx, rk)
	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return Result{}, fmt.Errorf("rate limit check %s/%s: %w", ks, key, err)
	}

	count, err := getCmd.Int64()
	if err == redis.Nil {
		return Result{OK: true}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check %s/%s: %w", ks, key, err)
	}

	if count < int64(l.limit) {
		return Result{OK: true}, nil
	}
	return Result{OK: false, RetryAfter: l.retryAfter(ttlCmd.Val().Milliseconds())}, nil
}

// Usage returns the number of slots consumed in the key's current window.
func (l *Limiter) Usage(ctx context.Context, ks Keyspace, key string) (int, error) {
	count, err := l.rdb.Get(ctx, l.redisKey(ks, key)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rate limit usage %s/%s: %w", ks, key, err)
	}
	return count, nil
}

func (l *Limiter) redisKey(ks Keyspace, key string) string {
	return fmt.Sprintf("ratelimit:%s:%s", ks, key)
}

// retryAfter converts a PTTL reply to a wait duration. A key with no TTL
// (PTTL < 0) should not exist for an exhausted window; fall back to a full
// period rather than report an instant retry.
func (l *Limiter) retryAfter(ttlMs int64) time.Duration {
	if ttlMs <= 0 {
		return l.period
	}
	return time.Duration(ttlMs) * time.Millisecond
}
