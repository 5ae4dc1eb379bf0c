// Package ratelimit throttles event submissions per client address.
package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/event-relay/internal/metrics"
)

const keyPrefix = "event-relay:ratelimit:"

// RateLimiter decides whether a caller identified by key may submit now.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// admit keeps one sorted-set member per accepted request, scored by its
// arrival time in nanoseconds. Members older than the window are dropped
// before counting.
var admit = redis.NewScript(`
	redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
	if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
		return 0
	end
	redis.call('ZADD', KEYS[1], ARGV[1], ARGV[5])
	redis.call('PEXPIRE', KEYS[1], ARGV[4])
	return 1
`)

// RedisLimiter is a sliding-window limiter shared by every consumer
// process pointed at the same Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	seq    atomic.Uint64
}

// NewRedisRateLimiter connects to redisURL, verifies the connection and
// admits at most limit requests per key within any window.
func NewRedisRateLimiter(ctx context.Context, redisURL string, limit int, window time.Duration) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisLimiter{client: client, limit: limit, window: window}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixNano()
	member := fmt.Sprintf("%d-%d", now, l.seq.Add(1))

	admitted, err := admit.Run(ctx, l.client, []string{keyPrefix + key},
		now,
		now-l.window.Nanoseconds(),
		l.limit,
		l.window.Milliseconds()+1,
		member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	if admitted == 0 {
		metrics.RateLimitHits.Inc()
		return false, nil
	}
	return true, nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// NoOpRateLimiter admits everything. It stands in when rate limiting is
// disabled or Redis is unreachable.
type NoOpRateLimiter struct{}

func (NoOpRateLimiter) Allow(context.Context, string) (bool, error) { return true, nil }
func (NoOpRateLimiter) Close() error                                { return nil }
