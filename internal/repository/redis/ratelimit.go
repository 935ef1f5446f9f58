package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter counts requests per key in fixed windows. A key may make
// requestsPerMinute+burst requests in each one-minute window.
type RateLimiter struct {
	client *Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  int64(requestsPerMinute + burst),
		window: time.Minute,
		now:    time.Now,
	}
}

// Allow counts one request for key.
// Returns (allowed, remaining, resetTime, error)
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	start := r.now().Truncate(r.window)
	windowKey := r.windowKey(key, start)

	var count *redis.IntCmd
	_, err := r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, windowKey)
		pipe.ExpireNX(ctx, windowKey, r.window)
		return nil
	})
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to count request: %w", err)
	}
	incr := count.Val()

	remaining := r.limit - incr
	if remaining < 0 {
		remaining = 0
	}

	return incr <= r.limit, int(remaining), start.Add(r.window), nil
}

// Reset clears the current window counter for key
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.rdb.Del(ctx, r.windowKey(key, r.now().Truncate(r.window))).Err()
}

func (r *RateLimiter) windowKey(key string, start time.Time) string {
	return fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, start.Unix())
}
