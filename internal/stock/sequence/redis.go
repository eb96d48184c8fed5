package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCounter keeps one INCR key per prefix and month.
type RedisCounter struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCounter returns a counter backed by client. Keys expire ttl after
// their last increment; zero keeps them forever.
func NewRedisCounter(client redis.Cmdable, ttl time.Duration) *RedisCounter {
	return &RedisCounter{client: client, ttl: ttl}
}

// Key returns the redis key holding the counter of prefix for at's month.
func Key(prefix string, at time.Time) string {
	return "seq:" + prefix + Period(at)
}

// Next implements Counter.
func (c *RedisCounter) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	key := Key(prefix, at)

	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("increment sequence %s: %w", key, err)
	}
	if c.ttl > 0 {
		if err := c.client.Expire(ctx, key, c.ttl).Err(); err != nil {
			return "", fmt.Errorf("expire sequence %s: %w", key, err)
		}
	}
	return Format(prefix, at, n), nil
}
