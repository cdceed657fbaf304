package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter keeps a short-TTL counter per competitor in redis, so the
// limit holds across multiple server processes.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, perSecond int) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  perSecond,
		window: time.Second,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, competitorID uint) (bool, error) {
	key := fmt.Sprintf("pactf:submit:%d", competitorID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.limit), nil
}
