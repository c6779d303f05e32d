// Package ratelimit throttles inbound webhook traffic per source.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLimitExceeded indicates the source has exhausted its window budget.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Limiter evaluates a sliding-window budget for a key.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// RedisLimiter keeps one sorted set of request timestamps per source; a
// shared Redis makes the budget hold across bot instances.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	log    *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a limiter allowing limit requests per window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		log:    log,
	}
}

// Allow records the request and returns ErrLimitExceeded when the window
// budget is spent. Redis failures are returned as-is so the caller can
// decide between failing open and failing closed.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	if l.limit <= 0 {
		return nil
	}

	now := time.Now()
	redisKey := "ratelimit:webhook:" + key
	cutoff := float64(now.Add(-l.window).UnixNano()) / float64(time.Millisecond)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("(%f", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()) / float64(time.Millisecond),
		Member: uuid.NewString(),
	})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return err
	}

	count, err := countCmd.Result()
	if err != nil {
		return err
	}

	if count > int64(l.limit) {
		return ErrLimitExceeded
	}

	return nil
}
