// Package redisclient provides the shared Redis client for the application.
package redisclient

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/hesabgar/hesabgar-bot/pkg/config"
)

// New creates a Redis client from cfg and verifies the connection with Ping.
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return client, nil
}
