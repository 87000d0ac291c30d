package database

import (
	"context"
	"fmt"
	"time"

	"civic-reporter/internal/config"
	"civic-reporter/internal/logger"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects to Redis. It returns nil without error when no address is configured.
func NewRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisAddress == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping Redis: %w", err)
	}

	logger.Info("Connected to Redis", map[string]interface{}{"address": cfg.RedisAddress})
	return client, nil
}
