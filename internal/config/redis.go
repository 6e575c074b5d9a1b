package config

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *Config, logger *zap.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("Invalid Redis URL, falling back to localhost", zap.Error(err))
		opts = &redis.Options{Addr: "localhost:6379"}
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolSize = 10
	opts.MinIdleConns = 5

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		// Don't fail startup, just log warning
		logger.Warn("Redis unavailable - portfolio and FX caching disabled")
	} else {
		logger.Info("Redis connected successfully", zap.String("addr", opts.Addr))
	}

	return client
}
