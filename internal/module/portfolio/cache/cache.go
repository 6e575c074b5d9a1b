package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tradegateway/internal/config"
	"tradegateway/internal/module/portfolio/dto"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache holds consolidated portfolios in Redis for the configured TTL.
// A missing or broken Redis degrades to cacheless operation.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New creates the portfolio cache.
func New(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) *Cache {
	return &Cache{
		rdb:    rdb,
		ttl:    time.Duration(cfg.Portfolio.CacheTTLSec) * time.Second,
		logger: logger,
	}
}

func key(userID uuid.UUID) string {
	return fmt.Sprintf("portfolio:user:%s", userID)
}

// Get returns the cached portfolio for a user, if present.
func (c *Cache) Get(ctx context.Context, userID uuid.UUID) (*dto.PortfolioResponse, bool) {
	if c.rdb == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, key(userID)).Bytes()
	if err != nil {
		return nil, false
	}

	var out dto.PortfolioResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Debug("portfolio cache entry corrupt, dropping", zap.Error(err))
		c.Invalidate(ctx, userID)
		return nil, false
	}
	out.FromCache = true
	return &out, true
}

// Set stores a freshly built portfolio.
func (c *Cache) Set(ctx context.Context, userID uuid.UUID, portfolio *dto.PortfolioResponse) {
	if c.rdb == nil {
		return
	}

	raw, err := json.Marshal(portfolio)
	if err != nil {
		c.logger.Debug("portfolio cache marshal failed", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key(userID), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("portfolio cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached portfolio. Called eagerly on connect and
// disconnect so the next read reflects the new connection set.
func (c *Cache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key(userID)).Err(); err != nil {
		c.logger.Debug("portfolio cache invalidate failed", zap.Error(err))
	}
}
