package service

import (
	"context"

	"tradegateway/internal/module/portfolio/aggregate"
	"tradegateway/internal/module/portfolio/cache"
	"tradegateway/internal/module/portfolio/dto"
	"tradegateway/internal/module/portfolio/fetcher"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service assembles the consolidated portfolio: cache first, then the
// fan-out + aggregation pipeline.
type Service struct {
	fetcher    *fetcher.Fetcher
	aggregator *aggregate.Aggregator
	cache      *cache.Cache
	logger     *zap.Logger
}

// NewService creates the portfolio service.
func NewService(f *fetcher.Fetcher, a *aggregate.Aggregator, c *cache.Cache, logger *zap.Logger) *Service {
	return &Service{fetcher: f, aggregator: a, cache: c, logger: logger}
}

// GetPortfolio returns the consolidated portfolio for a user.
func (s *Service) GetPortfolio(ctx context.Context, userID uuid.UUID) (*dto.PortfolioResponse, error) {
	if cached, ok := s.cache.Get(ctx, userID); ok {
		return cached, nil
	}

	result, err := s.fetcher.FetchAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	consolidated := s.aggregator.Aggregate(ctx, userID, result.Portfolios)
	response := dto.FromPortfolio(consolidated, result.Statuses)

	s.cache.Set(ctx, userID, response)
	return response, nil
}
