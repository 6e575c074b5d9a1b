package repository

import (
	"context"

	"tradegateway/internal/brokers"
	"tradegateway/internal/module/connection/domain"

	"github.com/google/uuid"
)

// Repository is the ConnectionStore: the single source of truth for
// connection records. All mutations go through the connection service.
type Repository interface {
	Insert(ctx context.Context, conn *domain.Connection) error
	Update(ctx context.Context, conn *domain.Connection) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Connection, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Connection, error)
	FindByUserAndBroker(ctx context.Context, userID uuid.UUID, kind brokers.Kind) ([]*domain.Connection, error)
	FindByStatus(ctx context.Context, statuses ...domain.Status) ([]*domain.Connection, error)
}
