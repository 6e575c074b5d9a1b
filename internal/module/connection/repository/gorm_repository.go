package repository

import (
	"context"
	"errors"

	"tradegateway/internal/brokers"
	"tradegateway/internal/module/connection/domain"
	"tradegateway/internal/shared"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM-based connection repository.
func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Insert(ctx context.Context, conn *domain.Connection) error {
	return r.db.WithContext(ctx).Create(conn).Error
}

func (r *gormRepository) Update(ctx context.Context, conn *domain.Connection) error {
	return r.db.WithContext(ctx).Save(conn).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Connection, error) {
	var conn domain.Connection
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrConnectionGone
		}
		return nil, err
	}
	return &conn, nil
}

func (r *gormRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Connection, error) {
	var conns []*domain.Connection
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *gormRepository) FindByUserAndBroker(ctx context.Context, userID uuid.UUID, kind brokers.Kind) ([]*domain.Connection, error) {
	var conns []*domain.Connection
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND broker_kind = ?", userID, kind).
		Order("created_at DESC").
		Find(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *gormRepository) FindByStatus(ctx context.Context, statuses ...domain.Status) ([]*domain.Connection, error) {
	var conns []*domain.Connection
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at DESC").
		Find(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
}
