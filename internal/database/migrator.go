package database

import (
	connDomain "tradegateway/internal/module/connection/domain"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate applies the schema for every persisted entity. The gateway
// persists only connection records; everything else lives with the caller.
func AutoMigrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running auto migrations...")

	if err := db.AutoMigrate(&connDomain.Connection{}); err != nil {
		return err
	}

	logger.Info("✅ Migrations applied")
	return nil
}
