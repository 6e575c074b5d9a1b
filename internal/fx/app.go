package fx

import (
	"context"
	"net/http"
	"time"

	"tradegateway/internal/config"
	"tradegateway/internal/database"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppModule provides the main application dependencies
var AppModule = fx.Module("app",
	fx.Invoke(
		// Run migrations (must run before server starts)
		RunMigrations,

		// Start server
		StartServer,
	),
)

// RunMigrations runs database migrations
func RunMigrations(db *gorm.DB, logger *zap.Logger) {
	logger.Info("=== Database Migration Phase ===")

	if err := database.AutoMigrate(db, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	logger.Info("=== Migration Complete ===")
}

// StartServer starts the HTTP server with graceful shutdown
func StartServer(lc fx.Lifecycle, router *gin.Engine, cfg *config.Config, logger *zap.Logger) {
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("🚀 Starting HTTP server",
					zap.String("addr", server.Addr),
				)
				logger.Info("Server URLs",
					zap.String("base", "http://"+cfg.Server.Host+":"+cfg.Server.Port),
					zap.String("health", "http://"+cfg.Server.Host+":"+cfg.Server.Port+"/healthz"),
				)

				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Failed to start server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", zap.Error(err))
				return err
			}

			logger.Info("✅ Server gracefully stopped")
			return nil
		},
	})
}
