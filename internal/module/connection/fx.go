package connection

import (
	"context"

	"tradegateway/internal/middleware"
	"tradegateway/internal/module/connection/handler"
	"tradegateway/internal/module/connection/repository"
	"tradegateway/internal/module/connection/service"
	"tradegateway/internal/module/connection/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module provides connection management dependencies
var Module = fx.Module("connection",
	fx.Provide(
		provideRepository,
		service.NewLocks,
		service.NewTokenService,
		provideTokenSource,
		service.NewService,
		service.NewHealthService,
		worker.NewProbeWorker,
		handler.NewHandler,
	),
	fx.Invoke(
		registerRoutes,
		registerProbeWorkerLifecycle,
	),
)

func provideRepository(db *gorm.DB) repository.Repository {
	return repository.NewGormRepository(db)
}

// provideTokenSource exposes the token service behind the read-side
// interface the fetcher and order router consume.
func provideTokenSource(ts *service.TokenService) service.TokenSource {
	return ts
}

func registerRoutes(
	router *gin.Engine,
	h *handler.Handler,
	auth *middleware.Middleware,
) {
	h.RegisterRoutes(router, auth)
}

func registerProbeWorkerLifecycle(
	lc fx.Lifecycle,
	w *worker.ProbeWorker,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("🚀 Starting connection probe worker...")
			return w.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("🛑 Stopping connection probe worker...")
			return w.Stop(ctx)
		},
	})
}
