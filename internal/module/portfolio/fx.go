package portfolio

import (
	"tradegateway/internal/middleware"
	connService "tradegateway/internal/module/connection/service"
	"tradegateway/internal/module/portfolio/aggregate"
	"tradegateway/internal/module/portfolio/cache"
	"tradegateway/internal/module/portfolio/fetcher"
	"tradegateway/internal/module/portfolio/handler"
	"tradegateway/internal/module/portfolio/normalize"
	"tradegateway/internal/module/portfolio/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// Module provides the consolidated portfolio pipeline
var Module = fx.Module("portfolio",
	fx.Provide(
		normalize.New,
		fetcher.New,
		aggregate.New,
		cache.New,
		provideInvalidator,
		service.NewService,
		handler.NewHandler,
	),
	fx.Invoke(registerRoutes),
)

// provideInvalidator exposes the cache to the connection service so that
// connect/disconnect can eagerly drop a user's cached view.
func provideInvalidator(c *cache.Cache) connService.PortfolioInvalidator {
	return c
}

func registerRoutes(
	router *gin.Engine,
	h *handler.Handler,
	auth *middleware.Middleware,
) {
	h.RegisterRoutes(router, auth)
}
