package order

import (
	"tradegateway/internal/middleware"
	"tradegateway/internal/module/order/handler"
	"tradegateway/internal/module/order/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// Module provides order routing dependencies
var Module = fx.Module("order",
	fx.Provide(
		service.NewRouter,
		handler.NewHandler,
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(
	router *gin.Engine,
	h *handler.Handler,
	auth *middleware.Middleware,
) {
	h.RegisterRoutes(router, auth)
}
