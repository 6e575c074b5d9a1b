package handler

import (
	"strings"

	"tradegateway/internal/brokers"
	"tradegateway/internal/middleware"
	"tradegateway/internal/module/order/domain"
	"tradegateway/internal/module/order/dto"
	"tradegateway/internal/module/order/service"
	"tradegateway/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handler serves order placement.
type Handler struct {
	router *service.Router
}

// NewHandler creates the order handler.
func NewHandler(router *service.Router) *Handler {
	return &Handler{router: router}
}

// RegisterRoutes mounts the order routes.
func (h *Handler) RegisterRoutes(router *gin.Engine, auth *middleware.Middleware) {
	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())
	{
		api.POST("/orders", h.placeOrder)
	}
}

func (h *Handler) placeOrder(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		shared.RespondWithAppError(c, shared.ErrUnauthorized)
		return
	}

	var req dto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondWithAppError(c, shared.ErrValidation.WithError(err))
		return
	}

	orderType := brokers.OrderType(strings.ToUpper(strings.TrimSpace(req.OrderType)))

	result, err := h.router.Route(c.Request.Context(), domain.Request{
		UserID:      userID,
		Symbol:      req.Symbol,
		Exchange:    strings.ToUpper(strings.TrimSpace(req.Exchange)),
		Side:        domain.Side(strings.ToUpper(strings.TrimSpace(req.Side))),
		OrderType:   orderType,
		Quantity:    req.Quantity,
		Price:       decimal.NewFromFloat(req.Price),
		StopPrice:   decimal.NewFromFloat(req.StopPrice),
		TargetPrice: decimal.NewFromFloat(req.TargetPrice),
	})
	if err != nil {
		shared.RespondWithAppError(c, shared.ToAppError(err))
		return
	}

	shared.RespondOK(c, "Order routed", dto.FromResult(result))
}
