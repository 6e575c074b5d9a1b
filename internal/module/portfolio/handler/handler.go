package handler

import (
	"tradegateway/internal/middleware"
	"tradegateway/internal/module/portfolio/service"
	"tradegateway/internal/shared"

	"github.com/gin-gonic/gin"
)

// Handler serves the consolidated portfolio surface.
type Handler struct {
	service *service.Service
}

// NewHandler creates the portfolio handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// RegisterRoutes mounts the portfolio routes.
func (h *Handler) RegisterRoutes(router *gin.Engine, auth *middleware.Middleware) {
	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())
	{
		api.GET("/portfolio", h.getPortfolio)
	}
}

func (h *Handler) getPortfolio(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		shared.RespondWithAppError(c, shared.ErrUnauthorized)
		return
	}

	portfolio, err := h.service.GetPortfolio(c.Request.Context(), userID)
	if err != nil {
		shared.RespondWithAppError(c, shared.ToAppError(err))
		return
	}

	shared.RespondOK(c, "Consolidated portfolio", portfolio)
}
