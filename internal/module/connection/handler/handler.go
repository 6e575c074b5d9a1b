package handler

import (
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/middleware"
	"tradegateway/internal/module/connection/dto"
	"tradegateway/internal/module/connection/service"
	"tradegateway/internal/oauth"
	"tradegateway/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves the connection management surface.
type Handler struct {
	service     service.Service
	health      *service.HealthService
	coordinator *oauth.Coordinator
}

// NewHandler creates the connection handler.
func NewHandler(svc service.Service, health *service.HealthService, coordinator *oauth.Coordinator) *Handler {
	return &Handler{service: svc, health: health, coordinator: coordinator}
}

// RegisterRoutes mounts the connection routes.
func (h *Handler) RegisterRoutes(router *gin.Engine, auth *middleware.Middleware) {
	api := router.Group("/api/v1")

	// Capability table is public.
	api.GET("/brokers", h.listBrokers)

	protected := api.Group("")
	protected.Use(auth.RequireAuth())
	{
		protected.GET("/brokers/:kind/auth-url", h.buildAuthURL)
		protected.POST("/connections/callback", h.connectCallback)
		protected.POST("/connections/tokens", h.connectWithTokens)
		protected.GET("/connections", h.listConnections)
		protected.DELETE("/connections/:id", h.disconnect)
		protected.GET("/health/connections", h.healthSummary)
	}
}

func (h *Handler) listBrokers(c *gin.Context) {
	out := make([]dto.BrokerProfileResponse, 0, len(brokers.AllKinds()))
	for _, kind := range brokers.AllKinds() {
		if p, ok := brokers.ProfileFor(kind); ok {
			out = append(out, dto.FromProfile(p))
		}
	}
	shared.RespondOK(c, "Supported brokers", out)
}

func (h *Handler) buildAuthURL(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		shared.RespondWithAppError(c, shared.ErrUnauthorized)
		return
	}

	kind, err := brokers.ParseKind(c.Param("kind"))
	if err != nil {
		shared.RespondWithAppError(c, shared.ErrUnknownBroker.WithError(err))
		return
	}
	redirectURI := c.Query("redirect_uri")
	if redirectURI == "" {
		shared.RespondWithAppError(c, shared.ErrValidation.WithDetails("reason", "redirect_uri is required"))
		return
	}

	authURL, err := h.coordinator.BuildAuthURL(userID.String(), kind, redirectURI)
	if err != nil {
		shared.RespondWithAppError(c, shared.ToAppError(err))
		return
	}

	shared.RespondOK(c, "Authorization URL built", dto.AuthURLResponse{
		Broker:  string(kind),
		AuthURL: authURL,
	})
}

func (h *Handler) connectCallback(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		shared.RespondWithAppError(c, shared.ErrUnauthorized)
		return
	}

	var req dto.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondWithAppError(c, shared.ErrValidation.WithError(err))
		return
	}
	kind, err := brokers.ParseKind(req.Broker)
	if err != nil {
		shared.RespondWithAppError(c, shared.ErrUnknownBroker.WithError(err))
		return
	}

	conn, err := h.service.Connect(c.Request.Context(), userID, kind, req.Code, req.RedirectURI, req.State)
	if err != nil {
		shared.RespondWithAppError(c, shared.ToAppError(err))
		return
	}

	shared.RespondCreated(c, "Broker connected", dto.FromConnection(conn))
}

func (h *Handler) connectWithTokens(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		shared.RespondWithAppError(c, shared.ErrUnauthorized)
		return
	}

	var req dto.TokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondWithAppError(c, shared.ErrValidation.WithError(err))
		return
	}
	kind, err := brokers.ParseKind(req.Broker)
	if err != nil {
		shared.RespondWithAppError(c, shared.ErrUnknownBroker.WithError(err))
		return
	}

	tokens := oauth.Tokens{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    req.TokenType,
		ExpiresIn:    req.ExpiresIn,
		Scope:        req.Scope,
		IssuedAt:     time.Now(),
	}
	if tokens.ExpiresIn <= 0 {
		tokens.ExpiresIn = 24 * 60 * 60
	}

	conn, err := h.service.ConnectWithTokens(c.Request.Context(), userID, kind, tokens)
	if err != nil {
		shared.RespondWithAppError(c, shared.ToAppError(err))
		return
	}

	shared.RespondCreated(c, "Broker connected", dto.FromConnection(conn))
}

func (h *Handler) listConnections(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		shared.RespondWithAppError(c, shared.ErrUnauthorized)
		return
	}

	conns, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		shared.RespondWithAppError(c, shared.ToAppError(err))
		return
	}

	shared.RespondOK(c, "Connections", dto.FromConnections(conns))
}

func (h *Handler) disconnect(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		shared.RespondWithAppError(c, shared.ErrUnauthorized)
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		shared.RespondWithAppError(c, shared.ErrValidation.WithDetails("reason", "invalid connection id"))
		return
	}

	if err := h.service.Disconnect(c.Request.Context(), userID, connectionID); err != nil {
		shared.RespondWithAppError(c, shared.ToAppError(err))
		return
	}

	shared.RespondNoData(c, "Broker disconnected")
}

func (h *Handler) healthSummary(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		shared.RespondWithAppError(c, shared.ErrUnauthorized)
		return
	}

	summary, err := h.health.Summarize(c.Request.Context(), userID)
	if err != nil {
		shared.RespondWithAppError(c, shared.ToAppError(err))
		return
	}

	shared.RespondOK(c, "Connection health", summary)
}
