package middleware

import (
	"fmt"
	"strings"

	"tradegateway/internal/config"
	"tradegateway/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const UserIDKey = "user_id"

// Middleware authenticates inbound requests. The gateway does not manage
// users itself; it only verifies the bearer token minted by the outer
// application and extracts the user id.
type Middleware struct {
	secret []byte
}

// NewMiddleware creates the auth middleware.
func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{secret: []byte(cfg.Auth.JWTSecret)}
}

// RequireAuth validates the Authorization header and stores the user id in
// the request context.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			shared.RespondWithAppError(c, shared.ErrUnauthorized.WithDetails("reason", "missing bearer token"))
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			shared.RespondWithAppError(c, shared.ErrUnauthorized.WithDetails("reason", "invalid token"))
			c.Abort()
			return
		}

		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			shared.RespondWithAppError(c, shared.ErrUnauthorized.WithDetails("reason", "token subject is not a user id"))
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID extracts the authenticated user id from the context.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
