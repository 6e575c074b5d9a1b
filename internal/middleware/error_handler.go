package middleware

import (
	"net/http"

	"tradegateway/internal/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware handles panics and errors
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := GetLogger(c)

		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("client_ip", c.ClientIP()),
					zap.Stack("stacktrace"),
				)

				if appErr, ok := err.(*shared.AppError); ok {
					shared.RespondWithAppError(c, appErr)
					c.Abort()
					return
				}

				shared.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			logger.Error("Request error",
				zap.Error(err),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
			)

			if appErr := shared.ToAppError(err); appErr != nil {
				shared.RespondWithAppError(c, appErr)
				c.Abort()
				return
			}

			shared.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
			c.Abort()
		}
	}
}

// RecoveryMiddleware provides panic recovery
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger := GetLogger(c)
		logger.Error("Panic recovered in recovery middleware",
			zap.Any("error", recovered),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		shared.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	})
}
