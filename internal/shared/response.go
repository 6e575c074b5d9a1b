package shared

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Note: ErrorResponse is defined in errors.go to avoid duplication

// SuccessResponse represents a successful response with data
type SuccessResponse[T any] struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// Success represents a successful response without data
type Success struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// RespondOK writes a 200 response with the standard envelope
func RespondOK[T any](c *gin.Context, message string, data T) {
	c.JSON(http.StatusOK, SuccessResponse[T]{
		Status:  http.StatusOK,
		Message: message,
		Data:    data,
	})
}

// RespondCreated writes a 201 response with the standard envelope
func RespondCreated[T any](c *gin.Context, message string, data T) {
	c.JSON(http.StatusCreated, SuccessResponse[T]{
		Status:  http.StatusCreated,
		Message: message,
		Data:    data,
	})
}

// RespondNoData writes a success response without a payload
func RespondNoData(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Success{
		Status:  http.StatusOK,
		Message: message,
	})
}

// RespondWithAppError writes an AppError using its embedded status code
func RespondWithAppError(c *gin.Context, err *AppError) {
	c.JSON(err.StatusCode, err.ToResponse())
}

// RespondWithError writes a generic error response
func RespondWithError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
