package utils

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const RequestIDKey = "request_id"

type ErrorBody struct {
	Code    int         `json:"code"`
	Name    ErrorCode   `json:"name"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   ErrorBody    `json:"error"`
	Meta    ResponseMeta `json:"meta"`
}

// AsAppError maps any error onto an AppError. Unknown errors become a detail-free 500.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewAppError(http.StatusNotFound, CodeNotFound, "Resource not found")
	}
	return NewInternal("An unexpected error occurred")
}

// AbortWithError writes the error envelope and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	appErr := AsAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(RequestIDKey),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(appErr.Status, ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code:    appErr.Code.Number(),
			Name:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
		Meta: ResponseMeta{Timestamp: time.Now().UTC(), RequestID: c.GetString(RequestIDKey)},
	})
}
