package utils

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeInvalidCredentials   ErrorCode = "INVALID_CREDENTIALS"
	CodeTokenExpired         ErrorCode = "TOKEN_EXPIRED"
	CodeTokenInvalid         ErrorCode = "TOKEN_INVALID"
	CodeAccessDenied         ErrorCode = "ACCESS_DENIED"
	CodeEmailNotVerified     ErrorCode = "EMAIL_NOT_VERIFIED"
	CodeValidation           ErrorCode = "VALIDATION_ERROR"
	CodeRequiredFieldMissing ErrorCode = "REQUIRED_FIELD_MISSING"
	CodeInvalidFormat        ErrorCode = "INVALID_FORMAT"
	CodeNotFound             ErrorCode = "RESOURCE_NOT_FOUND"
	CodeAlreadyExists        ErrorCode = "RESOURCE_ALREADY_EXISTS"
	CodeConflict             ErrorCode = "RESOURCE_CONFLICT"
	CodeInsufficientPoints   ErrorCode = "INSUFFICIENT_POINTS"
	CodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
	CodeDatabase             ErrorCode = "DATABASE_ERROR"
	CodeExternalService      ErrorCode = "EXTERNAL_SERVICE_ERROR"
	CodeServiceUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
)

var errorNumbers = map[ErrorCode]int{
	CodeInvalidCredentials:   1001,
	CodeTokenExpired:         1002,
	CodeTokenInvalid:         1003,
	CodeAccessDenied:         1004,
	CodeEmailNotVerified:     1005,
	CodeValidation:           1101,
	CodeRequiredFieldMissing: 1102,
	CodeInvalidFormat:        1103,
	CodeNotFound:             1201,
	CodeAlreadyExists:        1202,
	CodeConflict:             1203,
	CodeInsufficientPoints:   1204,
	CodeRateLimitExceeded:    1301,
	CodeInternal:             9001,
	CodeDatabase:             9002,
	CodeExternalService:      9003,
	CodeServiceUnavailable:   9004,
}

// Number returns the numeric catalogue value of the code.
func (c ErrorCode) Number() int {
	if n, ok := errorNumbers[c]; ok {
		return n
	}
	return errorNumbers[CodeInternal]
}

// AppError is a business-rule failure that maps directly onto an HTTP response.
type AppError struct {
	Status  int         `json:"-"`
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

func NewAppError(status int, code ErrorCode, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

func NewValidationError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeValidation, message)
}

func NewNotFound(resource string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, resource+" not found")
}

func NewAlreadyExists(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeAlreadyExists, message)
}

func NewConflict(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeConflict, message)
}

func NewForbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeAccessDenied, message)
}

func NewUnauthorized(code ErrorCode, message string) *AppError {
	return NewAppError(http.StatusUnauthorized, code, message)
}

func NewInternal(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternal, message)
}

type InsufficientPointsDetails struct {
	Available int64 `json:"available"`
	Required  int64 `json:"required"`
}

func NewInsufficientPoints(available, required int64) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInsufficientPoints, "Insufficient points").
		WithDetails(InsufficientPointsDetails{Available: available, Required: required})
}
