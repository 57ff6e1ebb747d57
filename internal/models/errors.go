package models

import "errors"

// Общие ошибки приложения
var (
	ErrNotFound         = errors.New("resource not found")
	ErrReportNotFound   = errors.New("report not found")
	ErrProgressNotFound = errors.New("progress entry not found")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")

	ErrGenerationInProgress  = errors.New("generation is already in progress for this report")
	ErrReportAlreadyComplete = errors.New("report has already been generated")
	ErrShuttingDown          = errors.New("server is shutting down")

	ErrSinkClosed = errors.New("output sink is closed")
	ErrSinkFull   = errors.New("output sink buffer is full")

	ErrInvalidInput   = errors.New("invalid input data")
	ErrInternalServer = errors.New("internal server error")
)

// Коды ошибок для ответа API.
const (
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeTokenInvalid      = "TOKEN_INVALID"
	ErrCodeTokenExpired      = "TOKEN_EXPIRED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeGenerationRunning = "GENERATION_IN_PROGRESS"
	ErrCodeAlreadyGenerated  = "ALREADY_GENERATED"
	ErrCodeUnavailable       = "SERVICE_UNAVAILABLE"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// ErrorResponse - стандартное тело ответа об ошибке.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
