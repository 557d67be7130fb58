package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType defines the category of the error
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "VALIDATION_ERROR"
	ErrorTypeTranscription ErrorType = "TRANSCRIPTION_ERROR"
	ErrorTypeGeneration    ErrorType = "GENERATION_ERROR"
	ErrorTypeStorage       ErrorType = "STORAGE_ERROR"
	ErrorTypeExport        ErrorType = "EXPORT_ERROR"
	ErrorTypeRateLimit     ErrorType = "RATE_LIMIT_ERROR"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeUnauthorized  ErrorType = "UNAUTHORIZED_ERROR"
	ErrorTypeForbidden     ErrorType = "FORBIDDEN_ERROR"
	ErrorTypeInternal      ErrorType = "INTERNAL_ERROR"
)

// AppError represents a structured error for the application
type AppError struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	StatusCode    int       `json:"statusCode"`
	ErrorCode     string    `json:"errorCode"`
	IsOperational bool      `json:"isOperational"`
	Recovery      string    `json:"recoverySuggestion,omitempty"`
	Err           error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Code returns the application-specific error code
func (e *AppError) Code() string {
	return e.ErrorCode
}

// RecoverySuggestion returns the suggestion on how to recover from the error
func (e *AppError) RecoverySuggestion() string {
	return e.Recovery
}

// IsRetryable determines if the operation that caused the error should be retried
func (e *AppError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit:
		return true
	case ErrorTypeTranscription, ErrorTypeGeneration, ErrorTypeStorage:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusCode returns the HTTP status for err, 500 when it is not an AppError.
func StatusCode(err error) int {
	if appErr, ok := As(err); ok && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// NewValidationError creates a new validation error (400)
func NewValidationError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeValidation,
		Message:       message,
		StatusCode:    http.StatusBadRequest,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeNotFound,
		Message:       message,
		StatusCode:    http.StatusNotFound,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewRateLimitError creates a new rate limit error (429)
func NewRateLimitError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeRateLimit,
		Message:       message,
		StatusCode:    http.StatusTooManyRequests,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewUnauthorizedError creates a new unauthorized error (401)
func NewUnauthorizedError(message string, errorCode string) *AppError {
	return &AppError{
		Type:          ErrorTypeUnauthorized,
		Message:       message,
		StatusCode:    http.StatusUnauthorized,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Sign in again and retry.",
	}
}

// NewForbiddenError creates a new forbidden error (403)
func NewForbiddenError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeForbidden,
		Message:       message,
		StatusCode:    http.StatusForbidden,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewTranscriptionError creates a new transcription error (500)
func NewTranscriptionError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeTranscription,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Check the recording plays correctly and try again.",
		Err:           err,
	}
}

// NewTranscriptionHTTPError creates a transcription error that keeps the vendor status code.
// Vendor 4xx responses stay 4xx so callers do not fall back to another provider for them.
func NewTranscriptionHTTPError(message string, errorCode string, status int) *AppError {
	appErr := NewTranscriptionError(message, errorCode, nil)
	if status >= 400 {
		appErr.StatusCode = status
	}
	return appErr
}

// NewTranscriptionUpstreamError reports a non-2xx response from a transcription
// vendor. See upstream for the status mapping.
func NewTranscriptionUpstreamError(vendor, codePrefix string, status int, body []byte) *AppError {
	return upstream(NewTranscriptionError("", "", nil), vendor, codePrefix, status, body)
}

// NewGenerationError creates a new minutes generation error (500)
func NewGenerationError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeGeneration,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Try again later or shorten the meeting information.",
		Err:           err,
	}
}

// NewGenerationHTTPError creates a generation error that keeps the vendor status code.
func NewGenerationHTTPError(message string, errorCode string, status int) *AppError {
	appErr := NewGenerationError(message, errorCode, nil)
	if status >= 400 {
		appErr.StatusCode = status
	}
	return appErr
}

// NewGenerationUpstreamError reports a non-2xx response from a generation vendor.
func NewGenerationUpstreamError(vendor, codePrefix string, status int, body []byte) *AppError {
	return upstream(NewGenerationError("", "", nil), vendor, codePrefix, status, body)
}

const maxUpstreamBody = 512

// upstream maps a vendor status onto our own response: 429 stays a rate limit,
// everything else becomes 502. The vendor body is kept on Err for logs only.
func upstream(e *AppError, vendor, codePrefix string, status int, body []byte) *AppError {
	e.Message = fmt.Sprintf("%s API error (status %d)", vendor, status)
	if len(body) > maxUpstreamBody {
		body = body[:maxUpstreamBody]
	}
	e.Err = fmt.Errorf("upstream response: %s", body)

	if status == http.StatusTooManyRequests {
		e.StatusCode = http.StatusTooManyRequests
		e.ErrorCode = codePrefix + "_RATE_LIMITED"
		e.Recovery = "The service is busy or out of quota. Wait a minute and try again."
		return e
	}
	e.StatusCode = http.StatusBadGateway
	e.ErrorCode = codePrefix + "_UPSTREAM_ERROR"
	return e
}

// NewStorageError creates a new object storage error (500)
func NewStorageError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeStorage,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Verify the bucket configuration and credentials.",
		Err:           err,
	}
}

// NewExportError creates a new document export error (500)
func NewExportError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeExport,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Sign in with Google again and grant Google Docs access.",
		Err:           err,
	}
}

// NewInternalError creates a new internal error (500)
func NewInternalError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  errorCode,
		Err:        err,
	}
}
