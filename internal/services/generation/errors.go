package generation

import (
	"strings"

	"github.com/meetscribe/minutes/internal/errors"
)

// Error classes returned by ClassifyError.
const (
	ErrorClassRateLimit       = "rate_limit"
	ErrorClassCreditExhausted = "credit_exhausted"
	ErrorClassServerError     = "server_error"
	ErrorClassClientError     = "client_error"
	ErrorClassUnknown         = "unknown"
)

// ProviderError represents a classified error from a generation provider
type ProviderError struct {
	Type     string
	Message  string
	Provider string
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return e.Message
}

var (
	rateLimitMarkers = []string{"status 429", "http 429", "rate limit", "too many requests", "resource_exhausted", "quota"}
	creditMarkers    = []string{"status 402", "http 402", "insufficient credit", "credit exhausted", "billing"}
	serverMarkers    = []string{"status 5", "http 5", "server error", "internal error", "unavailable", "deadline exceeded"}
	clientMarkers    = []string{"status 4", "http 4", "bad request", "unauthorized", "forbidden", "invalid_argument", "permission_denied"}
)

// ClassifyError analyzes an error and returns a ProviderError with classification.
// Status codes carried by an AppError take precedence over message matching.
func ClassifyError(err error, provider string) *ProviderError {
	if err == nil {
		return nil
	}

	msg := err.Error()
	classified := func(kind string) *ProviderError {
		return &ProviderError{Type: kind, Message: msg, Provider: provider}
	}

	if appErr, ok := errors.As(err); ok && appErr.StatusCode >= 400 {
		switch {
		case appErr.StatusCode == 429:
			return classified(ErrorClassRateLimit)
		case appErr.StatusCode == 402:
			return classified(ErrorClassCreditExhausted)
		case appErr.StatusCode >= 500 && !containsAny(msg, rateLimitMarkers):
			return classified(ErrorClassServerError)
		case appErr.StatusCode < 500:
			return classified(ErrorClassClientError)
		}
	}

	switch {
	case containsAny(msg, rateLimitMarkers):
		return classified(ErrorClassRateLimit)
	case containsAny(msg, creditMarkers):
		return classified(ErrorClassCreditExhausted)
	case containsAny(msg, serverMarkers):
		return classified(ErrorClassServerError)
	case containsAny(msg, clientMarkers):
		return classified(ErrorClassClientError)
	default:
		return classified(ErrorClassUnknown)
	}
}

// IsRetryableError returns true for rate limits, exhausted credits and server errors.
func IsRetryableError(err error) bool {
	providerErr := ClassifyError(err, "")
	if providerErr == nil {
		return false
	}

	switch providerErr.Type {
	case ErrorClassRateLimit, ErrorClassCreditExhausted, ErrorClassServerError:
		return true
	default:
		return false
	}
}

func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
