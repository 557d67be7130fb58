package generation

import (
	"errors"
	"net/http"
	"testing"

	apperrors "github.com/meetscribe/minutes/internal/errors"
)

func TestClassifyError_Messages(t *testing.T) {
	tests := []struct {
		want  string
		cases []string
	}{
		{ErrorClassRateLimit, []string{"API error: status 429", "rate limit exceeded", "Too Many Requests", "RESOURCE_EXHAUSTED: quota"}},
		{ErrorClassCreditExhausted, []string{"API error: status 402", "insufficient credits", "Credit exhausted", "billing issue"}},
		{ErrorClassServerError, []string{"API error: status 500", "HTTP 503", "server error occurred", "Internal Server Error", "service unavailable"}},
		{ErrorClassClientError, []string{"API error: status 400", "HTTP 401", "bad request", "PERMISSION_DENIED"}},
		{ErrorClassUnknown, []string{"some random error"}},
	}

	for _, tt := range tests {
		for _, tc := range tt.cases {
			providerErr := ClassifyError(errors.New(tc), "gemini")
			if providerErr.Type != tt.want {
				t.Errorf("Expected %s for '%s', got %s", tt.want, tc, providerErr.Type)
			}
			if providerErr.Provider != "gemini" {
				t.Errorf("Expected provider 'gemini', got %s", providerErr.Provider)
			}
		}
	}
}

func TestClassifyError_AppError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain 500", apperrors.NewGenerationError("server failed", "SERVER_ERROR", nil), ErrorClassServerError},
		{"vendor 429", apperrors.NewGenerationHTTPError("slow down", "HTTP", http.StatusTooManyRequests), ErrorClassRateLimit},
		{"vendor 402", apperrors.NewGenerationHTTPError("pay up", "HTTP", http.StatusPaymentRequired), ErrorClassCreditExhausted},
		{"blocked prompt", apperrors.NewGenerationHTTPError("prompt blocked", "BLOCKED", http.StatusUnprocessableEntity), ErrorClassClientError},
		{"validation", apperrors.NewValidationError("bad input", "BAD_INPUT", ""), ErrorClassClientError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err, "gemini").Type; got != tt.want {
				t.Errorf("ClassifyError() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if providerErr := ClassifyError(nil, "gemini"); providerErr != nil {
		t.Errorf("Expected nil for nil error, got %v", providerErr)
	}
}

func TestIsRetryableError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"rate limit", errors.New("status 429"), true},
		{"credit exhausted", errors.New("insufficient credits"), true},
		{"server error", errors.New("status 500"), true},
		{"client error", errors.New("status 400"), false},
		{"blocked", apperrors.NewGenerationHTTPError("blocked", "BLOCKED", http.StatusUnprocessableEntity), false},
		{"unknown error", errors.New("random"), false},
		{"nil error", nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if result := IsRetryableError(tc.err); result != tc.expected {
				t.Errorf("IsRetryableError(%v) = %v, expected %v", tc.err, result, tc.expected)
			}
		})
	}
}
