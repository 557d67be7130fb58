package sentry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"
)

func TestHTTPMiddlewareRecoversPanic(t *testing.T) {
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestHTTPMiddlewareSetsHub(t *testing.T) {
	var hub *sentry.Hub
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub = sentry.GetHubFromContext(r.Context())
		SetUser(r.Context(), "user-1")
		CaptureError(r.Context(), errors.New("ignored without a client"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if hub == nil {
		t.Fatal("expected hub on request context")
	}
}

func TestInitWithoutDSN(t *testing.T) {
	if err := Init("", "test", "svc", "v1"); err != nil {
		t.Errorf("Init() with empty DSN should be a no-op, got %v", err)
	}
}
