package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/logger"
)

type errorResponse struct {
	Error *errors.AppError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError renders err as {"error": AppError}. Errors that are not an
// AppError are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	appErr, ok := errors.As(err)
	if !ok {
		slog.ErrorContext(ctx, "Unhandled error", "path", r.URL.Path, "error", err, logger.WithTraceContext(ctx))
		appErr = errors.NewInternalError("internal server error", "INTERNAL_ERROR", err)
	} else if appErr.StatusCode >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Request failed", "path", r.URL.Path, "code", appErr.ErrorCode, "error", err, logger.WithTraceContext(ctx))
	}
	writeJSON(w, appErr.StatusCode, errorResponse{Error: appErr})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.NewValidationError("invalid request body", "INVALID_REQUEST_BODY", "Send a JSON object")
	}
	return nil
}
