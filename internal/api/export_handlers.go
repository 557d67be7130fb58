package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/meetscribe/minutes/internal/errors"
)

type ExportToDocsRequest struct {
	MarkdownContent string `json:"markdownContent"`
	Title           string `json:"title"`
}

// HandleExportToDocs creates a Google Doc from generated minutes using the
// caller's Google access token from the Authorization header.
func (s *Server) HandleExportToDocs(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, r, errors.NewNotFoundError("Google Docs export is not enabled", "EXPORT_DISABLED", ""))
		return
	}

	var req ExportToDocsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.MarkdownContent) == "" || strings.TrimSpace(req.Title) == "" {
		writeError(w, r, errors.NewValidationError("missing required parameter: markdownContent or title", "MISSING_EXPORT_PARAMETERS", ""))
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		writeError(w, r, errors.NewUnauthorizedError("a Google access token is required, sign in with Google first", "MISSING_GOOGLE_TOKEN"))
		return
	}

	doc, err := s.exporter.Export(r.Context(), token, req.Title, req.MarkdownContent)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Minutes exported to Google Docs", "document_id", doc.ID)
	writeJSON(w, http.StatusOK, doc)
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
