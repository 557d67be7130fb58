package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/services/storage"
)

type GenerateUploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

type GenerateUploadURLResponse struct {
	SignedURL string `json:"signedUrl"`
	GCSPath   string `json:"gcsPath"`
}

func (s *Server) HandleGenerateUploadURL(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		writeError(w, r, errors.NewStorageError("object storage is not configured", "STORAGE_NOT_CONFIGURED", nil))
		return
	}

	var req GenerateUploadURLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		writeError(w, r, errors.NewValidationError("missing or invalid parameter: filename (must be a non-empty string)", "MISSING_FILENAME", ""))
		return
	}
	if strings.TrimSpace(req.ContentType) == "" {
		writeError(w, r, errors.NewValidationError("missing or invalid parameter: contentType (must be a non-empty string)", "MISSING_CONTENT_TYPE", ""))
		return
	}

	key := storage.UploadKey(req.Filename, s.now())
	signedURL, err := s.storage.PresignUpload(r.Context(), key, req.ContentType, s.cfg.Upload.SignedURLTTL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Upload URL signed", "key", key, "content_type", req.ContentType)
	writeJSON(w, http.StatusOK, GenerateUploadURLResponse{
		SignedURL: signedURL,
		GCSPath:   s.storage.URI(key),
	})
}

type DeleteFileRequest struct {
	GCSPath string `json:"gcsPath"`
}

// HandleDeleteFile removes a staged upload. Deleting a missing object succeeds.
func (s *Server) HandleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		writeError(w, r, errors.NewStorageError("object storage is not configured", "STORAGE_NOT_CONFIGURED", nil))
		return
	}

	var req DeleteFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.GCSPath) == "" {
		writeError(w, r, errors.NewValidationError("missing or invalid parameter: gcsPath (must be a non-empty string)", "MISSING_GCS_PATH", ""))
		return
	}

	bucket, key, err := storage.ParseURI(req.GCSPath)
	if err != nil {
		writeError(w, r, errors.NewValidationError("invalid GCS path format, expected gs://bucket-name/file/path", "INVALID_GCS_PATH", ""))
		return
	}
	if bucket != s.storage.Bucket() {
		writeError(w, r, errors.NewForbiddenError("cannot delete from the specified bucket", "FORBIDDEN_BUCKET", ""))
		return
	}
	if !storage.IsUploadKey(key) {
		writeError(w, r, errors.NewForbiddenError("only uploaded recordings can be deleted", "FORBIDDEN_OBJECT", ""))
		return
	}

	if err := s.storage.Delete(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Staged file deleted", "key", key)
	w.WriteHeader(http.StatusNoContent)
}
