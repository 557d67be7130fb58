package api

import (
	"net/http"

	"github.com/meetscribe/minutes/internal/minutes"
)

// HandleGenerateMinutes is the JSON twin of the upload form: multipart in,
// {transcript, minutes, ...} out.
func (s *Server) HandleGenerateMinutes(w http.ResponseWriter, r *http.Request) {
	req, err := minutes.ParseMultipart(w, r, s.pipeline.MaxUploadBytes())
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.pipeline.Generate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
