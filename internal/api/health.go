package api

import (
	"net/http"
	"time"
)

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type HealthResponse struct {
	Status       string       `json:"status"`
	Timestamp    string       `json:"timestamp"`
	Environment  string       `json:"environment"`
	IsProduction bool         `json:"isProduction"`
	EnvCheck     *HealthCheck `json:"envCheck,omitempty"`
}

// HealthCheck reports which settings are present without exposing them.
type HealthCheck struct {
	TranscriptionProvider string `json:"transcriptionProvider"`
	GenerationProvider    string `json:"generationProvider"`
	HasGoogleCloudProject bool   `json:"hasGoogleCloudProject"`
	HasBucket             bool   `json:"hasBucket"`
	HasAssemblyAIKey      bool   `json:"hasAssemblyAIKey"`
	HasGeminiKey          bool   `json:"hasGeminiKey"`
	JobsEnabled           bool   `json:"jobsEnabled"`
	AuthEnabled           bool   `json:"authEnabled"`
}

func (s *Server) HandleAPIHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:       "healthy",
		Timestamp:    s.now().UTC().Format(time.RFC3339),
		Environment:  s.cfg.Env,
		IsProduction: s.cfg.IsProduction(),
	}
	if !resp.IsProduction {
		resp.EnvCheck = &HealthCheck{
			TranscriptionProvider: s.cfg.Transcription.Provider,
			GenerationProvider:    s.cfg.Generation.Provider,
			HasGoogleCloudProject: s.cfg.GoogleProject != "",
			HasBucket:             s.cfg.StorageBucket != "",
			HasAssemblyAIKey:      s.cfg.AssemblyAIKey != "",
			HasGeminiKey:          s.cfg.GeminiAPIKey != "",
			JobsEnabled:           s.jobsEnabled(),
			AuthEnabled:           s.cfg.AuthJWTSecret != "",
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
