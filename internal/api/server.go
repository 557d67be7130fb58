package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/meetscribe/minutes/internal/config"
	"github.com/meetscribe/minutes/internal/db"
	"github.com/meetscribe/minutes/internal/middleware"
	"github.com/meetscribe/minutes/internal/minutes"
	"github.com/meetscribe/minutes/internal/services/docs"
)

// Pipeline runs a minutes request synchronously.
type Pipeline interface {
	MaxUploadBytes() int64
	Validate(req *minutes.Request) error
	Generate(ctx context.Context, req minutes.Request) (*minutes.Result, error)
}

// ObjectStore signs browser uploads and removes staged files.
type ObjectStore interface {
	Bucket() string
	URI(key string) string
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// JobStore persists asynchronous minutes jobs.
type JobStore interface {
	CreateJob(ctx context.Context, arg db.CreateJobParams) (db.MinutesJob, error)
	GetJob(ctx context.Context, id pgtype.UUID) (db.MinutesJob, error)
	ListJobsByOwner(ctx context.Context, arg db.ListJobsByOwnerParams) ([]db.MinutesJob, error)
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Exporter writes minutes to Google Docs on behalf of the caller.
type Exporter interface {
	Export(ctx context.Context, accessToken, title, markdown string) (*docs.Document, error)
}

// Deps are the optional collaborators of the API. A nil store, job store or
// queue disables the endpoints that need it.
type Deps struct {
	Pipeline Pipeline
	Storage  ObjectStore
	Jobs     JobStore
	Queue    Enqueuer
	Exporter Exporter
}

type Server struct {
	cfg      *config.Config
	pipeline Pipeline
	storage  ObjectStore
	jobs     JobStore
	queue    Enqueuer
	exporter Exporter
	now      func() time.Time
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: deps.Pipeline,
		storage:  deps.Storage,
		jobs:     deps.Jobs,
		queue:    deps.Queue,
		exporter: deps.Exporter,
		now:      time.Now,
	}
}

// Routes mounts the JSON API. Calls authorised by the service JWT go through
// middleware.AuthMiddleware; the Docs export is authorised by the caller's
// Google token instead.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HandleHealth)
	r.Get("/api/health", s.HandleAPIHealth)
	r.Post("/api/export-to-docs", s.HandleExportToDocs)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(s.cfg))
		r.Post("/api/minutes", s.HandleGenerateMinutes)
		r.Post("/api/generate-upload-url", s.HandleGenerateUploadURL)
		r.Post("/api/delete-file", s.HandleDeleteFile)
		r.Post("/api/jobs", s.HandleCreateJob)
		r.Get("/api/jobs", s.HandleListJobs)
		r.Get("/api/jobs/{id}", s.HandleJobStatus)
	})
}

func parseUUID(s string) pgtype.UUID {
	var u pgtype.UUID
	if err := u.Scan(s); err != nil {
		return pgtype.UUID{Valid: false}
	}
	return u
}

// ownerID is the JWT subject, or "anonymous" when auth is disabled.
func ownerID(r *http.Request) string {
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		return userID
	}
	return anonymousOwner
}

const anonymousOwner = "anonymous"
