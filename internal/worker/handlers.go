package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/meetscribe/minutes/internal/db"
	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/metrics"
	"github.com/meetscribe/minutes/internal/minutes"
	"github.com/meetscribe/minutes/internal/services/storage"
	"github.com/meetscribe/minutes/internal/services/transcription"
)

const (
	// ProcessTimeout bounds one minutes task, long enough for the slowest batch recognition.
	ProcessTimeout = 3*transcription.MaxAudioDuration + time.Hour
	// StaleJobAge is how long an unfinished job may go without progress before cleanup fails it.
	StaleJobAge = ProcessTimeout + time.Hour
	// UploadPrefix holds browser uploads that were never turned into a job.
	UploadPrefix = storage.UploadPrefix
)

// JobStore is the subset of db.Queries the worker uses.
type JobStore interface {
	GetJob(ctx context.Context, id pgtype.UUID) (db.MinutesJob, error)
	UpdateJobStatus(ctx context.Context, arg db.UpdateJobStatusParams) error
	CompleteJob(ctx context.Context, arg db.CompleteJobParams) error
	DeleteJobsBefore(ctx context.Context, cutoff pgtype.Timestamptz) (int64, error)
	FailStaleJobs(ctx context.Context, cutoff pgtype.Timestamptz) (int64, error)
}

// ObjectStore is the subset of storage.Client the worker uses.
type ObjectStore interface {
	Bucket() string
	DownloadBytes(ctx context.Context, key string, maxBytes int64) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]storage.Object, error)
	DeleteAll(ctx context.Context, keys []string) error
}

// Pipeline runs one minutes request.
type Pipeline interface {
	MaxUploadBytes() int64
	Generate(ctx context.Context, req minutes.Request) (*minutes.Result, error)
}

type MinutesProcessor struct {
	db        JobStore
	storage   ObjectStore
	pipeline  Pipeline
	retention time.Duration
	now       func() time.Time
}

func NewMinutesProcessor(jobs JobStore, store ObjectStore, pipeline Pipeline, retention time.Duration) *MinutesProcessor {
	return &MinutesProcessor{
		db:        jobs,
		storage:   store,
		pipeline:  pipeline,
		retention: retention,
		now:       time.Now,
	}
}

func parseUUID(s string) pgtype.UUID {
	var u pgtype.UUID
	if err := u.Scan(s); err != nil {
		return pgtype.UUID{Valid: false}
	}
	return u
}

// Handlers maps task types to their handlers.
func (p *MinutesProcessor) Handlers() map[string]asynq.Handler {
	return map[string]asynq.Handler{
		TypeProcessMinutes: asynq.HandlerFunc(p.HandleProcessMinutes),
		TypeCleanupJobs:    asynq.HandlerFunc(p.HandleCleanupJobs),
	}
}

func (p *MinutesProcessor) HandleProcessMinutes(ctx context.Context, t *asynq.Task) error {
	var payload ProcessMinutesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	jobID := parseUUID(payload.JobID)
	job, err := p.db.GetJob(ctx, jobID)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("job %s not found: %w", payload.JobID, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.IsFinished() {
		slog.InfoContext(ctx, "Job already finished", "job_id", payload.JobID, "status", job.Status)
		return nil
	}
	if job.OwnerID != payload.OwnerID {
		return fmt.Errorf("job %s owner mismatch: %w", payload.JobID, asynq.SkipRetry)
	}

	metrics.JobsInFlight.Add(ctx, 1)
	defer metrics.JobsInFlight.Add(ctx, -1)

	slog.InfoContext(ctx, "Processing minutes job", "job_id", payload.JobID, "object", job.ObjectUri)

	var stored JobRequest
	if err := json.Unmarshal(job.Request, &stored); err != nil {
		return p.fail(ctx, jobID, errors.NewInternalError("stored job request is unreadable", "INVALID_JOB_REQUEST", err))
	}

	bucket, key, err := storage.ParseURI(job.ObjectUri)
	if err != nil || bucket != p.storage.Bucket() || !storage.IsUploadKey(key) {
		return p.fail(ctx, jobID, errors.NewValidationError("recording is not an upload in the configured bucket", "INVALID_OBJECT_URI", ""))
	}

	p.updateProgress(ctx, jobID, db.JobStatusTranscribing, "downloading")

	audio, err := p.storage.DownloadBytes(ctx, key, p.pipeline.MaxUploadBytes())
	if err != nil {
		return p.retryOrFail(ctx, jobID, err)
	}

	result, err := p.pipeline.Generate(ctx, minutes.Request{
		Audio: transcription.Audio{
			Filename: stored.Filename,
			Data:     audio,
		},
		Options:     stored.Options,
		MeetingInfo: stored.MeetingInfo,
		Style:       stored.Style,
		Progress: func(ctx context.Context, step minutes.Step) {
			status := db.JobStatusTranscribing
			if step == minutes.StepGenerating {
				status = db.JobStatusGenerating
			}
			p.updateProgress(ctx, jobID, status, string(step))
		},
	})
	if err != nil {
		return p.retryOrFail(ctx, jobID, err)
	}

	if err := p.db.CompleteJob(ctx, db.CompleteJobParams{
		ID:         jobID,
		Transcript: pgtype.Text{String: result.Transcript, Valid: true},
		Minutes:    pgtype.Text{String: result.Minutes, Valid: true},
		Provider:   pgtype.Text{String: result.Provider, Valid: result.Provider != ""},
		Model:      pgtype.Text{String: result.Model, Valid: result.Model != ""},
	}); err != nil {
		return fmt.Errorf("failed to save minutes: %w", err)
	}

	if err := p.storage.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "Failed to delete staged recording", "key", key, "error", err)
	}

	slog.InfoContext(ctx, "Minutes job completed",
		"job_id", payload.JobID,
		"provider", result.Provider,
		"cached_transcript", result.Cached,
	)
	return nil
}

// HandleCleanupJobs removes expired jobs, fails stuck ones and deletes
// abandoned uploads.
func (p *MinutesProcessor) HandleCleanupJobs(ctx context.Context, t *asynq.Task) error {
	now := p.now()
	slog.InfoContext(ctx, "Running cleanup job", "retention", p.retention)

	result := RunParallel(ctx, []ParallelFunc{
		func(ctx context.Context) error {
			n, err := p.db.DeleteJobsBefore(ctx, timestamptz(now.Add(-p.retention)))
			if err != nil {
				return fmt.Errorf("delete expired jobs: %w", err)
			}
			slog.InfoContext(ctx, "Expired jobs deleted", "count", n)
			return nil
		},
		func(ctx context.Context) error {
			n, err := p.db.FailStaleJobs(ctx, timestamptz(now.Add(-StaleJobAge)))
			if err != nil {
				return fmt.Errorf("fail stale jobs: %w", err)
			}
			if n > 0 {
				slog.WarnContext(ctx, "Stale jobs marked failed", "count", n)
			}
			return nil
		},
		func(ctx context.Context) error {
			objects, err := p.storage.List(ctx, UploadPrefix)
			if err != nil {
				return err
			}
			var stale []string
			for _, obj := range objects {
				if obj.LastModified.Before(now.Add(-p.retention)) {
					stale = append(stale, obj.Key)
				}
			}
			if len(stale) == 0 {
				return nil
			}
			if err := p.storage.DeleteAll(ctx, stale); err != nil {
				return err
			}
			slog.InfoContext(ctx, "Abandoned uploads deleted", "count", len(stale))
			return nil
		},
	})
	return stderrors.Join(result.Errors...)
}

// retryOrFail leaves the job running when asynq will retry the task and
// marks it failed on the last attempt or for non-retryable errors.
func (p *MinutesProcessor) retryOrFail(ctx context.Context, jobID pgtype.UUID, err error) error {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	appErr, ok := errors.As(err)
	retryable := !ok || appErr.IsRetryable()
	if retryable && retried < maxRetry {
		slog.WarnContext(ctx, "Minutes job will be retried", "job_id", uuidString(jobID), "retry", retried, "error", err)
		return err
	}
	return p.fail(ctx, jobID, err)
}

func (p *MinutesProcessor) fail(ctx context.Context, jobID pgtype.UUID, err error) error {
	slog.ErrorContext(ctx, "Minutes job failed", "job_id", uuidString(jobID), "error", err)

	message := err.Error()
	if appErr, ok := errors.As(err); ok {
		message = appErr.Message
	}
	if dbErr := p.db.UpdateJobStatus(ctx, db.UpdateJobStatusParams{
		ID:     jobID,
		Status: db.JobStatusFailed,
		Error:  pgtype.Text{String: message, Valid: true},
	}); dbErr != nil {
		slog.ErrorContext(ctx, "Failed to mark job failed", "job_id", uuidString(jobID), "error", dbErr)
	}
	return stderrors.Join(err, asynq.SkipRetry)
}

func (p *MinutesProcessor) updateProgress(ctx context.Context, jobID pgtype.UUID, status, step string) {
	slog.InfoContext(ctx, "Progress update", "job_id", uuidString(jobID), "status", status, "step", step)

	if err := p.db.UpdateJobStatus(ctx, db.UpdateJobStatusParams{
		ID:           jobID,
		Status:       status,
		ProgressStep: pgtype.Text{String: step, Valid: true},
	}); err != nil {
		slog.ErrorContext(ctx, "Failed to update job progress", "job_id", uuidString(jobID), "error", err)
	}
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func uuidString(id pgtype.UUID) string {
	return uuid.UUID(id.Bytes).String()
}
