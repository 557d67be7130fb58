package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"

	"github.com/meetscribe/minutes/internal/db"
	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/minutes"
	"github.com/meetscribe/minutes/internal/services/prompt"
	"github.com/meetscribe/minutes/internal/services/storage"
	"github.com/meetscribe/minutes/internal/services/transcription"
	"github.com/meetscribe/minutes/internal/worker"
)

const (
	defaultJobListLimit = 20
	maxJobListLimit     = 100
	jobMaxRetry         = 2
)

type CreateJobRequest struct {
	GCSPath        string `json:"gcsPath"`
	Language       string `json:"language"`
	Punctuate      *bool  `json:"punctuate"`
	FormatText     *bool  `json:"formatText"`
	SpeakerLabels  bool   `json:"speakerLabels"`
	SpeakerCount   int    `json:"speakerCount"`
	MeetingInfo    string `json:"meetingInfo"`
	MeetingName    string `json:"meetingName"`
	MeetingDate    string `json:"meetingDate"`
	Participants   string `json:"participants"`
	AdditionalInfo string `json:"additionalInfo"`
	Style          string `json:"style"`
}

type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

func (s *Server) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	if !s.jobsEnabled() {
		writeError(w, r, errors.NewNotFoundError("asynchronous jobs are not enabled", "JOBS_DISABLED", "Use POST /api/minutes"))
		return
	}

	var req CreateJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	bucket, key, err := storage.ParseURI(req.GCSPath)
	if err != nil {
		writeError(w, r, errors.NewValidationError("invalid GCS path format, expected gs://bucket-name/file/path", "INVALID_GCS_PATH", ""))
		return
	}
	if bucket != s.storage.Bucket() {
		writeError(w, r, errors.NewForbiddenError("the recording is not in the upload bucket", "FORBIDDEN_BUCKET", ""))
		return
	}
	if !storage.IsUploadKey(key) {
		writeError(w, r, errors.NewForbiddenError("the recording was not uploaded through a signed upload URL", "FORBIDDEN_OBJECT", "Request an upload URL first"))
		return
	}

	var style prompt.Style
	if req.Style != "" {
		if style, err = prompt.ParseStyle(req.Style); err != nil {
			writeError(w, r, errors.NewValidationError(err.Error(), "INVALID_STYLE", "Use summary or detailed"))
			return
		}
	}

	stored := worker.JobRequest{
		Filename: path.Base(key),
		Options: transcription.Options{
			Language:      req.Language,
			Punctuate:     req.Punctuate == nil || *req.Punctuate,
			FormatText:    req.FormatText == nil || *req.FormatText,
			SpeakerLabels: req.SpeakerLabels,
			SpeakerCount:  req.SpeakerCount,
		},
		MeetingInfo: prompt.MeetingInfo{
			Text:           req.MeetingInfo,
			Name:           req.MeetingName,
			Date:           req.MeetingDate,
			Participants:   req.Participants,
			AdditionalInfo: req.AdditionalInfo,
		},
		Style: style,
	}

	// Size is checked by the worker once the object is downloaded.
	check := minutes.Request{
		Audio:       transcription.Audio{Filename: stored.Filename, Data: []byte{0}},
		Options:     stored.Options,
		MeetingInfo: stored.MeetingInfo,
	}
	if err := s.pipeline.Validate(&check); err != nil {
		writeError(w, r, err)
		return
	}
	stored.Options = check.Options

	payload, err := json.Marshal(stored)
	if err != nil {
		writeError(w, r, err)
		return
	}

	owner := ownerID(r)
	jobID := uuid.New().String()

	if _, err := s.jobs.CreateJob(r.Context(), db.CreateJobParams{
		ID:        parseUUID(jobID),
		OwnerID:   owner,
		Status:    db.JobStatusQueued,
		ObjectUri: req.GCSPath,
		Request:   payload,
	}); err != nil {
		writeError(w, r, errors.NewInternalError("failed to create job", "JOB_CREATE_FAILED", err))
		return
	}

	task, err := worker.NewProcessMinutesTask(worker.ProcessMinutesPayload{
		JobID:   jobID,
		OwnerID: owner,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := s.queue.EnqueueContext(r.Context(), task,
		asynq.Queue(worker.QueueDefault),
		asynq.MaxRetry(jobMaxRetry),
		asynq.Timeout(worker.ProcessTimeout),
		asynq.TaskID(jobID),
	); err != nil {
		writeError(w, r, errors.NewInternalError("failed to enqueue job", "JOB_ENQUEUE_FAILED", err))
		return
	}

	writeJSON(w, http.StatusAccepted, CreateJobResponse{JobID: jobID})
}

type JobStatusResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ProgressStep string `json:"progress_step,omitempty"`
	Error        string `json:"error,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
	Minutes      string `json:"minutes,omitempty"`
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func newJobStatusResponse(job db.MinutesJob, withResult bool) JobStatusResponse {
	resp := JobStatusResponse{
		ID:           uuid.UUID(job.ID.Bytes).String(),
		Status:       job.Status,
		ProgressStep: job.ProgressStep.String,
		Error:        job.Error.String,
		Provider:     job.Provider.String,
		Model:        job.Model.String,
		CreatedAt:    job.CreatedAt.Time.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Time.Format(time.RFC3339),
	}
	if withResult {
		resp.Transcript = job.Transcript.String
		resp.Minutes = job.Minutes.String
	}
	return resp
}

func (s *Server) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	if !s.jobsEnabled() {
		writeError(w, r, errors.NewNotFoundError("asynchronous jobs are not enabled", "JOBS_DISABLED", ""))
		return
	}

	id := parseUUID(chi.URLParam(r, "id"))
	if !id.Valid {
		writeError(w, r, errors.NewValidationError("job id must be a UUID", "INVALID_JOB_ID", ""))
		return
	}

	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			writeError(w, r, errors.NewNotFoundError("job not found", "JOB_NOT_FOUND", ""))
			return
		}
		writeError(w, r, errors.NewInternalError("failed to load job", "JOB_LOAD_FAILED", err))
		return
	}

	// Other owners' jobs look missing.
	if job.OwnerID != ownerID(r) {
		writeError(w, r, errors.NewNotFoundError("job not found", "JOB_NOT_FOUND", ""))
		return
	}

	writeJSON(w, http.StatusOK, newJobStatusResponse(job, true))
}

type ListJobsResponse struct {
	Jobs []JobStatusResponse `json:"jobs"`
}

func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	if !s.jobsEnabled() {
		writeError(w, r, errors.NewNotFoundError("asynchronous jobs are not enabled", "JOBS_DISABLED", ""))
		return
	}

	limit := defaultJobListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, errors.NewValidationError("limit must be a positive integer", "INVALID_LIMIT", ""))
			return
		}
		limit = min(n, maxJobListLimit)
	}

	jobs, err := s.jobs.ListJobsByOwner(r.Context(), db.ListJobsByOwnerParams{
		OwnerID: ownerID(r),
		Limit:   int32(limit),
	})
	if err != nil {
		writeError(w, r, errors.NewInternalError("failed to fetch jobs", "JOB_LIST_FAILED", err))
		return
	}

	response := ListJobsResponse{
		Jobs: make([]JobStatusResponse, len(jobs)),
	}
	for i, job := range jobs {
		response.Jobs[i] = newJobStatusResponse(job, false)
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) jobsEnabled() bool {
	return s.jobs != nil && s.queue != nil && s.storage != nil
}
