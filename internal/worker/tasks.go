package worker

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/meetscribe/minutes/internal/services/prompt"
	"github.com/meetscribe/minutes/internal/services/transcription"
)

// Task type constants
const (
	TypeProcessMinutes = "process:minutes"
	TypeCleanupJobs    = "cleanup:jobs"
)

// ProcessMinutesPayload is the payload for minutes processing tasks
type ProcessMinutesPayload struct {
	JobID   string `json:"job_id"`
	OwnerID string `json:"owner_id"`
}

// JobRequest is stored with the job and replayed by the worker.
type JobRequest struct {
	Filename    string                `json:"filename"`
	Options     transcription.Options `json:"options"`
	MeetingInfo prompt.MeetingInfo    `json:"meeting_info"`
	Style       prompt.Style          `json:"style,omitempty"`
}

// NewProcessMinutesTask creates a new minutes processing task
func NewProcessMinutesTask(payload ProcessMinutesPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProcessMinutes, data), nil
}

// NewCleanupJobsTask creates a new cleanup task
func NewCleanupJobsTask() *asynq.Task {
	return asynq.NewTask(TypeCleanupJobs, nil)
}
