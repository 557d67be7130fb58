package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Job statuses stored in minutes_jobs.status.
const (
	JobStatusQueued       = "queued"
	JobStatusTranscribing = "transcribing"
	JobStatusGenerating   = "generating"
	JobStatusCompleted    = "completed"
	JobStatusFailed       = "failed"
)

type MinutesJob struct {
	ID           pgtype.UUID        `json:"id"`
	OwnerID      string             `json:"owner_id"`
	Status       string             `json:"status"`
	ProgressStep pgtype.Text        `json:"progress_step"`
	ObjectUri    string             `json:"object_uri"`
	Request      []byte             `json:"request"`
	Transcript   pgtype.Text        `json:"transcript"`
	Minutes      pgtype.Text        `json:"minutes"`
	Provider     pgtype.Text        `json:"provider"`
	Model        pgtype.Text        `json:"model"`
	Error        pgtype.Text        `json:"error"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

// IsFinished reports whether the job reached a terminal status.
func (j MinutesJob) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
