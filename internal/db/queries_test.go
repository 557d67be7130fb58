package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestQueries connects to TEST_DATABASE_URL and applies the schema.
func newTestQueries(t *testing.T) *Queries {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	return New(pool)
}

func newID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

func TestJobLifecycle(t *testing.T) {
	q := newTestQueries(t)
	ctx := context.Background()
	owner := "owner-" + uuid.NewString()

	job, err := q.CreateJob(ctx, CreateJobParams{
		ID:        newID(),
		OwnerID:   owner,
		Status:    JobStatusQueued,
		ObjectUri: "gs://bucket/uploads/1-a.m4a",
		Request:   []byte(`{"language":"zh"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.False(t, job.IsFinished())

	require.NoError(t, q.UpdateJobStatus(ctx, UpdateJobStatusParams{
		ID:           job.ID,
		Status:       JobStatusTranscribing,
		ProgressStep: pgtype.Text{String: "Transcribing audio", Valid: true},
	}))

	require.NoError(t, q.CompleteJob(ctx, CompleteJobParams{
		ID:         job.ID,
		Transcript: pgtype.Text{String: "逐字稿", Valid: true},
		Minutes:    pgtype.Text{String: "# 會議記錄", Valid: true},
		Provider:   pgtype.Text{String: "assemblyai", Valid: true},
		Model:      pgtype.Text{String: "gemini-1.5-flash", Valid: true},
	}))

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, got.Status)
	assert.True(t, got.IsFinished())
	assert.Equal(t, "# 會議記錄", got.Minutes.String)
	assert.False(t, got.ProgressStep.Valid)

	jobs, err := q.ListJobsByOwner(ctx, ListJobsByOwnerParams{OwnerID: owner, Limit: 10})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestCleanupQueries(t *testing.T) {
	q := newTestQueries(t)
	ctx := context.Background()

	job, err := q.CreateJob(ctx, CreateJobParams{
		ID:        newID(),
		Status:    JobStatusTranscribing,
		ObjectUri: "gs://bucket/uploads/2-b.m4a",
		Request:   []byte(`{}`),
	})
	require.NoError(t, err)

	future := pgtype.Timestamptz{Time: time.Now().Add(time.Minute), Valid: true}

	failed, err := q.FailStaleJobs(ctx, future)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, failed, int64(1))

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, got.Status)

	deleted, err := q.DeleteJobsBefore(ctx, future)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))

	_, err = q.GetJob(ctx, job.ID)
	assert.Error(t, err)
}
