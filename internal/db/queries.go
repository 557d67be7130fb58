package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

const jobColumns = `id, owner_id, status, progress_step, object_uri, request, transcript, minutes, provider, model, error, created_at, updated_at`

func scanJob(row pgx.Row) (MinutesJob, error) {
	var i MinutesJob
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Status,
		&i.ProgressStep,
		&i.ObjectUri,
		&i.Request,
		&i.Transcript,
		&i.Minutes,
		&i.Provider,
		&i.Model,
		&i.Error,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createJob = `INSERT INTO minutes_jobs (id, owner_id, status, object_uri, request)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + jobColumns

type CreateJobParams struct {
	ID        pgtype.UUID `json:"id"`
	OwnerID   string      `json:"owner_id"`
	Status    string      `json:"status"`
	ObjectUri string      `json:"object_uri"`
	Request   []byte      `json:"request"`
}

func (q *Queries) CreateJob(ctx context.Context, arg CreateJobParams) (MinutesJob, error) {
	row := q.db.QueryRow(ctx, createJob,
		arg.ID,
		arg.OwnerID,
		arg.Status,
		arg.ObjectUri,
		arg.Request,
	)
	return scanJob(row)
}

const getJob = `SELECT ` + jobColumns + ` FROM minutes_jobs WHERE id = $1`

func (q *Queries) GetJob(ctx context.Context, id pgtype.UUID) (MinutesJob, error) {
	return scanJob(q.db.QueryRow(ctx, getJob, id))
}

const listJobsByOwner = `SELECT ` + jobColumns + ` FROM minutes_jobs
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2`

type ListJobsByOwnerParams struct {
	OwnerID string `json:"owner_id"`
	Limit   int32  `json:"limit"`
}

func (q *Queries) ListJobsByOwner(ctx context.Context, arg ListJobsByOwnerParams) ([]MinutesJob, error) {
	rows, err := q.db.Query(ctx, listJobsByOwner, arg.OwnerID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []MinutesJob{}
	for rows.Next() {
		i, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateJobStatus = `UPDATE minutes_jobs
SET status = $2, progress_step = $3, error = $4, updated_at = now()
WHERE id = $1`

type UpdateJobStatusParams struct {
	ID           pgtype.UUID `json:"id"`
	Status       string      `json:"status"`
	ProgressStep pgtype.Text `json:"progress_step"`
	Error        pgtype.Text `json:"error"`
}

func (q *Queries) UpdateJobStatus(ctx context.Context, arg UpdateJobStatusParams) error {
	_, err := q.db.Exec(ctx, updateJobStatus,
		arg.ID,
		arg.Status,
		arg.ProgressStep,
		arg.Error,
	)
	return err
}

const completeJob = `UPDATE minutes_jobs
SET status = 'completed', progress_step = NULL, error = NULL,
    transcript = $2, minutes = $3, provider = $4, model = $5, updated_at = now()
WHERE id = $1`

type CompleteJobParams struct {
	ID         pgtype.UUID `json:"id"`
	Transcript pgtype.Text `json:"transcript"`
	Minutes    pgtype.Text `json:"minutes"`
	Provider   pgtype.Text `json:"provider"`
	Model      pgtype.Text `json:"model"`
}

func (q *Queries) CompleteJob(ctx context.Context, arg CompleteJobParams) error {
	_, err := q.db.Exec(ctx, completeJob,
		arg.ID,
		arg.Transcript,
		arg.Minutes,
		arg.Provider,
		arg.Model,
	)
	return err
}

const deleteJobsBefore = `DELETE FROM minutes_jobs WHERE created_at < $1`

func (q *Queries) DeleteJobsBefore(ctx context.Context, cutoff pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, deleteJobsBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const failStaleJobs = `UPDATE minutes_jobs
SET status = 'failed', error = 'job timed out', updated_at = now()
WHERE status NOT IN ('completed', 'failed') AND updated_at < $1`

// FailStaleJobs marks unfinished jobs that stopped making progress before cutoff as failed.
func (q *Queries) FailStaleJobs(ctx context.Context, cutoff pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, failStaleJobs, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
