// Package integration runs the HTTP API and the job worker against each other
// with in-memory stores and stub providers in place of external services.
package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/meetscribe/minutes/internal/db"
	"github.com/meetscribe/minutes/internal/services/storage"
	"github.com/meetscribe/minutes/internal/services/transcription"
)

const testBucket = "meeting-audio"

// memJobs satisfies both the API and the worker job stores.
type memJobs struct {
	mu   sync.Mutex
	jobs map[string]db.MinutesJob
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string]db.MinutesJob)}
}

func key(id pgtype.UUID) string {
	return uuid.UUID(id.Bytes).String()
}

func now() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Now(), Valid: true}
}

func (m *memJobs) CreateJob(ctx context.Context, arg db.CreateJobParams) (db.MinutesJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := db.MinutesJob{
		ID:        arg.ID,
		OwnerID:   arg.OwnerID,
		Status:    arg.Status,
		ObjectUri: arg.ObjectUri,
		Request:   arg.Request,
		CreatedAt: now(),
		UpdatedAt: now(),
	}
	m.jobs[key(arg.ID)] = job
	return job, nil
}

func (m *memJobs) GetJob(ctx context.Context, id pgtype.UUID) (db.MinutesJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[key(id)]
	if !ok {
		return db.MinutesJob{}, pgx.ErrNoRows
	}
	return job, nil
}

func (m *memJobs) ListJobsByOwner(ctx context.Context, arg db.ListJobsByOwnerParams) ([]db.MinutesJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.MinutesJob
	for _, job := range m.jobs {
		if job.OwnerID == arg.OwnerID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Time.After(out[j].CreatedAt.Time)
	})
	if len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (m *memJobs) UpdateJobStatus(ctx context.Context, arg db.UpdateJobStatusParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[key(arg.ID)]
	if !ok {
		return nil
	}
	job.Status = arg.Status
	job.ProgressStep = arg.ProgressStep
	job.Error = arg.Error
	job.UpdatedAt = now()
	m.jobs[key(arg.ID)] = job
	return nil
}

func (m *memJobs) CompleteJob(ctx context.Context, arg db.CompleteJobParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[key(arg.ID)]
	if !ok {
		return nil
	}
	job.Status = db.JobStatusCompleted
	job.ProgressStep = pgtype.Text{}
	job.Error = pgtype.Text{}
	job.Transcript = arg.Transcript
	job.Minutes = arg.Minutes
	job.Provider = arg.Provider
	job.Model = arg.Model
	job.UpdatedAt = now()
	m.jobs[key(arg.ID)] = job
	return nil
}

func (m *memJobs) DeleteJobsBefore(ctx context.Context, cutoff pgtype.Timestamptz) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, job := range m.jobs {
		if job.CreatedAt.Time.Before(cutoff.Time) {
			delete(m.jobs, k)
			n++
		}
	}
	return n, nil
}

func (m *memJobs) FailStaleJobs(ctx context.Context, cutoff pgtype.Timestamptz) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, job := range m.jobs {
		if !job.IsFinished() && job.UpdatedAt.Time.Before(cutoff.Time) {
			job.Status = db.JobStatusFailed
			job.Error = pgtype.Text{String: "job timed out", Valid: true}
			m.jobs[k] = job
			n++
		}
	}
	return n, nil
}

// put seeds a job directly, bypassing the API.
func (m *memJobs) put(job db.MinutesJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[key(job.ID)] = job
}

type memObject struct {
	data     []byte
	modified time.Time
}

// memStore is a single-bucket object store.
type memStore struct {
	mu      sync.Mutex
	objects map[string]memObject
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]memObject)}
}

func (s *memStore) Bucket() string { return testBucket }

func (s *memStore) URI(key string) string {
	return fmt.Sprintf("%s://%s/%s", storage.SchemeGCS, testBucket, key)
}

func (s *memStore) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://upload.test/%s/%s?ttl=%s", testBucket, key, ttl), nil
}

func (s *memStore) DownloadBytes(ctx context.Context, key string, maxBytes int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	if int64(len(obj.data)) > maxBytes {
		return nil, fmt.Errorf("object %s exceeds %d bytes", key, maxBytes)
	}
	return obj.data, nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.Object
	for k, obj := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.Object{Key: k, Size: int64(len(obj.data)), LastModified: obj.modified})
		}
	}
	return out, nil
}

func (s *memStore) DeleteAll(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.objects, k)
	}
	return nil
}

func (s *memStore) put(key string, data []byte, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{data: data, modified: modified}
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// memQueue records enqueued tasks instead of sending them to Redis.
type memQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *memQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(q.tasks)), Type: task.Type()}, nil
}

func (q *memQueue) drain() []*asynq.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := q.tasks
	q.tasks = nil
	return tasks
}

// stubTranscriber behaves like the hosted backend.
type stubTranscriber struct {
	text string
	err  error

	mu    sync.Mutex
	calls []transcription.Options
}

func (s *stubTranscriber) Name() string { return string(transcription.ProviderAssemblyAI) }

func (s *stubTranscriber) Capabilities() transcription.Capabilities {
	return transcription.Capabilities{
		PunctuateToggle:  true,
		FormatTextToggle: true,
		SpeakerLabels:    true,
		MinSpeakers:      1,
		MaxSpeakers:      10,
		DefaultSpeakers:  2,
	}
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audio transcription.Audio, opts transcription.Options) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, opts)
	s.mu.Unlock()
	return s.text, s.err
}

// stubGenerator echoes a fixed document and keeps the last prompt.
type stubGenerator struct {
	minutes string

	mu     sync.Mutex
	prompt string
}

func (g *stubGenerator) Name() string  { return "gemini" }
func (g *stubGenerator) Model() string { return "gemini-1.5-flash" }

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompt = prompt
	g.mu.Unlock()
	return g.minutes, nil
}

func (g *stubGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompt
}
