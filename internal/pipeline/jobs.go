package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docloop/internal/loop"
)

// JobStatus represents the state of a feedback-loop run.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusIndexing  JobStatus = "indexing"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RunRequest holds the inputs of one run.
type RunRequest struct {
	Idea               string `json:"idea"`
	WriterGuidelines   string `json:"writer_guidelines"`
	ReviewerGuidelines string `json:"reviewer_guidelines"`
	ReferencesFolder   string `json:"references_folder,omitempty"`
	MaxIters           int    `json:"max_iters"`
	AcceptThreshold    int    `json:"accept_threshold"`
	AcceptPolicy       string `json:"accept_policy,omitempty"`
}

// Job tracks the state of a single run.
type Job struct {
	mu sync.Mutex

	ID      string     `json:"run_id"`
	Request RunRequest `json:"-"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	draft    string
	metadata *loop.RunMetadata
	errors   []string
}

// Progress tracks iteration progress.
type Progress struct {
	Iteration int      `json:"iteration"`
	MaxIters  int      `json:"max_iters"`
	LastScore *int     `json:"last_score"`
	Errors    []string `json:"errors"`
}

// NewJobID returns a fresh run identifier.
func NewJobID() string {
	return uuid.NewString()
}

// NewJob creates a queued job for req.
func NewJob(req RunRequest) *Job {
	now := time.Now()
	return &Job{
		ID:        NewJobID(),
		Request:   req,
		Status:    StatusQueued,
		Phase:     "queued",
		Progress:  Progress{MaxIters: req.MaxIters},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction of
// finished jobs.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes finished jobs idle for longer than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// RecordIteration updates progress from a finished review round.
func (j *Job) RecordIteration(rec loop.IterationRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	score := rec.Score
	j.Progress.Iteration = rec.Iteration
	j.Progress.LastScore = &score
	j.UpdatedAt = time.Now()
}

// Complete stores the final draft and metadata.
func (j *Job) Complete(draft string, meta loop.RunMetadata) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.draft = draft
	j.metadata = &meta
	j.Status = StatusCompleted
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string            `json:"run_id"`
	Idea      string            `json:"idea"`
	Status    JobStatus         `json:"status"`
	Phase     string            `json:"phase"`
	Progress  Progress          `json:"progress"`
	Draft     string            `json:"draft,omitempty"`
	Metadata  *loop.RunMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:     j.ID,
		Idea:   j.Request.Idea,
		Status: j.Status,
		Phase:  j.Phase,
		Progress: Progress{
			Iteration: j.Progress.Iteration,
			MaxIters:  j.Progress.MaxIters,
			LastScore: j.Progress.LastScore,
			Errors:    append([]string{}, j.Progress.Errors...),
		},
		Draft:     j.draft,
		Metadata:  j.metadata,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
