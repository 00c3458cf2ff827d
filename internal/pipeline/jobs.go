package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/papergest/internal/extract"
	"github.com/dgallion1/papergest/internal/paper"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusExtracting JobStatus = "extracting"
	StatusIndexing   JobStatus = "indexing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Job tracks the state of a single paper ingestion.
type Job struct {
	mu sync.Mutex

	ID      string `json:"job_id"`
	PaperID string `json:"paper_id"`

	Status   JobStatus        `json:"status"`
	Phase    string           `json:"phase"`
	Filename string           `json:"filename"`
	Kind     paper.FormatKind `json:"-"`
	Force    bool             `json:"force"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	meta     *paper.Metadata
	errors   []string
}

// NewJob prepares a queued job for an uploaded file. The paper id and
// format follow the filename convention.
func NewJob(id, filename string, data []byte, meta *paper.Metadata, force bool) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		PaperID:     paper.PaperIDFromFilename(filename),
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		Kind:        paper.KindForFilename(filename),
		Force:       force,
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
		meta:        meta,
	}
}

// Progress counts what extraction found.
type Progress struct {
	Tables     int      `json:"tables"`
	Figures    int      `json:"figures"`
	Paragraphs int      `json:"paragraphs"`
	Mentions   int      `json:"mentions"`
	Context    int      `json:"context_links"`
	Passages   int      `json:"passages"`
	Errors     []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
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

// Cleanup removes jobs not updated within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// Len reports how many jobs are tracked.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Fail records err and marks the job failed in phase.
func (j *Job) Fail(phase string, err error) {
	j.AddError(err.Error())
	j.SetStatus(StatusFailed, phase)
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetSummary records extraction counts.
func (j *Job) SetSummary(sum extract.Summary, passages int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Tables = sum.Tables
	j.Progress.Figures = sum.Figures
	j.Progress.Paragraphs = sum.Paragraphs
	j.Progress.Mentions = sum.Mentions
	j.Progress.Context = sum.Context
	j.Progress.Passages = passages
	j.UpdatedAt = time.Now()
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// release drops the file bytes once they are no longer needed.
func (j *Job) release() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	PaperID   string    `json:"paper_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filename  string    `json:"filename"`
	Format    string    `json:"format"`
	Force     bool      `json:"force"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress := j.Progress
	progress.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:        j.ID,
		PaperID:   j.PaperID,
		Status:    j.Status,
		Phase:     j.Phase,
		Filename:  j.Filename,
		Format:    j.Kind.String(),
		Force:     j.Force,
		Progress:  progress,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// Terminal reports whether the job will not change any more.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusDupSkipped
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
