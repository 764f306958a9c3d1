// Package jobs defines the asynchronous parse job model and the queue
// abstractions. The in-memory implementation under jobs/inmemory serves
// single-instance deployments; a broker-backed implementation can be
// swapped in behind the same interfaces.
package jobs

import (
	"context"
	"time"

	"github.com/amoreno/finparse/internal/pipeline"
)

// JobType identifies what a job does.
type JobType string

const (
	// JobTypeParseFile is an asynchronous document parse.
	JobTypeParseFile JobType = "parse_file"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ParseFileJob carries one uploaded document through the queue. Parse
// jobs are never retried: the pipeline's AI and OCR calls are awaited
// once, and a failed escalation tier is a terminal outcome, so
// re-running the job would just repeat the same network calls.
type ParseFileJob struct {
	JobID string `json:"job_id"`

	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`

	Categories  []string          `json:"categories,omitempty"`
	Preferences map[string]string `json:"-"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Result is attached when the job completes successfully.
	Result *pipeline.ParseResult `json:"result,omitempty"`
}

// Publisher enqueues parse jobs.
type Publisher interface {
	PublishParseFile(ctx context.Context, job *ParseFileJob) error
	Close() error
}

// JobHandler processes one job and returns its result.
type JobHandler func(ctx context.Context, job *ParseFileJob) (*pipeline.ParseResult, error)

// Consumer pulls jobs and runs them through a handler.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobStore tracks job state for status polling.
type JobStore interface {
	SaveJob(ctx context.Context, job *ParseFileJob) error
	GetJob(ctx context.Context, jobID string) (*ParseFileJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ParseFileJob, error)
}

// JobFilter narrows ListJobs output.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
