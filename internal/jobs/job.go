// Package jobs is the Postgres-backed background job queue: enqueueing,
// a polling worker pool with retry backoff, and an interval scheduler.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueue is the queue every recruitops job runs on unless told otherwise
const DefaultQueue = "default"

// Status is the lifecycle state of a job
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Priority orders dequeueing; higher runs sooner
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 50
	PriorityHigh   Priority = 75
)

// Job is one unit of background work
type Job struct {
	ID          uuid.UUID      `json:"id"`
	Queue       string         `json:"queue"`
	Type        string         `json:"type"`
	Payload     map[string]any `json:"payload"`
	Status      Status         `json:"status"`
	Priority    Priority       `json:"priority"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"max_attempts"`
	Error       *string        `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	RunAt       time.Time      `json:"run_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	LockedBy    *string        `json:"locked_by,omitempty"`
	LockedAt    *time.Time     `json:"locked_at,omitempty"`
}

// New creates a pending job on the default queue that may run immediately
func New(jobType string, payload map[string]any) *Job {
	now := time.Now().UTC()
	if payload == nil {
		payload = map[string]any{}
	}
	return &Job{
		ID:          uuid.New(),
		Queue:       DefaultQueue,
		Type:        jobType,
		Payload:     payload,
		Status:      StatusPending,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		CreatedAt:   now,
		RunAt:       now,
	}
}

// Retryable reports whether another attempt is allowed
func (j *Job) Retryable() bool {
	return j.Attempts < j.MaxAttempts
}

// Backoff is the delay before the next attempt: one minute doubled per
// previous attempt, capped at 1024 minutes
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	shift := attempts - 1
	if shift > 10 {
		shift = 10
	}
	return time.Duration(1<<shift) * time.Minute
}
