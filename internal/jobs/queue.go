package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoJobs is returned by Dequeue when nothing is ready to run
	ErrNoJobs = errors.New("no jobs available")
	// ErrJobNotFound is returned when a job ID does not exist or is in the wrong state
	ErrJobNotFound = errors.New("job not found")
)

// Enqueuer accepts new jobs
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// Queue is the Postgres job table
type Queue struct {
	db  *sql.DB
	now func() time.Time
}

// NewQueue creates a queue over the jobs table
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const jobColumns = `id, queue, type, payload, status, priority, attempts, max_attempts,
	error, created_at, run_at, started_at, completed_at, locked_by, locked_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (*Job, error) {
	var (
		job     Job
		payload []byte
	)
	err := s.Scan(&job.ID, &job.Queue, &job.Type, &payload, &job.Status, &job.Priority,
		&job.Attempts, &job.MaxAttempts, &job.Error, &job.CreatedAt, &job.RunAt,
		&job.StartedAt, &job.CompletedAt, &job.LockedBy, &job.LockedAt)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}
	return &job, nil
}

// Enqueue inserts a job
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO jobs (id, queue, type, payload, status, priority, attempts, max_attempts, created_at, run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.Queue, job.Type, payload, job.Status, job.Priority,
		job.Attempts, job.MaxAttempts, job.CreatedAt, job.RunAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue locks the highest-priority ready job on a queue for workerID.
// Concurrent workers never receive the same job.
func (q *Queue) Dequeue(ctx context.Context, workerID, queueName string) (*Job, error) {
	now := q.now()
	row := q.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET status = $1, locked_by = $2, locked_at = $3, started_at = $3, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = $4 AND queue = $5 AND run_at <= $3
			ORDER BY priority DESC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+jobColumns,
		StatusRunning, workerID, now, StatusPending, queueName,
	)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoJobs
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	return job, nil
}

func (q *Queue) finish(ctx context.Context, id uuid.UUID, status Status, errMsg *string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, error = $2, completed_at = $3, locked_by = NULL, locked_at = NULL
		WHERE id = $4`,
		status, errMsg, q.now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job %s: %w", status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

// Complete marks a job as done
func (q *Queue) Complete(ctx context.Context, id uuid.UUID) error {
	return q.finish(ctx, id, StatusCompleted, nil)
}

// Fail marks a job as permanently failed
func (q *Queue) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	return q.finish(ctx, id, StatusFailed, &errMsg)
}

// Retry puts a job back to pending after its backoff. The attempts check and the
// update happen in one statement.
func (q *Queue) Retry(ctx context.Context, id uuid.UUID, attempts int, errMsg string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, run_at = $2, error = $3, locked_by = NULL, locked_at = NULL
		WHERE id = $4 AND attempts < max_attempts`,
		StatusPending, q.now().Add(Backoff(attempts)), errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to retry job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w or out of attempts: %s", ErrJobNotFound, id)
	}
	return nil
}

// Cancel stops a pending or running job
func (q *Queue) Cancel(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, completed_at = $2, locked_by = NULL, locked_at = NULL
		WHERE id = $3 AND status IN ($4, $5)`,
		StatusCancelled, q.now(), id, StatusPending, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w or already finished: %s", ErrJobNotFound, id)
	}
	return nil
}

// Get loads a job by ID
func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := scanJob(q.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Recent lists the latest jobs, optionally of a single type
func (q *Queue) Recent(ctx context.Context, jobType string, limit int) ([]*Job, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs
		WHERE ($1 = '' OR type = $1)
		ORDER BY created_at DESC
		LIMIT $2`, jobType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

// PurgeFinished deletes completed and cancelled jobs older than the cutoff
func (q *Queue) PurgeFinished(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM jobs WHERE status IN ($1, $2) AND completed_at < $3`,
		StatusCompleted, StatusCancelled, q.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to purge jobs: %w", err)
	}
	return res.RowsAffected()
}

// QueueStats counts jobs by status for one job type
type QueueStats struct {
	Type      string `json:"type"`
	Pending   int    `json:"pending"`
	Running   int    `json:"running"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Cancelled int    `json:"cancelled"`
}

// Stats returns per-type job counts for a queue
func (q *Queue) Stats(ctx context.Context, queueName string) ([]QueueStats, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT type,
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'running'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM jobs
		WHERE queue = $1
		GROUP BY type
		ORDER BY type`, queueName)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}
	defer rows.Close()

	stats := make([]QueueStats, 0)
	for rows.Next() {
		var s QueueStats
		if err := rows.Scan(&s.Type, &s.Pending, &s.Running, &s.Completed, &s.Failed, &s.Cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan queue stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
