package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// Ensure JobQueue implements driven.JobQueue
var _ driven.JobQueue = (*JobQueue)(nil)

const jobColumns = `id, user_id, course_id, targets, status, attempts, max_attempts,
		error, report, created_at, updated_at, started_at, completed_at, scheduled_for`

// JobQueue implements driven.JobQueue using PostgreSQL with SKIP LOCKED.
// This is the fallback queue when Redis is not available.
type JobQueue struct {
	db *sql.DB
}

// NewJobQueue creates a new PostgreSQL-backed export job queue.
// Assumes the export_jobs table exists (see InitSchema).
func NewJobQueue(db *sql.DB) *JobQueue {
	return &JobQueue{db: db}
}

// Enqueue adds a job to the queue
func (q *JobQueue) Enqueue(ctx context.Context, job *domain.ExportJob) error {
	report, err := marshalReport(job.Report)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO export_jobs (
			id, user_id, course_id, targets, status, attempts, max_attempts,
			error, report, created_at, updated_at, scheduled_for
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = q.db.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.CourseID,
		pq.Array(targetStrings(job.Targets)),
		string(job.Status),
		job.Attempts,
		job.MaxAttempts,
		job.Error,
		report,
		job.CreatedAt,
		job.UpdatedAt,
		job.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("insert export job: %w", err)
	}
	return nil
}

// Dequeue claims the oldest due job. If none is due it waits once for the
// timeout and tries again.
func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.ExportJob, error) {
	job, err := q.claim(ctx)
	if err != nil || job != nil || timeout <= 0 {
		return job, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return q.claim(ctx)
	}
}

func (q *JobQueue) claim(ctx context.Context) (*domain.ExportJob, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	selectQuery := `
		SELECT ` + jobColumns + `
		FROM export_jobs
		WHERE status = $1
		  AND scheduled_for <= NOW()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`
	job, err := scanJob(tx.QueryRowContext(ctx, selectQuery, string(domain.ExportJobPending)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select export job: %w", err)
	}

	job.MarkRunning()
	updateQuery := `
		UPDATE export_jobs
		SET status = $1, started_at = $2, updated_at = $3, attempts = $4
		WHERE id = $5
	`
	_, err = tx.ExecContext(ctx, updateQuery,
		string(job.Status),
		NullTime(job.StartedAt),
		job.UpdatedAt,
		job.Attempts,
		job.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark export job running: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return job, nil
}

// Complete stores the report and marks the job completed
func (q *JobQueue) Complete(ctx context.Context, jobID string, report *domain.ExportReport) error {
	payload, err := marshalReport(report)
	if err != nil {
		return err
	}

	now := time.Now()
	query := `
		UPDATE export_jobs
		SET status = $1, report = $2, completed_at = $3, updated_at = $4, error = ''
		WHERE id = $5
	`
	result, err := q.db.ExecContext(ctx, query,
		string(domain.ExportJobCompleted),
		payload,
		now,
		now,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("update export job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Fail records a failed attempt, scheduling a retry when allowed
func (q *JobQueue) Fail(ctx context.Context, jobID string, reason string, retry bool) error {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get export job: %w", err)
	}

	if retry && job.CanRetry() {
		job.Retry(reason)
	} else {
		job.MarkFailed(reason)
	}

	query := `
		UPDATE export_jobs
		SET status = $1, error = $2, updated_at = $3, scheduled_for = $4, completed_at = $5
		WHERE id = $6
	`
	_, err = q.db.ExecContext(ctx, query,
		string(job.Status),
		job.Error,
		job.UpdatedAt,
		job.ScheduledFor,
		NullTime(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return nil
}

// Get retrieves a job by ID
func (q *JobQueue) Get(ctx context.Context, jobID string) (*domain.ExportJob, error) {
	query := `SELECT ` + jobColumns + ` FROM export_jobs WHERE id = $1`

	job, err := scanJob(q.db.QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query export job: %w", err)
	}
	return job, nil
}

// Ping checks the database connection
func (q *JobQueue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

func scanJob(row *sql.Row) (*domain.ExportJob, error) {
	var job domain.ExportJob
	var targets []string
	var status string
	var report []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.CourseID,
		pq.Array(&targets),
		&status,
		&job.Attempts,
		&job.MaxAttempts,
		&job.Error,
		&report,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&completedAt,
		&job.ScheduledFor,
	)
	if err != nil {
		return nil, err
	}

	job.Status = domain.ExportJobStatus(status)
	for _, t := range targets {
		job.Targets = append(job.Targets, domain.LMSType(t))
	}
	if len(report) > 0 {
		job.Report = &domain.ExportReport{}
		if err := json.Unmarshal(report, job.Report); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
	}
	job.StartedAt = TimePtr(startedAt)
	job.CompletedAt = TimePtr(completedAt)
	return &job, nil
}

// marshalReport encodes the report as JSON text; a nil report stays NULL.
// Raw bytes would be sent as bytea, which JSONB rejects.
func marshalReport(report *domain.ExportReport) (sql.NullString, error) {
	if report == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal report: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func targetStrings(targets []domain.LMSType) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = string(t)
	}
	return out
}
