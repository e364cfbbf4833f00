package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

// JobQueue holds exports queued for background workers.
// Implementations use Redis Streams (preferred) or PostgreSQL SKIP LOCKED (fallback).
type JobQueue interface {
	// Enqueue adds a job. Jobs scheduled in the future wait until due.
	Enqueue(ctx context.Context, job *domain.ExportJob) error

	// Dequeue claims the next due job and marks it running, waiting up to timeout.
	// Returns nil, nil when no job became available.
	Dequeue(ctx context.Context, timeout time.Duration) (*domain.ExportJob, error)

	// Complete stores the report and marks the job completed.
	Complete(ctx context.Context, jobID string, report *domain.ExportReport) error

	// Fail records a failed attempt. When retry is true and attempts remain
	// the job is rescheduled with backoff; otherwise it fails for good.
	Fail(ctx context.Context, jobID string, reason string, retry bool) error

	// Get returns a job by id.
	// Returns domain.ErrNotFound if it doesn't exist or has expired.
	Get(ctx context.Context, jobID string) (*domain.ExportJob, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error
}
