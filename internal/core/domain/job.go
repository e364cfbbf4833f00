package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultJobMaxAttempts is how many times a queued export is tried before it fails for good
const DefaultJobMaxAttempts = 3

// ExportJobStatus represents the state of a queued export
type ExportJobStatus string

const (
	ExportJobPending   ExportJobStatus = "pending"
	ExportJobRunning   ExportJobStatus = "running"
	ExportJobCompleted ExportJobStatus = "completed"
	ExportJobFailed    ExportJobStatus = "failed"
)

// ExportJob is an export queued for a background worker.
//
// A job completes once the export ran, whatever the per-LMS outcomes in its
// report. It is retried only when the export could not run at all, for
// example because the course could not be loaded.
type ExportJob struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	CourseID    string          `json:"course_id"`
	Targets     []LMSType       `json:"targets,omitempty"`
	Status      ExportJobStatus `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Error       string          `json:"error,omitempty"`
	Report      *ExportReport   `json:"report,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
}

// NewExportJob creates a pending job ready to run now
func NewExportJob(userID, courseID string, targets []LMSType) *ExportJob {
	now := time.Now()
	return &ExportJob{
		ID:           uuid.NewString(),
		UserID:       userID,
		CourseID:     courseID,
		Targets:      targets,
		Status:       ExportJobPending,
		MaxAttempts:  DefaultJobMaxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// CanRetry returns true if the job has attempts left
func (j *ExportJob) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// IsDone reports whether the job reached a terminal state
func (j *ExportJob) IsDone() bool {
	return j.Status == ExportJobCompleted || j.Status == ExportJobFailed
}

// MarkRunning records the start of an attempt
func (j *ExportJob) MarkRunning() {
	now := time.Now()
	j.Status = ExportJobRunning
	j.StartedAt = &now
	j.UpdatedAt = now
	j.Attempts++
}

// MarkCompleted stores the export report
func (j *ExportJob) MarkCompleted(report *ExportReport) {
	now := time.Now()
	j.Status = ExportJobCompleted
	j.Report = report
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.Error = ""
}

// MarkFailed ends the job without a report
func (j *ExportJob) MarkFailed(reason string) {
	now := time.Now()
	j.Status = ExportJobFailed
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.Error = reason
}

// Retry puts the job back to pending after an exponential backoff
func (j *ExportJob) Retry(reason string) {
	now := time.Now()
	j.Status = ExportJobPending
	j.UpdatedAt = now
	j.Error = reason
	j.ScheduledFor = now.Add(RetryBackoff(j.Attempts))
}

// RetryBackoff is 1s, 2s, 4s... after the given attempt, capped at 5 minutes
func RetryBackoff(attempts int) time.Duration {
	if attempts > 8 {
		return 5 * time.Minute
	}
	backoff := time.Duration(1<<attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	return backoff
}
