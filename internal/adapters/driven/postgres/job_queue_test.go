package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

var jobColumnNames = []string{
	"id", "user_id", "course_id", "targets", "status", "attempts", "max_attempts",
	"error", "report", "created_at", "updated_at", "started_at", "completed_at", "scheduled_for",
}

func jobRow(status domain.ExportJobStatus, attempts int, report []byte) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(jobColumnNames).AddRow(
		"job-1", "user-1", "course-1", "{moodle,canvas}", string(status), attempts, 3,
		"", report, now, now, nil, nil, now,
	)
}

func TestJobQueue_Enqueue(t *testing.T) {
	db, mock := newMockDB(t)
	q := NewJobQueue(db)
	job := domain.NewExportJob("user-1", "course-1", []domain.LMSType{domain.LMSTypeMoodle})

	mock.ExpectExec("INSERT INTO export_jobs").
		WithArgs(job.ID, "user-1", "course-1", sqlmock.AnyArg(), "pending", 0, 3, "", nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.Enqueue(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_EnqueueError(t *testing.T) {
	db, mock := newMockDB(t)
	q := NewJobQueue(db)

	mock.ExpectExec("INSERT INTO export_jobs").WillReturnError(errors.New("duplicate key"))

	err := q.Enqueue(context.Background(), domain.NewExportJob("user-1", "course-1", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert export job")
}

func TestJobQueue_DequeueClaimsJob(t *testing.T) {
	db, mock := newMockDB(t)
	q := NewJobQueue(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs("pending").
		WillReturnRows(jobRow(domain.ExportJobPending, 0, nil))
	mock.ExpectExec("UPDATE export_jobs").
		WithArgs("running", sqlmock.AnyArg(), sqlmock.AnyArg(), 1, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job, err := q.Dequeue(context.Background(), 0)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, domain.ExportJobRunning, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.NotNil(t, job.StartedAt)
	assert.Equal(t, []domain.LMSType{domain.LMSTypeMoodle, domain.LMSTypeCanvas}, job.Targets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_DequeueEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	q := NewJobQueue(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WillReturnRows(sqlmock.NewRows(jobColumnNames))
	mock.ExpectRollback()

	job, err := q.Dequeue(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_DequeueWaitsForTimeout(t *testing.T) {
	db, mock := newMockDB(t)
	q := NewJobQueue(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(sqlmock.NewRows(jobColumnNames))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(jobRow(domain.ExportJobPending, 0, nil))
	mock.ExpectExec("UPDATE export_jobs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job, err := q.Dequeue(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-1", job.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_DequeueCancelled(t *testing.T) {
	db, mock := newMockDB(t)
	q := NewJobQueue(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(sqlmock.NewRows(jobColumnNames))
	mock.ExpectRollback()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := q.Dequeue(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJobQueue_Complete(t *testing.T) {
	db, mock := newMockDB(t)
	q := NewJobQueue(db)
	report := &domain.ExportReport{ID: "r-1", CourseID: "course-1"}

	mock.ExpectExec("UPDATE export_jobs").
		WithArgs("completed", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.Complete(context.Background(), "job-1", report))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_CompleteNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	q := NewJobQueue(db)

	mock.ExpectExec("UPDATE export_jobs").WillReturnResult(sqlmock.NewResult(0, 0))

	err := q.Complete(context.Background(), "missing", &domain.ExportReport{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobQueue_FailSchedulesRetry(t *testing.T) {
	db, mock := newMockDB(t)
	q := NewJobQueue(db)

	mock.ExpectQuery("SELECT (.+) FROM export_jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(jobRow(domain.ExportJobRunning, 1, nil))
	mock.ExpectExec("UPDATE export_jobs").
		WithArgs("pending", "course store down", sqlmock.AnyArg(), sqlmock.AnyArg(), nil, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.Fail(context.Background(), "job-1", "course store down", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_FailPermanent(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		retry    bool
	}{
		{"retry not allowed", 1, false},
		{"attempts exhausted", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			q := NewJobQueue(db)

			mock.ExpectQuery("SELECT (.+) FROM export_jobs WHERE id").
				WillReturnRows(jobRow(domain.ExportJobRunning, tt.attempts, nil))
			mock.ExpectExec("UPDATE export_jobs").
				WithArgs("failed", "course not found", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "job-1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			require.NoError(t, q.Fail(context.Background(), "job-1", "course not found", tt.retry))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestJobQueue_GetDecodesReport(t *testing.T) {
	db, mock := newMockDB(t)
	q := NewJobQueue(db)

	report, err := json.Marshal(&domain.ExportReport{
		ID:       "r-1",
		CourseID: "course-1",
		Outcomes: []*domain.ExportOutcome{{LMS: domain.LMSTypeMoodle, Status: domain.ExportStatusSuccess}},
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM export_jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(jobRow(domain.ExportJobCompleted, 1, report))

	job, err := q.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, job.Report)
	assert.Equal(t, "r-1", job.Report.ID)
	assert.Equal(t, domain.ExportStatusSuccess, job.Report.Outcome(domain.LMSTypeMoodle).Status)
}

func TestJobQueue_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	q := NewJobQueue(db)

	mock.ExpectQuery("SELECT (.+) FROM export_jobs WHERE id").
		WillReturnRows(sqlmock.NewRows(jobColumnNames))

	_, err := q.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
