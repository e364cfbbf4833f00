package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

func newTestQueue(t *testing.T) (*JobQueue, *redis.Client) {
	t.Helper()
	_, client := setupTestRedis(t)
	q, err := NewJobQueue(context.Background(), client, "worker-test")
	require.NoError(t, err)
	return q, client
}

func TestNewJobQueue(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	_, err := NewJobQueue(ctx, client, "")
	require.NoError(t, err)

	// Existing consumer group is fine
	_, err = NewJobQueue(ctx, client, "")
	require.NoError(t, err)

	_, err = NewJobQueue(ctx, nil, "")
	assert.Error(t, err)
}

func TestJobQueue_EnqueueDequeueComplete(t *testing.T) {
	q, client := newTestQueue(t)
	ctx := context.Background()

	job := domain.NewExportJob("user-1", "course-1", []domain.LMSType{domain.LMSTypeCanvas})
	require.NoError(t, q.Enqueue(ctx, job))

	got, err := q.Dequeue(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, domain.ExportJobRunning, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, []domain.LMSType{domain.LMSTypeCanvas}, got.Targets)

	report := &domain.ExportReport{ID: "r-1", CourseID: "course-1"}
	require.NoError(t, q.Complete(ctx, job.ID, report))

	stored, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportJobCompleted, stored.Status)
	require.NotNil(t, stored.Report)
	assert.Equal(t, "r-1", stored.Report.ID)

	length, err := client.XLen(ctx, jobStream).Result()
	require.NoError(t, err)
	assert.Zero(t, length, "acknowledged message should be deleted")

	exists, err := client.Exists(ctx, jobKeyPrefix+job.ID+":msg").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestJobQueue_DequeueEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	job, err := q.Dequeue(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestJobQueue_FailRetriesAfterBackoff(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job := domain.NewExportJob("user-1", "course-1", nil)
	require.NoError(t, q.Enqueue(ctx, job))
	_, err := q.Dequeue(ctx, 0)
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, job.ID, "course store down", true))

	stored, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportJobPending, stored.Status)
	assert.Equal(t, "course store down", stored.Error)

	got, err := q.Dequeue(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, got, "retry is not due yet")

	q.now = func() time.Time { return time.Now().Add(time.Hour) }
	got, err = q.Dequeue(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, 2, got.Attempts)
}

func TestJobQueue_FailPermanent(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job := domain.NewExportJob("user-1", "course-1", nil)
	require.NoError(t, q.Enqueue(ctx, job))
	_, err := q.Dequeue(ctx, 0)
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, job.ID, "course not found", false))

	stored, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportJobFailed, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	q.now = func() time.Time { return time.Now().Add(time.Hour) }
	got, err := q.Dequeue(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestJobQueue_FailExhaustsAttempts(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	q.now = func() time.Time { return time.Now().Add(time.Hour) }

	job := domain.NewExportJob("user-1", "course-1", nil)
	job.MaxAttempts = 2
	require.NoError(t, q.Enqueue(ctx, job))

	for i := 0; i < 2; i++ {
		got, err := q.Dequeue(ctx, 0)
		require.NoError(t, err)
		require.NotNil(t, got, "attempt %d", i+1)
		require.NoError(t, q.Fail(ctx, job.ID, "boom", true))
	}

	stored, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportJobFailed, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
}

func TestJobQueue_ScheduledJobWaits(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job := domain.NewExportJob("user-1", "course-1", nil)
	job.ScheduledFor = time.Now().Add(10 * time.Minute)
	require.NoError(t, q.Enqueue(ctx, job))

	got, err := q.Dequeue(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, got)

	q.now = func() time.Time { return time.Now().Add(time.Hour) }
	got, err = q.Dequeue(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
}

func TestJobQueue_DropsMessageWithoutJob(t *testing.T) {
	q, client := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, streamArgs("gone")).Err())

	got, err := q.Dequeue(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, got)

	length, err := client.XLen(ctx, jobStream).Result()
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestJobQueue_GetNotFound(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, q.Complete(ctx, "missing", nil), domain.ErrNotFound)
	assert.ErrorIs(t, q.Fail(ctx, "missing", "x", true), domain.ErrNotFound)
}

func TestJobQueue_Ping(t *testing.T) {
	mr, client := setupTestRedis(t)
	q, err := NewJobQueue(context.Background(), client, "")
	require.NoError(t, err)

	assert.NoError(t, q.Ping(context.Background()))
	mr.Close()
	assert.Error(t, q.Ping(context.Background()))
}
