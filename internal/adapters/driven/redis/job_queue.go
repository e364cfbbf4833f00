package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

const (
	jobStream     = "coursebridge:exports"
	jobGroup      = "coursebridge:workers"
	scheduledJobs = "coursebridge:exports:scheduled"
	jobKeyPrefix  = "coursebridge:export:"

	// jobTTL bounds how long finished jobs stay readable
	jobTTL = 7 * 24 * time.Hour

	// claimTimeout is how long a job may sit unacknowledged before another
	// worker takes it over. It must exceed the longest export.
	claimTimeout = 15 * time.Minute
)

// Verify interface compliance
var _ driven.JobQueue = (*JobQueue)(nil)

// JobQueue implements driven.JobQueue using Redis Streams.
//
// The stream carries job ids only; the job itself is a JSON value under
// coursebridge:export:<id>. Retries wait in a sorted set scored by due time
// and are moved onto the stream by the next Dequeue.
type JobQueue struct {
	client       redis.UniversalClient
	consumerName string
	now          func() time.Time
}

// NewJobQueue creates a Redis-backed export queue and its consumer group.
// consumerName should be unique per worker process; empty generates one.
func NewJobQueue(ctx context.Context, client redis.UniversalClient, consumerName string) (*JobQueue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = "worker-" + generateOwnerID()
	}

	err := client.XGroupCreateMkStream(ctx, jobStream, jobGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &JobQueue{
		client:       client,
		consumerName: consumerName,
		now:          time.Now,
	}, nil
}

// Enqueue stores the job and either streams it or schedules it.
func (q *JobQueue) Enqueue(ctx context.Context, job *domain.ExportJob) error {
	if job == nil {
		return errors.New("job is required")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL)
	if job.ScheduledFor.After(q.now()) {
		pipe.ZAdd(ctx, scheduledJobs, redis.Z{
			Score:  float64(job.ScheduledFor.UnixMilli()),
			Member: job.ID,
		})
	} else {
		pipe.XAdd(ctx, streamArgs(job.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue claims the next job. A timeout of zero or less does not block.
func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.ExportJob, error) {
	// Best effort; a failure here only delays retries.
	_ = q.promoteScheduled(ctx)

	if job, err := q.claimAbandoned(ctx); err == nil && job != nil {
		return job, nil
	}

	block := timeout
	if block <= 0 {
		block = -1
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    jobGroup,
		Consumer: q.consumerName,
		Streams:  []string{jobStream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.start(ctx, streams[0].Messages[0])
}

// start loads the job behind a stream message and marks it running.
// Messages whose job is gone are dropped.
func (q *JobQueue) start(ctx context.Context, msg redis.XMessage) (*domain.ExportJob, error) {
	jobID, ok := msg.Values["job_id"].(string)
	if !ok {
		q.drop(ctx, msg.ID)
		return nil, nil
	}

	job, err := q.Get(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		q.drop(ctx, msg.ID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.MarkRunning()
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL)
	pipe.Set(ctx, jobKeyPrefix+job.ID+":msg", msg.ID, jobTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}
	return job, nil
}

// Complete stores the report and acknowledges the stream message.
func (q *JobQueue) Complete(ctx context.Context, jobID string, report *domain.ExportReport) error {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return err
	}
	job.MarkCompleted(report)
	return q.finish(ctx, job, false)
}

// Fail records a failed attempt, rescheduling the job when allowed.
func (q *JobQueue) Fail(ctx context.Context, jobID string, reason string, retry bool) error {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if retry && job.CanRetry() {
		job.Retry(reason)
		return q.finish(ctx, job, true)
	}
	job.MarkFailed(reason)
	return q.finish(ctx, job, false)
}

// finish saves the job and removes its stream message. A rescheduled job
// goes back to the sorted set.
func (q *JobQueue) finish(ctx context.Context, job *domain.ExportJob, reschedule bool) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	msgKey := jobKeyPrefix + job.ID + ":msg"
	msgID, err := q.client.Get(ctx, msgKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get message id: %w", err)
	}

	pipe := q.client.TxPipeline()
	if msgID != "" {
		pipe.XAck(ctx, jobStream, jobGroup, msgID)
		pipe.XDel(ctx, jobStream, msgID)
	}
	pipe.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL)
	if reschedule {
		pipe.ZAdd(ctx, scheduledJobs, redis.Z{
			Score:  float64(job.ScheduledFor.UnixMilli()),
			Member: job.ID,
		})
	}
	pipe.Del(ctx, msgKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// Get returns the stored job.
func (q *JobQueue) Get(ctx context.Context, jobID string) (*domain.ExportJob, error) {
	data, err := q.client.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	var job domain.ExportJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Ping checks if Redis is reachable.
func (q *JobQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// promoteScheduled moves due jobs from the sorted set to the stream.
func (q *JobQueue) promoteScheduled(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, scheduledJobs, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().UnixMilli(), 10),
	}).Result()
	if err != nil || len(due) == 0 {
		return err
	}

	for _, jobID := range due {
		// ZRem decides which worker promotes a job when several race.
		removed, err := q.client.ZRem(ctx, scheduledJobs, jobID).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.XAdd(ctx, streamArgs(jobID)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// claimAbandoned takes over a message another worker read but never acknowledged.
func (q *JobQueue) claimAbandoned(ctx context.Context) (*domain.ExportJob, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: jobStream,
		Group:  jobGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   jobStream,
			Group:    jobGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}
		job, err := q.start(ctx, claimed[0])
		if err != nil || job == nil {
			continue
		}
		return job, nil
	}
	return nil, nil
}

func (q *JobQueue) drop(ctx context.Context, msgID string) {
	q.client.XAck(ctx, jobStream, jobGroup, msgID)
	q.client.XDel(ctx, jobStream, msgID)
}

func streamArgs(jobID string) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: jobStream,
		Values: map[string]interface{}{"job_id": jobID},
	}
}

func isGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
