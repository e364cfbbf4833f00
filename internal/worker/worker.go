package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driving"
)

// Worker runs queued exports.
//
// A job is completed whenever the export ran, even if some LMS outcomes
// failed; those are in the report. Only errors from Export itself fail the
// job, and only transient ones are retried.
type Worker struct {
	queue   driven.JobQueue
	exports driving.ExportService
	logger  *slog.Logger

	concurrency    int
	dequeueTimeout time.Duration
	errorBackoff   time.Duration

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	Queue          driven.JobQueue
	Exports        driving.ExportService
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent job processors
	DequeueTimeout time.Duration // How long to wait for a job before checking again
}

// NewWorker creates a new export worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}

	return &Worker{
		queue:          cfg.Queue,
		exports:        cfg.Exports,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		errorBackoff:   time.Second,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker, letting running exports finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue export job", "error", err)
			select {
			case <-time.After(w.errorBackoff):
			case <-ctx.Done():
			case <-w.stopCh:
			}
			continue
		}
		if job == nil {
			continue
		}

		w.processJob(ctx, job, logger)
	}
}

func (w *Worker) processJob(ctx context.Context, job *domain.ExportJob, logger *slog.Logger) {
	logger = logger.With(
		"job_id", job.ID,
		"course_id", job.CourseID,
		"user_id", job.UserID,
		"attempt", job.Attempts,
	)
	logger.Info("processing export job")

	start := time.Now()
	report, err := w.exports.Export(ctx, driving.ExportRequest{
		UserID:   job.UserID,
		CourseID: job.CourseID,
		Targets:  job.Targets,
	})
	duration := time.Since(start)

	// Queue bookkeeping must happen even if shutdown cancelled the export.
	bookCtx := context.WithoutCancel(ctx)

	if err != nil {
		retry := isRetryable(err)
		logger.Error("export job failed",
			"duration", duration,
			"retry", retry,
			"error", err,
		)
		if failErr := w.queue.Fail(bookCtx, job.ID, err.Error(), retry); failErr != nil {
			logger.Error("failed to record job failure", "fail_error", failErr)
		}
		return
	}

	logger.Info("export job completed",
		"duration", duration,
		"all_succeeded", report.AllSucceeded(),
	)
	if completeErr := w.queue.Complete(bookCtx, job.ID, report); completeErr != nil {
		logger.Error("failed to complete job", "complete_error", completeErr)
	}
}

// isRetryable reports whether another attempt could succeed.
// Bad requests and missing courses will not fix themselves.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnsupportedLMS):
		return false
	}
	return true
}

// Health describes the worker and its queue.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{Running: running}
	if err := w.queue.Ping(ctx); err != nil {
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}
	return health
}
