package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driving"
)

// Ensure exportJobService implements ExportJobService
var _ driving.ExportJobService = (*exportJobService)(nil)

type exportJobService struct {
	queue  driven.JobQueue
	logger *slog.Logger
}

// NewExportJobService creates a service that queues exports on the given queue.
func NewExportJobService(queue driven.JobQueue, logger *slog.Logger) driving.ExportJobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &exportJobService{queue: queue, logger: logger}
}

// Submit queues an export. Targets are checked here so a bad request is
// rejected before it reaches a worker.
func (s *exportJobService) Submit(ctx context.Context, req driving.ExportRequest) (*domain.ExportJob, error) {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.CourseID) == "" {
		return nil, domain.ErrInvalidInput
	}
	for _, t := range req.Targets {
		if !t.IsValid() {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLMS, t)
		}
	}

	job := domain.NewExportJob(req.UserID, req.CourseID, req.Targets)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue export: %w", err)
	}

	s.logger.Info("export queued",
		"job_id", job.ID,
		"course_id", job.CourseID,
		"user_id", job.UserID,
		"targets", job.Targets,
	)
	return job, nil
}

func (s *exportJobService) Get(ctx context.Context, userID, jobID string) (*domain.ExportJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, domain.ErrInvalidInput
	}
	job, err := s.queue.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}
