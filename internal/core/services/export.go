package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driving"
)

// Ensure ExportOrchestrator implements ExportService
var _ driving.ExportService = (*ExportOrchestrator)(nil)

// DefaultExportLockTTL bounds how long one (course, LMS) export may hold its lock.
const DefaultExportLockTTL = 10 * time.Minute

// ExportOrchestrator pushes local courses to LMS backends.
//
// Each target LMS runs in its own goroutine with no shared state:
//  1. Acquire the (course, LMS) lock, extending it while the export runs
//  2. Resolve credentials, skipping the LMS if the user is not connected
//  3. Build the adapter
//  4. Create the remote course if no id is stored, persisting the id at once
//  5. Sync the full ordered unit list
type ExportOrchestrator struct {
	courses     driven.CourseStore
	externalIDs driven.ExternalIDStore
	resolver    *CredentialResolver
	factory     driven.AdapterFactory
	lock        driven.DistributedLock
	lockTTL     time.Duration
	logger      *slog.Logger
}

// ExportOrchestratorConfig holds dependencies for ExportOrchestrator.
type ExportOrchestratorConfig struct {
	CourseStore     driven.CourseStore
	ExternalIDStore driven.ExternalIDStore
	Resolver        *CredentialResolver
	AdapterFactory  driven.AdapterFactory

	// Lock serializes exports of the same course to the same LMS.
	// Nil uses an in-process lock.
	Lock    driven.DistributedLock
	LockTTL time.Duration

	Logger *slog.Logger
}

// NewExportOrchestrator creates a new export orchestrator.
func NewExportOrchestrator(cfg ExportOrchestratorConfig) *ExportOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lock := cfg.Lock
	if lock == nil {
		lock = NewLocalLock()
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = DefaultExportLockTTL
	}
	return &ExportOrchestrator{
		courses:     cfg.CourseStore,
		externalIDs: cfg.ExternalIDStore,
		resolver:    cfg.Resolver,
		factory:     cfg.AdapterFactory,
		lock:        lock,
		lockTTL:     ttl,
		logger:      logger,
	}
}

// Export pushes a course to each target LMS independently.
func (o *ExportOrchestrator) Export(ctx context.Context, req driving.ExportRequest) (*domain.ExportReport, error) {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.CourseID) == "" {
		return nil, domain.ErrInvalidInput
	}

	targets, err := o.targets(req.Targets)
	if err != nil {
		return nil, err
	}

	course, err := o.courses.Get(ctx, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	if err := course.Validate(); err != nil {
		return nil, fmt.Errorf("course %s: %w", req.CourseID, err)
	}

	ids, err := o.externalIDs.Get(ctx, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get external ids: %w", err)
	}

	data := course.ToExportData()
	report := &domain.ExportReport{
		ID:        uuid.NewString(),
		CourseID:  req.CourseID,
		UserID:    req.UserID,
		Outcomes:  make([]*domain.ExportOutcome, len(targets)),
		StartedAt: time.Now(),
	}

	o.logger.Info("starting export",
		"export_id", report.ID,
		"course_id", req.CourseID,
		"user_id", req.UserID,
		"targets", targets,
		"units", len(data.Units),
	)

	var wg sync.WaitGroup
	for i, lms := range targets {
		wg.Add(1)
		go func(i int, lms domain.LMSType) {
			defer wg.Done()
			report.Outcomes[i] = o.exportOne(ctx, req.UserID, req.CourseID, lms, ids.Get(lms), data)
		}(i, lms)
	}
	wg.Wait()

	report.CompletedAt = time.Now()

	for _, out := range report.Outcomes {
		o.logger.Info("export outcome",
			"export_id", report.ID,
			"course_id", req.CourseID,
			"lms", out.LMS,
			"status", out.Status,
			"remote_course_id", out.RemoteCourseID,
			"operations", len(out.Operations),
			"error", out.Error,
		)
	}
	return report, nil
}

// exportOne runs the export for a single LMS. It never returns an error;
// every failure ends up in the outcome.
func (o *ExportOrchestrator) exportOne(ctx context.Context, userID, courseID string, lms domain.LMSType, remoteID string, data domain.CourseExportData) *domain.ExportOutcome {
	start := time.Now()
	out := &domain.ExportOutcome{LMS: lms, RemoteCourseID: remoteID}
	defer func() {
		out.Duration = time.Since(start).Seconds()
	}()

	logger := o.logger.With("course_id", courseID, "lms", lms)

	lockName := fmt.Sprintf("export:%s:%s", courseID, lms)
	acquired, err := o.lock.Acquire(ctx, lockName, o.lockTTL)
	if err != nil {
		return failOutcome(out, fmt.Errorf("acquire export lock: %w", err))
	}
	if !acquired {
		logger.Info("export already running, skipping")
		out.Status = domain.ExportStatusBusy
		out.Error = domain.ErrExportInProgress.Error()
		return out
	}
	defer func() {
		// The request context may already be cancelled; release regardless.
		if err := o.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
			logger.Warn("failed to release export lock", "error", err)
		}
	}()
	defer o.keepLock(ctx, lockName, logger)()

	creds, err := o.resolver.Resolve(ctx, userID, lms)
	if err != nil {
		return failOutcome(out, fmt.Errorf("resolve credentials: %w", err))
	}
	if creds == nil {
		logger.Info("lms not connected, skipping")
		out.Status = domain.ExportStatusNotConnected
		out.Error = domain.ErrNotConnected.Error()
		return out
	}

	adapter, err := o.factory.Build(creds)
	if err != nil {
		return failOutcome(out, err)
	}

	var persistErr error
	if remoteID == "" {
		created := adapter.CreateCourse(ctx, data)
		if !created.OK() {
			return failOutcome(out, created.Err)
		}
		remoteID = created.Value.ID
		out.RemoteCourseID = remoteID
		out.CourseCreated = true
		logger.Info("created remote course", "remote_course_id", remoteID)

		if err := o.externalIDs.Set(ctx, courseID, lms, remoteID); err != nil {
			// Without the id the next export creates a second course.
			// The structure is still synced, but the outcome is failed.
			persistErr = fmt.Errorf("persist remote course id: %w", err)
			logger.Error("failed to persist remote course id", "remote_course_id", remoteID, "error", err)
		}
	}

	synced := adapter.SyncStructure(ctx, remoteID, data.Units)
	if !synced.OK() {
		return failOutcome(out, errors.Join(synced.Err, persistErr))
	}
	out.Elements = synced.Value.Elements
	out.Operations = synced.Value.Operations

	switch {
	case persistErr != nil:
		return failOutcome(out, persistErr)
	case len(synced.Value.Failed()) > 0:
		out.Status = domain.ExportStatusPartial
		out.Error = fmt.Sprintf("%d of %d operations failed", len(synced.Value.Failed()), len(out.Operations))
	default:
		out.Status = domain.ExportStatusSuccess
	}
	return out
}

// keepLock extends the lock every third of its TTL until the returned stop
// function is called, so syncs longer than the TTL stay serialized.
func (o *ExportOrchestrator) keepLock(ctx context.Context, name string, logger *slog.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		interval := o.lockTTL / 3
		if interval <= 0 {
			interval = o.lockTTL
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := o.lock.Extend(ctx, name, o.lockTTL); err != nil && ctx.Err() == nil {
					logger.Warn("failed to extend export lock", "lock", name, "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// TestConnection checks the user's credentials for one LMS.
func (o *ExportOrchestrator) TestConnection(ctx context.Context, userID string, lms domain.LMSType) (*domain.ConnectionInfo, error) {
	adapter, err := o.adapterFor(ctx, userID, lms)
	if err != nil {
		return nil, err
	}
	return adapter.TestConnection(ctx).Get()
}

// ListRemoteCourses lists the courses the user teaches in one LMS.
func (o *ExportOrchestrator) ListRemoteCourses(ctx context.Context, userID string, lms domain.LMSType) ([]*domain.RemoteCourse, error) {
	adapter, err := o.adapterFor(ctx, userID, lms)
	if err != nil {
		return nil, err
	}
	return adapter.ListCourses(ctx).Get()
}

func (o *ExportOrchestrator) adapterFor(ctx context.Context, userID string, lms domain.LMSType) (driven.LMSAdapter, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrInvalidInput
	}
	creds, err := o.resolver.Resolve(ctx, userID, lms)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotConnected, lms)
	}
	return o.factory.Build(creds)
}

// targets validates requested LMS types; none means every supported one.
func (o *ExportOrchestrator) targets(requested []domain.LMSType) ([]domain.LMSType, error) {
	if len(requested) == 0 {
		return o.factory.SupportedTypes(), nil
	}
	seen := make(map[domain.LMSType]bool, len(requested))
	out := make([]domain.LMSType, 0, len(requested))
	for _, t := range requested {
		if !t.IsValid() {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLMS, t)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

func failOutcome(out *domain.ExportOutcome, err error) *domain.ExportOutcome {
	out.Status = domain.ExportStatusFailed
	out.Error = err.Error()
	return out
}
