package driving

import (
	"context"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

// ExportRequest asks for one course to be pushed to a set of LMS backends.
// @Description Course export request
type ExportRequest struct {
	UserID   string           `json:"-"`
	CourseID string           `json:"-"`
	Targets  []domain.LMSType `json:"targets,omitempty"` // Empty means every supported LMS
}

// ExportService exports local courses to LMS backends
type ExportService interface {
	// Export pushes a course to each target LMS independently.
	// Per-LMS failures are reported in the returned outcomes; the error is
	// reserved for invalid input and failures to load the course itself.
	Export(ctx context.Context, req ExportRequest) (*domain.ExportReport, error)

	// TestConnection checks the caller's credentials for one LMS.
	// Returns domain.ErrNotConnected if the user has no usable credential.
	TestConnection(ctx context.Context, userID string, lms domain.LMSType) (*domain.ConnectionInfo, error)

	// ListRemoteCourses lists the courses the caller teaches in one LMS.
	// Returns domain.ErrNotConnected if the user has no usable credential.
	ListRemoteCourses(ctx context.Context, userID string, lms domain.LMSType) ([]*domain.RemoteCourse, error)
}

// ExportJobService queues exports for background workers
type ExportJobService interface {
	// Submit validates the request and queues it.
	Submit(ctx context.Context, req ExportRequest) (*domain.ExportJob, error)

	// Get returns one of the caller's jobs.
	// Returns domain.ErrNotFound for unknown jobs and jobs owned by other users.
	Get(ctx context.Context, userID, jobID string) (*domain.ExportJob, error)
}
