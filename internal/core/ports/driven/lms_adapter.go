package driven

import (
	"context"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

// LMSAdapter pushes course structure into one LMS backend.
// Every method reports transport failures inside the returned Result; an adapter
// never surfaces a remote failure any other way.
type LMSAdapter interface {
	// Type returns the backend this adapter talks to.
	Type() domain.LMSType

	// CreateCourse creates the remote course. Called once per (course, LMS).
	CreateCourse(ctx context.Context, data domain.CourseExportData) domain.Result[*domain.RemoteCourse]

	// SyncStructure pushes the complete ordered unit list into the remote course.
	// Implementations compute their own diff (or none at all).
	SyncStructure(ctx context.Context, remoteCourseID string, units []domain.ExportUnit) domain.Result[*domain.StructureSync]

	// TestConnection checks the credentials against the backend.
	TestConnection(ctx context.Context) domain.Result[*domain.ConnectionInfo]

	// ListCourses lists the courses the authenticated user teaches.
	ListCourses(ctx context.Context) domain.Result[[]*domain.RemoteCourse]
}

// AdapterBuilder creates adapters for one LMS type.
// Each backend registers its builder with the AdapterFactory.
type AdapterBuilder interface {
	// Type returns the LMS type this builder creates.
	Type() domain.LMSType

	// Build creates an adapter bound to the given credentials.
	Build(creds *domain.Credentials) (LMSAdapter, error)
}

// AdapterFactory selects an adapter by the credentials' LMS type.
type AdapterFactory interface {
	// Build creates an adapter for creds.Type.
	// Returns domain.ErrUnsupportedLMS when no builder is registered.
	Build(creds *domain.Credentials) (LMSAdapter, error)

	// SupportedTypes returns all registered LMS types.
	SupportedTypes() []domain.LMSType
}
