package driven

import (
	"context"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

// CourseStore reads locally authored courses.
// The authoring layer owns writes; the export engine only reads.
type CourseStore interface {
	// Get retrieves a course with its units ordered by position.
	// Returns domain.ErrNotFound if the course doesn't exist.
	Get(ctx context.Context, courseID string) (*domain.LocalCourse, error)
}

// ExternalIDStore persists the remote course id created in each LMS.
// The presence of an id switches later exports to update-only mode.
type ExternalIDStore interface {
	// Get returns the stored remote ids for a course; missing ids are empty strings.
	Get(ctx context.Context, courseID string) (domain.ExternalIDs, error)

	// Set records the remote course id for one LMS.
	Set(ctx context.Context, courseID string, lms domain.LMSType, remoteID string) error
}
