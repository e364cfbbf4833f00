package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// Ensure stores implement the interfaces.
var (
	_ driven.CourseStore     = (*CourseStore)(nil)
	_ driven.ExternalIDStore = (*ExternalIDStore)(nil)
)

// CourseStore reads locally authored courses from PostgreSQL.
type CourseStore struct {
	db          *sql.DB
	externalIDs *ExternalIDStore
}

// NewCourseStore creates a new PostgreSQL-backed course store.
func NewCourseStore(db *sql.DB) *CourseStore {
	return &CourseStore{
		db:          db,
		externalIDs: NewExternalIDStore(db),
	}
}

// Get retrieves a course with its units ordered by position and its remote ids.
func (s *CourseStore) Get(ctx context.Context, courseID string) (*domain.LocalCourse, error) {
	query := `
		SELECT c.id, c.title, c.description, c.start_date, c.end_date,
			   u.id, u.title, u.description, u.position
		FROM courses c
		LEFT JOIN course_units u ON u.course_id = c.id
		WHERE c.id = $1
		ORDER BY u.position ASC, u.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	defer rows.Close()

	var course *domain.LocalCourse
	for rows.Next() {
		var c domain.LocalCourse
		var startDate, endDate sql.NullTime
		var unitID, unitTitle, unitDescription sql.NullString
		var unitPosition sql.NullInt64

		if err := rows.Scan(
			&c.ID,
			&c.Title,
			&c.Description,
			&startDate,
			&endDate,
			&unitID,
			&unitTitle,
			&unitDescription,
			&unitPosition,
		); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}

		if course == nil {
			c.StartDate = TimePtr(startDate)
			c.EndDate = TimePtr(endDate)
			c.Units = []domain.LocalUnit{}
			course = &c
		}

		// LEFT JOIN yields one all-NULL unit row for a course without units
		if !unitID.Valid {
			continue
		}
		course.Units = append(course.Units, domain.LocalUnit{
			ID:          unitID.String,
			Title:       unitTitle.String,
			Description: unitDescription.String,
			Position:    int(unitPosition.Int64),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate course rows: %w", err)
	}
	if course == nil {
		return nil, domain.ErrNotFound
	}

	ids, err := s.externalIDs.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	course.ExternalIDs = ids

	return course, nil
}

// ExternalIDStore persists remote course ids in course_lms_links.
type ExternalIDStore struct {
	db *sql.DB
}

// NewExternalIDStore creates a new PostgreSQL-backed external id store.
func NewExternalIDStore(db *sql.DB) *ExternalIDStore {
	return &ExternalIDStore{db: db}
}

// Get returns the stored remote ids for a course. Unknown LMS rows are ignored.
func (s *ExternalIDStore) Get(ctx context.Context, courseID string) (domain.ExternalIDs, error) {
	var ids domain.ExternalIDs

	rows, err := s.db.QueryContext(ctx,
		`SELECT lms_type, remote_id FROM course_lms_links WHERE course_id = $1`,
		courseID,
	)
	if err != nil {
		return ids, fmt.Errorf("get external ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lmsType, remoteID string
		if err := rows.Scan(&lmsType, &remoteID); err != nil {
			return ids, fmt.Errorf("scan external id: %w", err)
		}
		ids = ids.With(domain.LMSType(lmsType), remoteID)
	}
	if err := rows.Err(); err != nil {
		return ids, fmt.Errorf("iterate external ids: %w", err)
	}
	return ids, nil
}

// Set records the remote course id for one LMS, replacing any previous id.
func (s *ExternalIDStore) Set(ctx context.Context, courseID string, lms domain.LMSType, remoteID string) error {
	query := `
		INSERT INTO course_lms_links (course_id, lms_type, remote_id, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (course_id, lms_type) DO UPDATE SET
			remote_id = EXCLUDED.remote_id,
			updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, courseID, string(lms), remoteID); err != nil {
		return fmt.Errorf("set external id: %w", err)
	}
	return nil
}
