package domain

import "time"

// ExportStatus represents the outcome of exporting a course to one LMS
type ExportStatus string

const (
	ExportStatusSuccess      ExportStatus = "success"
	ExportStatusPartial      ExportStatus = "partial" // Structure synced, some operations failed
	ExportStatusFailed       ExportStatus = "failed"
	ExportStatusNotConnected ExportStatus = "not_connected"
	ExportStatusBusy         ExportStatus = "busy" // Another export holds the lock
)

// ExportOutcome is the per-LMS result of an export.
// Outcomes are independent: one LMS failing never changes another's outcome.
type ExportOutcome struct {
	LMS            LMSType                  `json:"lms"`
	Status         ExportStatus             `json:"status"`
	RemoteCourseID string                   `json:"remote_course_id,omitempty"`
	CourseCreated  bool                     `json:"course_created"`
	Elements       []RemoteStructureElement `json:"elements,omitempty"`
	Operations     []OperationResult        `json:"operations,omitempty"`
	Error          string                   `json:"error,omitempty"`
	Duration       float64                  `json:"duration_seconds"`
}

// Succeeded reports whether the structure reached the LMS, even if partially
func (o *ExportOutcome) Succeeded() bool {
	return o.Status == ExportStatusSuccess || o.Status == ExportStatusPartial
}

// ExportReport collects the outcomes of one export run
type ExportReport struct {
	ID          string           `json:"id"`
	CourseID    string           `json:"course_id"`
	UserID      string           `json:"user_id"`
	Outcomes    []*ExportOutcome `json:"outcomes"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Outcome returns the outcome for an LMS, or nil if it was not a target
func (r *ExportReport) Outcome(lms LMSType) *ExportOutcome {
	for _, o := range r.Outcomes {
		if o.LMS == lms {
			return o
		}
	}
	return nil
}

// AllSucceeded reports whether every targeted LMS received the structure
func (r *ExportReport) AllSucceeded() bool {
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			return false
		}
	}
	return len(r.Outcomes) > 0
}
