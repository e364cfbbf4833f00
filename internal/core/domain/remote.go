package domain

import "time"

// RemoteCourse is a course as it exists in an LMS.
// It is created once per (course, LMS) and afterwards only referenced by id.
type RemoteCourse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Visible     bool       `json:"visible"`
}

// RemoteStructureElement is a Canvas module or a Moodle section.
// For Moodle, Position is the section ordinal and is the element's stable identity.
type RemoteStructureElement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
}

// ConnectionInfo describes the account an adapter is authenticated as
type ConnectionInfo struct {
	LMS      LMSType `json:"lms"`
	UserID   string  `json:"user_id"`
	UserName string  `json:"user_name"`
	SiteName string  `json:"site_name,omitempty"`
	Release  string  `json:"release,omitempty"`
}

// SectionState is the observed state of one Moodle section
type SectionState struct {
	ID      string `json:"id"`
	Ordinal int    `json:"ordinal"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
}

// SectionRename is one pending rename, keyed by the section's remote id
type SectionRename struct {
	ID          string `json:"id"`
	Ordinal     int    `json:"ordinal"`
	CurrentName string `json:"current_name"`
	NewName     string `json:"new_name"`
}

// SectionSync is the diff between observed sections and desired units.
// It is recomputed on every sync and never stored.
type SectionSync struct {
	ToCreate  []int           `json:"to_create"`
	ToRename  []SectionRename `json:"to_rename"`
	ToShow    []string        `json:"to_show"`
	Unchanged []string        `json:"unchanged"`
}

// IsNoop reports whether the remote structure already matches
func (s SectionSync) IsNoop() bool {
	return len(s.ToCreate) == 0 && len(s.ToRename) == 0 && len(s.ToShow) == 0
}

// OperationKind names a single mutating remote call
type OperationKind string

const (
	OpCreateModule    OperationKind = "create_module"
	OpAddSection      OperationKind = "add_section"
	OpSetSectionCount OperationKind = "set_section_count"
	OpRenameSection   OperationKind = "rename_section"
	OpShowSection     OperationKind = "show_section"
)

// OperationResult records the outcome of one mutating remote call
type OperationResult struct {
	Kind     OperationKind `json:"kind"`
	Ordinal  int           `json:"ordinal,omitempty"`
	TargetID string        `json:"target_id,omitempty"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// NewOperationResult builds an OperationResult, copying err's message for serialization
func NewOperationResult(kind OperationKind, ordinal int, targetID string, err error) OperationResult {
	op := OperationResult{
		Kind:     kind,
		Ordinal:  ordinal,
		TargetID: targetID,
		Err:      err,
	}
	if err != nil {
		op.Error = err.Error()
	}
	return op
}

// OK reports whether the call succeeded
func (o OperationResult) OK() bool {
	return o.Err == nil
}

// StructureSync is the value returned by SyncStructure:
// the canonical remote structure plus every mutating call that was attempted.
type StructureSync struct {
	Elements   []RemoteStructureElement `json:"elements"`
	Operations []OperationResult        `json:"operations"`
}

// Failed returns the operations that did not succeed
func (s *StructureSync) Failed() []OperationResult {
	var failed []OperationResult
	for _, op := range s.Operations {
		if !op.OK() {
			failed = append(failed, op)
		}
	}
	return failed
}

// Mutations counts attempted mutating calls, successful or not
func (s *StructureSync) Mutations() int {
	return len(s.Operations)
}
