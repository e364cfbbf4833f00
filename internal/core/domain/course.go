package domain

import (
	"sort"
	"strings"
	"time"
)

// LocalCourse is a course authored locally and exported to one or more LMS backends.
// The order of Units defines their 1-based position.
type LocalCourse struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	StartDate   *time.Time  `json:"start_date,omitempty"`
	EndDate     *time.Time  `json:"end_date,omitempty"`
	Units       []LocalUnit `json:"units"`
	ExternalIDs ExternalIDs `json:"external_ids"`
}

// LocalUnit is one unit of a local course.
// ID is stable across syncs; Position may change when units are reordered.
type LocalUnit struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

// ExternalIDs holds the remote course id per LMS, empty when not yet created
type ExternalIDs struct {
	Canvas string `json:"canvas,omitempty"`
	Moodle string `json:"moodle,omitempty"`
}

// Get returns the remote course id for an LMS
func (e ExternalIDs) Get(lms LMSType) string {
	switch lms {
	case LMSTypeCanvas:
		return e.Canvas
	case LMSTypeMoodle:
		return e.Moodle
	}
	return ""
}

// With returns a copy with the remote id for lms replaced
func (e ExternalIDs) With(lms LMSType, remoteID string) ExternalIDs {
	switch lms {
	case LMSTypeCanvas:
		e.Canvas = remoteID
	case LMSTypeMoodle:
		e.Moodle = remoteID
	}
	return e
}

// Validate checks the course has what an export needs
func (c *LocalCourse) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(c.Title) == "" {
		return ErrInvalidInput
	}
	return nil
}

// OrderedUnits returns the units sorted by position and renumbered 1..N.
// Ties keep their slice order.
func (c *LocalCourse) OrderedUnits() []LocalUnit {
	units := make([]LocalUnit, len(c.Units))
	copy(units, c.Units)
	sort.SliceStable(units, func(i, j int) bool {
		return units[i].Position < units[j].Position
	})
	for i := range units {
		units[i].Position = i + 1
	}
	return units
}

// ToExportData converts the course into the payload handed to an LMS adapter
func (c *LocalCourse) ToExportData() CourseExportData {
	ordered := c.OrderedUnits()
	units := make([]ExportUnit, len(ordered))
	for i, u := range ordered {
		units[i] = ExportUnit{
			ID:          u.ID,
			Name:        u.Title,
			Description: u.Description,
			Position:    u.Position,
		}
	}
	return CourseExportData{
		Name:        c.Title,
		Description: c.Description,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		Units:       units,
	}
}

// CourseExportData is the inbound contract of every LMS adapter
type CourseExportData struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	StartDate   *time.Time   `json:"start_date,omitempty"`
	EndDate     *time.Time   `json:"end_date,omitempty"`
	Units       []ExportUnit `json:"units"`
}

// ExportUnit is a unit as seen by an adapter
type ExportUnit struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}
