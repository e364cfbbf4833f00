package moodle

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

// SectionAPI is the set of remote section operations the reconciler depends on.
type SectionAPI interface {
	GetSections(ctx context.Context, courseID string) ([]domain.SectionState, error)
	AddSection(ctx context.Context, courseID string) error
	SetSectionCount(ctx context.Context, courseID string, count int) error
	RenameSection(ctx context.Context, sectionID, name string) error
	ShowSection(ctx context.Context, sectionID string) error
}

// Ensure sectionClient implements the interface.
var _ SectionAPI = (*sectionClient)(nil)

// sectionClient maps SectionAPI onto web-service functions.
type sectionClient struct {
	client *Client
	format string
}

func newSectionClient(client *Client, format string) *sectionClient {
	if format == "" {
		format = "topics"
	}
	return &sectionClient{client: client, format: format}
}

// GetSections fetches the course contents and maps each section to its state.
func (s *sectionClient) GetSections(ctx context.Context, courseID string) ([]domain.SectionState, error) {
	var raw []section
	params := url.Values{"courseid": {courseID}}
	if err := s.client.Call(ctx, fnGetContents, params, &raw); err != nil {
		return nil, err
	}

	states := make([]domain.SectionState, len(raw))
	for i, sec := range raw {
		states[i] = domain.SectionState{
			ID:      strconv.FormatInt(sec.ID, 10),
			Ordinal: sec.Section,
			Name:    sec.Name,
			Visible: sec.isVisible(),
		}
	}
	return states, nil
}

// AddSection appends exactly one unnamed section to the course.
func (s *sectionClient) AddSection(ctx context.Context, courseID string) error {
	params := url.Values{
		"action":   {"section_add"},
		"courseid": {courseID},
	}
	return s.client.Call(ctx, fnUpdateCourseState, params, nil)
}

// SetSectionCount sets the legacy numsections course format option.
// Older sites without section_add grow the course this way.
func (s *sectionClient) SetSectionCount(ctx context.Context, courseID string, count int) error {
	params := url.Values{
		"courses[0][id]":                            {courseID},
		"courses[0][courseformatoptions][0][name]":  {"numsections"},
		"courses[0][courseformatoptions][0][value]": {strconv.Itoa(count)},
	}
	var resp updateCoursesResponse
	if err := s.client.Call(ctx, fnUpdateCourses, params, &resp); err != nil {
		return err
	}
	if len(resp.Warnings) > 0 {
		w := resp.Warnings[0]
		return fmt.Errorf("moodle %s: %s (%s)", fnUpdateCourses, w.Message, w.WarningCode)
	}
	return nil
}

// RenameSection renames a section by its remote id.
func (s *sectionClient) RenameSection(ctx context.Context, sectionID, name string) error {
	params := url.Values{
		"component": {"format_" + s.format},
		"itemtype":  {"sectionname"},
		"itemid":    {sectionID},
		"value":     {name},
	}
	return s.client.Call(ctx, fnInplaceEditable, params, nil)
}

// ShowSection makes a hidden section visible to students.
func (s *sectionClient) ShowSection(ctx context.Context, sectionID string) error {
	params := url.Values{
		"action": {"show"},
		"id":     {sectionID},
	}
	return s.client.Call(ctx, fnEditSection, params, nil)
}
