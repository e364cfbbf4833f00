package moodle

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// Ensure Adapter implements the interface.
var _ driven.LMSAdapter = (*Adapter)(nil)

// Adapter exports courses to one Moodle site.
// Course structure is reconciled section by section; see Reconciler.
type Adapter struct {
	client     *Client
	sections   SectionAPI
	reconciler *Reconciler
	config     *Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewAdapter creates a Moodle adapter for a site and web-service token.
func NewAdapter(baseURL, token string, config *Config, logger *slog.Logger) *Adapter {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := NewClient(baseURL, token, config)
	sections := newSectionClient(client, config.CourseFormat)
	return &Adapter{
		client:     client,
		sections:   sections,
		reconciler: NewReconciler(sections, logger),
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Type returns the LMS type.
func (a *Adapter) Type() domain.LMSType {
	return domain.LMSTypeMoodle
}

// CreateCourse creates an empty course containing only the general section.
// Units are added afterwards by SyncStructure.
func (a *Adapter) CreateCourse(ctx context.Context, data domain.CourseExportData) domain.Result[*domain.RemoteCourse] {
	const op = "createCourse"

	format := a.config.CourseFormat
	if format == "" {
		format = "topics"
	}

	params := url.Values{
		"courses[0][fullname]":                      {data.Name},
		"courses[0][shortname]":                     {a.shortName(data.Name)},
		"courses[0][categoryid]":                    {strconv.Itoa(a.config.CategoryID)},
		"courses[0][summary]":                       {data.Description},
		"courses[0][summaryformat]":                 {"1"},
		"courses[0][visible]":                       {"1"},
		"courses[0][format]":                        {format},
		"courses[0][courseformatoptions][0][name]":  {"numsections"},
		"courses[0][courseformatoptions][0][value]": {"0"},
	}
	if data.StartDate != nil {
		params.Set("courses[0][startdate]", strconv.FormatInt(data.StartDate.Unix(), 10))
	}
	if data.EndDate != nil {
		params.Set("courses[0][enddate]", strconv.FormatInt(data.EndDate.Unix(), 10))
	}

	var created []createdCourse
	if err := a.client.Call(ctx, fnCreateCourses, params, &created); err != nil {
		return domain.Fail[*domain.RemoteCourse](op, err)
	}
	if len(created) == 0 {
		return domain.Fail[*domain.RemoteCourse](op, fmt.Errorf("moodle %s: empty response", fnCreateCourses))
	}

	id := strconv.FormatInt(created[0].ID, 10)
	a.logger.Info("created moodle course", "remote_id", id, "shortname", created[0].ShortName)

	return domain.Ok(&domain.RemoteCourse{
		ID:          id,
		Name:        data.Name,
		Description: data.Description,
		StartDate:   data.StartDate,
		EndDate:     data.EndDate,
		Visible:     true,
	})
}

// SyncStructure reconciles the course's sections with the ordered units.
// Repeating the call with unchanged units issues no mutating RPCs.
func (a *Adapter) SyncStructure(ctx context.Context, remoteCourseID string, units []domain.ExportUnit) domain.Result[*domain.StructureSync] {
	const op = "syncStructure"

	if remoteCourseID == "" {
		return domain.Fail[*domain.StructureSync](op, domain.ErrInvalidInput)
	}

	result, err := a.reconciler.Reconcile(ctx, remoteCourseID, units)
	if err != nil {
		return domain.Fail[*domain.StructureSync](op, err)
	}
	return domain.Ok(result)
}

// TestConnection reports the account the web-service token belongs to.
func (a *Adapter) TestConnection(ctx context.Context) domain.Result[*domain.ConnectionInfo] {
	const op = "testConnection"

	var info siteInfo
	if err := a.client.Call(ctx, fnGetSiteInfo, nil, &info); err != nil {
		return domain.Fail[*domain.ConnectionInfo](op, err)
	}

	name := info.FullName
	if name == "" {
		name = info.UserName
	}
	return domain.Ok(&domain.ConnectionInfo{
		LMS:      domain.LMSTypeMoodle,
		UserID:   strconv.FormatInt(info.UserID, 10),
		UserName: name,
		SiteName: info.SiteName,
		Release:  info.Release,
	})
}

// ListCourses lists the courses visible to the token, excluding the site course.
func (a *Adapter) ListCourses(ctx context.Context) domain.Result[[]*domain.RemoteCourse] {
	const op = "listCourses"

	var raw []course
	if err := a.client.Call(ctx, fnGetCourses, nil, &raw); err != nil {
		return domain.Fail[[]*domain.RemoteCourse](op, err)
	}

	courses := make([]*domain.RemoteCourse, 0, len(raw))
	for _, c := range raw {
		if c.Format == "site" {
			continue
		}
		courses = append(courses, &domain.RemoteCourse{
			ID:          strconv.FormatInt(c.ID, 10),
			Name:        c.FullName,
			Description: c.Summary,
			StartDate:   unixTime(c.StartDate),
			EndDate:     unixTime(c.EndDate),
			Visible:     c.Visible != 0,
		})
	}
	return domain.Ok(courses)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// shortName derives a unique course short name.
// Moodle rejects duplicate short names, so a timestamp suffix is appended.
func (a *Adapter) shortName(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if len(slug) > 40 {
		slug = strings.TrimRight(slug[:40], "-")
	}
	if slug == "" {
		slug = "course"
	}
	return fmt.Sprintf("%s-%d", slug, a.now().Unix())
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
