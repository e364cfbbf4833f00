package canvas

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// Ensure Adapter implements the interface.
var _ driven.LMSAdapter = (*Adapter)(nil)

// Adapter exports courses to one Canvas instance.
//
// Canvas modules are append-only here: SyncStructure creates one module per
// unit on every call without comparing against existing modules, so calling
// it twice for the same course duplicates the modules.
type Adapter struct {
	client *Client
	config *Config
	logger *slog.Logger
}

// NewAdapter creates a Canvas adapter for an instance and access token.
func NewAdapter(baseURL, token string, config *Config, logger *slog.Logger) *Adapter {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		client: NewClient(baseURL, token, config),
		config: config,
		logger: logger,
	}
}

// Type returns the LMS type.
func (a *Adapter) Type() domain.LMSType {
	return domain.LMSTypeCanvas
}

// CreateCourse creates the course in a single call.
func (a *Adapter) CreateCourse(ctx context.Context, data domain.CourseExportData) domain.Result[*domain.RemoteCourse] {
	const op = "createCourse"

	account := a.config.AccountID
	if account == "" {
		account = "self"
	}
	path := fmt.Sprintf("/api/v1/accounts/%s/courses", url.PathEscape(account))

	body := courseParams{Course: newCourse{
		Name:              data.Name,
		CourseCode:        courseCode(data.Name),
		PublicDescription: data.Description,
		StartAt:           data.StartDate,
		EndAt:             data.EndDate,
	}}

	var created course
	if _, err := a.client.Do(ctx, "create course", http.MethodPost, path, body, &created); err != nil {
		return domain.Fail[*domain.RemoteCourse](op, err)
	}

	a.logger.Info("created canvas course", "remote_id", created.ID, "account", account)
	return domain.Ok(toRemoteCourse(created))
}

// SyncStructure creates one module per unit, in order.
// A failed module is recorded and the remaining units are still attempted.
func (a *Adapter) SyncStructure(ctx context.Context, remoteCourseID string, units []domain.ExportUnit) domain.Result[*domain.StructureSync] {
	const op = "syncStructure"

	if remoteCourseID == "" {
		return domain.Fail[*domain.StructureSync](op, domain.ErrInvalidInput)
	}
	path := fmt.Sprintf("/api/v1/courses/%s/modules", url.PathEscape(remoteCourseID))

	result := &domain.StructureSync{
		Elements: make([]domain.RemoteStructureElement, 0, len(units)),
	}
	for i, unit := range units {
		position := unit.Position
		if position <= 0 {
			position = i + 1
		}
		body := moduleParams{Module: newModule{Name: unit.Name, Position: position}}

		var created module
		_, err := a.client.Do(ctx, "create module", http.MethodPost, path, body, &created)
		if err != nil {
			result.Operations = append(result.Operations,
				domain.NewOperationResult(domain.OpCreateModule, position, "", err))
			a.logger.Warn("create canvas module failed",
				"course_id", remoteCourseID,
				"unit_id", unit.ID,
				"position", position,
				"error", err,
			)
			continue
		}

		id := strconv.FormatInt(created.ID, 10)
		result.Operations = append(result.Operations,
			domain.NewOperationResult(domain.OpCreateModule, position, id, nil))

		pos := created.Position
		if pos == 0 {
			pos = position
		}
		name := created.Name
		if name == "" {
			name = unit.Name
		}
		result.Elements = append(result.Elements, domain.RemoteStructureElement{
			ID:          id,
			Name:        name,
			Description: unit.Description,
			Position:    pos,
		})
	}

	// Nothing was created at all, which is a failed call rather than a partial one.
	if len(units) > 0 && len(result.Elements) == 0 {
		return domain.Fail[*domain.StructureSync](op, result.Operations[0].Err)
	}
	return domain.Ok(result)
}

// TestConnection reports the profile the token belongs to.
func (a *Adapter) TestConnection(ctx context.Context) domain.Result[*domain.ConnectionInfo] {
	const op = "testConnection"

	var p profile
	if _, err := a.client.Do(ctx, "get profile", http.MethodGet, "/api/v1/users/self/profile", nil, &p); err != nil {
		return domain.Fail[*domain.ConnectionInfo](op, err)
	}
	return domain.Ok(&domain.ConnectionInfo{
		LMS:      domain.LMSTypeCanvas,
		UserID:   strconv.FormatInt(p.ID, 10),
		UserName: p.Name,
	})
}

// ListCourses lists the courses the token owner teaches, following pagination.
func (a *Adapter) ListCourses(ctx context.Context) domain.Result[[]*domain.RemoteCourse] {
	const op = "listCourses"

	perPage := a.config.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 100
	}
	next := fmt.Sprintf("/api/v1/courses?enrollment_type=teacher&per_page=%d", perPage)

	var courses []*domain.RemoteCourse
	for next != "" {
		var page []course
		link, err := a.client.Do(ctx, "list courses", http.MethodGet, next, nil, &page)
		if err != nil {
			return domain.Fail[[]*domain.RemoteCourse](op, err)
		}
		for _, c := range page {
			courses = append(courses, toRemoteCourse(c))
		}
		next = link
	}
	if courses == nil {
		courses = []*domain.RemoteCourse{}
	}
	return domain.Ok(courses)
}

func toRemoteCourse(c course) *domain.RemoteCourse {
	return &domain.RemoteCourse{
		ID:          strconv.FormatInt(c.ID, 10),
		Name:        c.Name,
		Description: c.PublicDescription,
		StartDate:   c.StartAt,
		EndDate:     c.EndAt,
		Visible:     c.WorkflowState == "available",
	}
}

// courseCode builds a short code from the initials of the course name.
func courseCode(name string) string {
	var b strings.Builder
	for _, w := range strings.Fields(name) {
		r := []rune(w)
		if len(r) > 0 {
			b.WriteString(strings.ToUpper(string(r[0])))
		}
		if b.Len() >= 10 {
			break
		}
	}
	return b.String()
}
