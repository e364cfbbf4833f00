package moodle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

// moodleServer is a fake Moodle REST endpoint holding one course.
type moodleServer struct {
	mu       sync.Mutex
	token    string
	sections []section
	nextID   int64
	calls    []string
	// params holds the last request form per function.
	params map[string]url.Values
	// fail maps a function to the exception it raises.
	fail map[string]string
	// status maps a function to a forced HTTP status.
	status map[string]int
}

func newMoodleServer(t *testing.T) (*moodleServer, *httptest.Server) {
	t.Helper()
	ms := &moodleServer{
		token:    "ws-token",
		sections: []section{{ID: 500, Section: 0}},
		nextID:   501,
		params:   map[string]url.Values{},
		fail:     map[string]string{},
		status:   map[string]int{},
	}
	srv := httptest.NewServer(http.HandlerFunc(ms.handle))
	t.Cleanup(srv.Close)
	return ms, srv
}

func (m *moodleServer) callCount(fn string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == fn {
			n++
		}
	}
	return n
}

func (m *moodleServer) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.Method != http.MethodPost || r.URL.Path != restPath {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	fn := r.PostForm.Get("wsfunction")
	m.calls = append(m.calls, fn)
	m.params[fn] = r.PostForm

	if code, ok := m.status[fn]; ok {
		w.WriteHeader(code)
		_, _ = w.Write([]byte("upstream error"))
		return
	}
	if r.PostForm.Get("wstoken") != m.token {
		writeRPC(w, map[string]string{"exception": "moodle_exception", "errorcode": "invalidtoken", "message": "Invalid token"})
		return
	}
	if r.PostForm.Get("moodlewsrestformat") != "json" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if msg, ok := m.fail[fn]; ok {
		writeRPC(w, map[string]string{"exception": "moodle_exception", "errorcode": "generalexceptionmessage", "message": msg})
		return
	}

	switch fn {
	case fnCreateCourses:
		writeRPC(w, []createdCourse{{ID: 77, ShortName: r.PostForm.Get("courses[0][shortname]")}})
	case fnGetContents:
		writeRPC(w, m.sections)
	case fnUpdateCourseState:
		vis := 1
		m.sections = append(m.sections, section{ID: m.nextID, Section: len(m.sections), Visible: &vis})
		m.nextID++
		writeRPC(w, []any{})
	case fnInplaceEditable:
		id, _ := strconv.ParseInt(r.PostForm.Get("itemid"), 10, 64)
		for i := range m.sections {
			if m.sections[i].ID == id {
				m.sections[i].Name = r.PostForm.Get("value")
			}
		}
		writeRPC(w, map[string]any{"value": r.PostForm.Get("value")})
	case fnEditSection:
		id, _ := strconv.ParseInt(r.PostForm.Get("id"), 10, 64)
		for i := range m.sections {
			if m.sections[i].ID == id {
				vis := 1
				m.sections[i].Visible = &vis
			}
		}
		writeRPC(w, "[]")
	case fnGetSiteInfo:
		writeRPC(w, siteInfo{SiteName: "Campus", UserName: "teacher1", FullName: "Ada Teacher", UserID: 3, Release: "4.3"})
	case fnGetCourses:
		writeRPC(w, []course{
			{ID: 1, FullName: "Campus", Format: "site"},
			{ID: 77, FullName: "Algebra", Summary: "Intro", Format: "topics", StartDate: 1700000000, Visible: 1},
		})
	default:
		writeRPC(w, map[string]string{"exception": "dml_missing_record_exception", "errorcode": "invalidrecord", "message": "unknown function"})
	}
}

func writeRPC(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 0
	cfg.MaxRetries = 1
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestAdapter_Type(t *testing.T) {
	a := NewAdapter("http://example.invalid", "tok", nil, nil)
	if a.Type() != domain.LMSTypeMoodle {
		t.Errorf("Type = %s", a.Type())
	}
}

func TestAdapter_CreateCourse(t *testing.T) {
	ms, srv := newMoodleServer(t)
	a := NewAdapter(srv.URL, ms.token, testConfig(), nil)
	a.now = func() time.Time { return time.Unix(1700000000, 0) }

	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	res := a.CreateCourse(context.Background(), domain.CourseExportData{
		Name:        "Algebra I: Foundations",
		Description: "Linear equations",
		StartDate:   &start,
	})
	if !res.OK() {
		t.Fatalf("CreateCourse: %v", res.Err)
	}
	if res.Value.ID != "77" {
		t.Errorf("ID = %q, want 77", res.Value.ID)
	}

	got := ms.params[fnCreateCourses]
	checks := map[string]string{
		"courses[0][fullname]":                      "Algebra I: Foundations",
		"courses[0][shortname]":                     "algebra-i-foundations-1700000000",
		"courses[0][categoryid]":                    "1",
		"courses[0][summary]":                       "Linear equations",
		"courses[0][startdate]":                     strconv.FormatInt(start.Unix(), 10),
		"courses[0][format]":                        "topics",
		"courses[0][courseformatoptions][0][value]": "0",
	}
	for k, want := range checks {
		if v := got[k]; len(v) != 1 || v[0] != want {
			t.Errorf("%s = %v, want %q", k, v, want)
		}
	}
	if _, ok := got["courses[0][enddate]"]; ok {
		t.Error("enddate should be omitted when unset")
	}
}

func TestAdapter_CreateCourse_RPCError(t *testing.T) {
	ms, srv := newMoodleServer(t)
	ms.fail[fnCreateCourses] = "Short name is already used"
	a := NewAdapter(srv.URL, ms.token, testConfig(), nil)

	res := a.CreateCourse(context.Background(), domain.CourseExportData{Name: "X"})
	if res.OK() {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(res.Error(), "createCourse: ") {
		t.Errorf("error not prefixed with operation: %q", res.Error())
	}
	var rpcErr *RPCError
	if !errors.As(res.Err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T", res.Err)
	}
	if rpcErr.Function != fnCreateCourses || rpcErr.ErrorCode != "generalexceptionmessage" {
		t.Errorf("RPCError = %+v", rpcErr)
	}
}

func TestAdapter_SyncStructure_EndToEnd(t *testing.T) {
	ms, srv := newMoodleServer(t)
	a := NewAdapter(srv.URL, ms.token, testConfig(), nil)
	ctx := context.Background()
	desired := []domain.ExportUnit{
		{ID: "u1", Name: "Intro", Position: 1},
		{ID: "u2", Name: "Advanced", Position: 2},
	}

	first := a.SyncStructure(ctx, "77", desired)
	if !first.OK() {
		t.Fatalf("first sync: %v", first.Err)
	}
	want := []domain.RemoteStructureElement{
		{ID: "501", Name: "Intro", Position: 1},
		{ID: "502", Name: "Advanced", Position: 2},
	}
	if len(first.Value.Elements) != 2 || first.Value.Elements[0] != want[0] || first.Value.Elements[1] != want[1] {
		t.Errorf("elements = %+v, want %+v", first.Value.Elements, want)
	}
	if ms.callCount(fnUpdateCourseState) != 2 || ms.callCount(fnInplaceEditable) != 2 || ms.callCount(fnEditSection) != 0 {
		t.Errorf("calls = %v", ms.calls)
	}

	ms.mu.Lock()
	ms.calls = nil
	ms.mu.Unlock()

	second := a.SyncStructure(ctx, "77", desired)
	if !second.OK() {
		t.Fatalf("second sync: %v", second.Err)
	}
	if len(ms.calls) != 1 || ms.calls[0] != fnGetContents {
		t.Errorf("second sync calls = %v, want a single fetch", ms.calls)
	}
	if len(second.Value.Operations) != 0 {
		t.Errorf("second sync operations = %+v", second.Value.Operations)
	}
}

func TestAdapter_SyncStructure_RenameUsesFormatComponent(t *testing.T) {
	ms, srv := newMoodleServer(t)
	cfg := testConfig()
	cfg.CourseFormat = "weeks"
	a := NewAdapter(srv.URL, ms.token, cfg, nil)

	vis := 1
	ms.sections = append(ms.sections, section{ID: 501, Section: 1, Name: "old", Visible: &vis})

	res := a.SyncStructure(context.Background(), "77", []domain.ExportUnit{{ID: "u1", Name: "new", Position: 1}})
	if !res.OK() {
		t.Fatalf("SyncStructure: %v", res.Err)
	}

	form, ok := ms.params[fnInplaceEditable]
	if !ok {
		t.Fatal("expected a rename call")
	}
	if form.Get("component") != "format_weeks" || form.Get("itemtype") != "sectionname" || form.Get("itemid") != "501" {
		t.Errorf("rename form = %v", form)
	}
	if ms.sections[1].Name != "new" {
		t.Errorf("name = %q", ms.sections[1].Name)
	}
}

func TestAdapter_SyncStructure_FetchFailure(t *testing.T) {
	ms, srv := newMoodleServer(t)
	ms.fail[fnGetContents] = "Course not found"
	a := NewAdapter(srv.URL, ms.token, testConfig(), nil)

	res := a.SyncStructure(context.Background(), "999", []domain.ExportUnit{{ID: "u1", Name: "A", Position: 1}})
	if res.OK() {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(res.Error(), "syncStructure: ") {
		t.Errorf("error = %q", res.Error())
	}
}

func TestAdapter_SyncStructure_RequiresCourseID(t *testing.T) {
	a := NewAdapter("http://example.invalid", "tok", testConfig(), nil)

	res := a.SyncStructure(context.Background(), "", nil)
	if !errors.Is(res.Err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", res.Err)
	}
}

func TestAdapter_TestConnection(t *testing.T) {
	ms, srv := newMoodleServer(t)
	a := NewAdapter(srv.URL, ms.token, testConfig(), nil)

	res := a.TestConnection(context.Background())
	if !res.OK() {
		t.Fatalf("TestConnection: %v", res.Err)
	}
	want := domain.ConnectionInfo{LMS: domain.LMSTypeMoodle, UserID: "3", UserName: "Ada Teacher", SiteName: "Campus", Release: "4.3"}
	if *res.Value != want {
		t.Errorf("info = %+v, want %+v", *res.Value, want)
	}
}

func TestAdapter_TestConnection_InvalidToken(t *testing.T) {
	_, srv := newMoodleServer(t)
	a := NewAdapter(srv.URL, "wrong", testConfig(), nil)

	res := a.TestConnection(context.Background())
	var rpcErr *RPCError
	if !errors.As(res.Err, &rpcErr) || rpcErr.ErrorCode != "invalidtoken" {
		t.Errorf("err = %v, want invalidtoken RPCError", res.Err)
	}
}

func TestAdapter_ListCourses_SkipsSiteCourse(t *testing.T) {
	ms, srv := newMoodleServer(t)
	a := NewAdapter(srv.URL, ms.token, testConfig(), nil)

	res := a.ListCourses(context.Background())
	if !res.OK() {
		t.Fatalf("ListCourses: %v", res.Err)
	}
	if len(res.Value) != 1 {
		t.Fatalf("courses = %d, want 1", len(res.Value))
	}
	c := res.Value[0]
	if c.ID != "77" || c.Name != "Algebra" || !c.Visible || c.StartDate == nil || c.EndDate != nil {
		t.Errorf("course = %+v", c)
	}
}

func TestClient_RetriesReadOnlyOn5xx(t *testing.T) {
	ms, srv := newMoodleServer(t)
	ms.status[fnGetSiteInfo] = http.StatusBadGateway
	a := NewAdapter(srv.URL, ms.token, testConfig(), nil)

	res := a.TestConnection(context.Background())
	var httpErr *HTTPError
	if !errors.As(res.Err, &httpErr) || httpErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want HTTPError 502", res.Err)
	}
	if n := ms.callCount(fnGetSiteInfo); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestClient_DoesNotRetryMutations(t *testing.T) {
	ms, srv := newMoodleServer(t)
	ms.status[fnCreateCourses] = http.StatusInternalServerError
	a := NewAdapter(srv.URL, ms.token, testConfig(), nil)

	res := a.CreateCourse(context.Background(), domain.CourseExportData{Name: "X"})
	if res.OK() {
		t.Fatal("expected failure")
	}
	if n := ms.callCount(fnCreateCourses); n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}
}

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(nil, nil)
	if b.Type() != domain.LMSTypeMoodle {
		t.Errorf("Type = %s", b.Type())
	}

	tests := []struct {
		name    string
		creds   *domain.Credentials
		wantErr bool
	}{
		{"nil credentials", nil, true},
		{"missing token", &domain.Credentials{Type: domain.LMSTypeMoodle, BaseURL: "https://m.example"}, true},
		{"missing base url", &domain.Credentials{Type: domain.LMSTypeMoodle, AccessToken: "t"}, true},
		{"valid", &domain.Credentials{Type: domain.LMSTypeMoodle, AccessToken: "t", BaseURL: "https://m.example"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := b.Build(tt.creds)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Errorf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if adapter.Type() != domain.LMSTypeMoodle {
				t.Errorf("adapter type = %s", adapter.Type())
			}
		})
	}
}
