package mocks

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// Ensure the mocks implement their interfaces
var (
	_ driven.LMSAdapter     = (*MockLMSAdapter)(nil)
	_ driven.AdapterFactory = (*MockAdapterFactory)(nil)
)

// MockLMSAdapter is a mock LMSAdapter.
// By default CreateCourse returns a fresh id and SyncStructure echoes the units
// back as elements. Fn hooks override individual operations.
type MockLMSAdapter struct {
	mu      sync.Mutex
	lmsType domain.LMSType
	nextID  int

	CreateCourseFn   func(data domain.CourseExportData) domain.Result[*domain.RemoteCourse]
	SyncStructureFn  func(remoteCourseID string, units []domain.ExportUnit) domain.Result[*domain.StructureSync]
	TestConnectionFn func() domain.Result[*domain.ConnectionInfo]
	ListCoursesFn    func() domain.Result[[]*domain.RemoteCourse]

	CreateCalls int
	SyncCalls   []string // remote course ids passed to SyncStructure
	SyncedUnits [][]domain.ExportUnit
}

// NewMockLMSAdapter creates a mock adapter reporting the given type
func NewMockLMSAdapter(lmsType domain.LMSType) *MockLMSAdapter {
	return &MockLMSAdapter{lmsType: lmsType, nextID: 1}
}

func (m *MockLMSAdapter) Type() domain.LMSType {
	return m.lmsType
}

func (m *MockLMSAdapter) CreateCourse(ctx context.Context, data domain.CourseExportData) domain.Result[*domain.RemoteCourse] {
	m.mu.Lock()
	m.CreateCalls++
	id := fmt.Sprintf("%s-%d", m.lmsType, m.nextID)
	m.nextID++
	m.mu.Unlock()

	if m.CreateCourseFn != nil {
		return m.CreateCourseFn(data)
	}
	return domain.Ok(&domain.RemoteCourse{ID: id, Name: data.Name, Description: data.Description})
}

func (m *MockLMSAdapter) SyncStructure(ctx context.Context, remoteCourseID string, units []domain.ExportUnit) domain.Result[*domain.StructureSync] {
	m.mu.Lock()
	m.SyncCalls = append(m.SyncCalls, remoteCourseID)
	m.SyncedUnits = append(m.SyncedUnits, units)
	m.mu.Unlock()

	if m.SyncStructureFn != nil {
		return m.SyncStructureFn(remoteCourseID, units)
	}
	elements := make([]domain.RemoteStructureElement, len(units))
	for i, u := range units {
		elements[i] = domain.RemoteStructureElement{
			ID:       remoteCourseID + "/" + strconv.Itoa(i+1),
			Name:     u.Name,
			Position: i + 1,
		}
	}
	return domain.Ok(&domain.StructureSync{Elements: elements})
}

func (m *MockLMSAdapter) TestConnection(ctx context.Context) domain.Result[*domain.ConnectionInfo] {
	if m.TestConnectionFn != nil {
		return m.TestConnectionFn()
	}
	return domain.Ok(&domain.ConnectionInfo{LMS: m.lmsType, UserID: "1", UserName: "mock"})
}

func (m *MockLMSAdapter) ListCourses(ctx context.Context) domain.Result[[]*domain.RemoteCourse] {
	if m.ListCoursesFn != nil {
		return m.ListCoursesFn()
	}
	return domain.Ok([]*domain.RemoteCourse{})
}

// MockAdapterFactory hands out pre-registered mock adapters by type
type MockAdapterFactory struct {
	mu       sync.Mutex
	adapters map[domain.LMSType]*MockLMSAdapter

	// BuildErr, if set, is returned by every Build call
	BuildErr error
	// Built records the credentials passed to Build
	Built []domain.Credentials
}

// NewMockAdapterFactory creates a factory serving the given adapters
func NewMockAdapterFactory(adapters ...*MockLMSAdapter) *MockAdapterFactory {
	f := &MockAdapterFactory{adapters: make(map[domain.LMSType]*MockLMSAdapter)}
	for _, a := range adapters {
		f.adapters[a.Type()] = a
	}
	return f
}

func (f *MockAdapterFactory) Build(creds *domain.Credentials) (driven.LMSAdapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if creds == nil {
		return nil, domain.ErrInvalidInput
	}
	f.Built = append(f.Built, *creds)
	if f.BuildErr != nil {
		return nil, f.BuildErr
	}
	a, ok := f.adapters[creds.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLMS, creds.Type)
	}
	return a, nil
}

func (f *MockAdapterFactory) SupportedTypes() []domain.LMSType {
	return domain.SupportedLMSTypes()
}
