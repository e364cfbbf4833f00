package lms

import (
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.AdapterFactory = (*Factory)(nil)

// Factory creates LMS adapters.
// It maintains a registry of AdapterBuilders keyed by LMS type; the type on
// the credentials selects the builder.
type Factory struct {
	mu       sync.RWMutex
	builders map[domain.LMSType]driven.AdapterBuilder
}

// NewFactory creates an adapter factory with the given builders registered.
func NewFactory(builders ...driven.AdapterBuilder) *Factory {
	f := &Factory{
		builders: make(map[domain.LMSType]driven.AdapterBuilder),
	}
	for _, b := range builders {
		f.Register(b)
	}
	return f
}

// Register registers an adapter builder for its LMS type.
func (f *Factory) Register(builder driven.AdapterBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[builder.Type()] = builder
}

// Build creates an adapter for the credentials' LMS type.
func (f *Factory) Build(creds *domain.Credentials) (driven.LMSAdapter, error) {
	if creds == nil {
		return nil, fmt.Errorf("%w: credentials are required", domain.ErrInvalidInput)
	}

	f.mu.RLock()
	builder, ok := f.builders[creds.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLMS, creds.Type)
	}

	adapter, err := builder.Build(creds)
	if err != nil {
		return nil, fmt.Errorf("build %s adapter: %w", creds.Type, err)
	}
	return adapter, nil
}

// SupportedTypes returns all registered LMS types, sorted.
func (f *Factory) SupportedTypes() []domain.LMSType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]domain.LMSType, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
