package domain

import (
	"fmt"
	"strings"
)

// LMSType identifies a Learning Management System backend
type LMSType string

const (
	LMSTypeCanvas LMSType = "canvas"
	LMSTypeMoodle LMSType = "moodle"
)

// SupportedLMSTypes returns every backend the export engine can target
func SupportedLMSTypes() []LMSType {
	return []LMSType{LMSTypeCanvas, LMSTypeMoodle}
}

// IsValid checks if the LMS type is one of the supported backends
func (t LMSType) IsValid() bool {
	switch t {
	case LMSTypeCanvas, LMSTypeMoodle:
		return true
	}
	return false
}

// String implements fmt.Stringer
func (t LMSType) String() string {
	return string(t)
}

// ParseLMSType converts user input into an LMSType.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseLMSType(s string) (LMSType, error) {
	t := LMSType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLMS, s)
	}
	return t, nil
}

// ParseLMSTypes parses a list of LMS names, dropping duplicates.
// An empty list means all supported backends.
func ParseLMSTypes(values []string) ([]LMSType, error) {
	if len(values) == 0 {
		return SupportedLMSTypes(), nil
	}

	seen := make(map[LMSType]bool, len(values))
	types := make([]LMSType, 0, len(values))
	for _, v := range values {
		t, err := ParseLMSType(v)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	return types, nil
}
