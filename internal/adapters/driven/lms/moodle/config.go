package moodle

import "time"

// Config contains configuration for the Moodle adapter.
type Config struct {
	// CategoryID is the course category new courses are created in.
	CategoryID int

	// CourseFormat is the format plugin for new courses.
	// Section renames go through this plugin's inplace-editable callback.
	CourseFormat string

	// Timeout bounds a single HTTP round-trip.
	Timeout time.Duration

	// RequestsPerSecond paces RPCs against one site. Zero disables pacing.
	RequestsPerSecond float64

	// MaxRetries is the retry budget for read-only functions on 5xx responses.
	// Mutating functions are never retried.
	MaxRetries int
}

// DefaultConfig returns the default Moodle adapter configuration.
func DefaultConfig() *Config {
	return &Config{
		CategoryID:        1,
		CourseFormat:      "topics",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
		MaxRetries:        2,
	}
}
