package canvas

import "time"

// Config contains configuration for the Canvas adapter.
type Config struct {
	// AccountID is the account new courses are created under.
	// "self" resolves to the token owner's root account.
	AccountID string

	// PerPage is the page size for list endpoints. Canvas caps it at 100.
	PerPage int

	// Timeout bounds a single HTTP round-trip.
	Timeout time.Duration

	// RequestsPerSecond paces requests against one instance. Zero disables pacing.
	RequestsPerSecond float64

	// MaxRetries is the retry budget for GET requests on 5xx and 429.
	MaxRetries int

	// RetryBackoff is the base delay between retries, multiplied by the attempt number.
	RetryBackoff time.Duration
}

// DefaultConfig returns the default Canvas adapter configuration.
func DefaultConfig() *Config {
	return &Config{
		AccountID:         "self",
		PerPage:           100,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
		MaxRetries:        3,
		RetryBackoff:      time.Second,
	}
}
