package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnsupportedLMS indicates the LMS type has no registered adapter
	ErrUnsupportedLMS = errors.New("unsupported lms")

	// ErrNotConnected indicates the user has no usable credential for an LMS
	ErrNotConnected = errors.New("lms not connected")

	// ErrExportInProgress indicates another export holds the course/LMS lock
	ErrExportInProgress = errors.New("export already in progress")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")
)
