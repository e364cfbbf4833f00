package domain

import "fmt"

// Result is the tagged success/failure value returned across the LMS adapter contract.
// Remote calls are unreliable; adapters report failure in Err instead of returning
// a second error value, so one backend failing never aborts a multi-LMS export.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail builds a failed result, prefixing the error with the failing operation's name
func Fail[T any](op string, err error) Result[T] {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	return Result[T]{Err: fmt.Errorf("%s: %w", op, err)}
}

// OK reports whether the result carries a value
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Error returns the failure message, or "" for a successful result
func (r Result[T]) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Get unpacks the result into Go's usual value/error pair
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Err
}
