package query

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned by At for an index outside the result set.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrCountUnsupported is returned by Count when the resource has no count endpoint.
	ErrCountUnsupported = errors.New("count not supported")
)

// ValidationError reports a malformed query. It is never sent over the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid query: " + e.Reason
	}
	return fmt.Sprintf("invalid query: %s: %s", e.Field, e.Reason)
}

// Invalid builds a *ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
