// Package service holds error types shared by the service adapters.
package service

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means the capability's provider credential is missing.
// Health reports the capability unhealthy and invocations fail fast.
var ErrNotConfigured = errors.New("capability not configured")

// ValidationError marks a malformed or out-of-range request field. Returned
// before any job is created.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
