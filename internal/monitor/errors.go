package monitor

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a target, token, or alert config does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInactive is returned when a heartbeat arrives for a deactivated target.
	ErrInactive = errors.New("target is inactive")

	// ErrDuplicateName is returned when an active target of the same kind
	// already uses the requested name.
	ErrDuplicateName = errors.New("duplicate target name")

	// ErrUnavailable is returned when the module runs without a store.
	ErrUnavailable = errors.New("monitor store not available")
)

// ValidationError reports invalid user input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
