package allowlist

import (
	"errors"
	"fmt"
)

// ErrMutationNotAllowed is wrapped by PermissionError.
var ErrMutationNotAllowed = errors.New("mutating operations are disabled, restart the server with --allow-mutate to enable them")

// Error is returned when an allowlist cannot be read or is structurally invalid.
type Error struct {
	// Path is empty for the packaged baseline.
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	source := "packaged allowlist"
	if e.Path != "" {
		source = e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", source, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", source, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PermissionError rejects a single operation call. It never stops the server.
type PermissionError struct {
	Operation string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("operation %s is mutating: %v", e.Operation, ErrMutationNotAllowed)
}

func (e *PermissionError) Unwrap() error {
	return ErrMutationNotAllowed
}
