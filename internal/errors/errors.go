// Package errors provides custom error types and exit codes for dirkv.
package errors

import (
	"errors"
	"fmt"
)

// KVError describes a failed file-I/O step of a store operation.
// Every KVError matches ErrIO under errors.Is; the collaborator's own
// error stays reachable through Unwrap. Store operations fail with a
// KVError, a context error, or ErrInvalidKey, which is the one store
// failure that does not match ErrIO.
type KVError struct {
	Op   string // Operation being performed (e.g., "set", "list keys")
	Key  string // Logical key involved, if any
	Path string // Filesystem path involved
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *KVError) Error() string {
	op := e.Op
	if e.Key != "" {
		op = fmt.Sprintf("%s %q", e.Op, e.Key)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *KVError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrIO.
func (e *KVError) Is(target error) bool {
	return target == ErrIO
}

// Predefined errors for common scenarios.
var (
	ErrIO            = fmt.Errorf("i/o failure")
	ErrInvalidConfig = fmt.Errorf("invalid store configuration")
	ErrNotFound      = fmt.Errorf("key not found")
	// ErrInvalidKey is returned before any I/O for keys whose entry path
	// is the base folder itself ("" and "."). It does not match ErrIO.
	ErrInvalidKey = fmt.Errorf("key resolves to the base folder")
)

// Exit codes - use these constants in CLI commands instead of hardcoding values.
const (
	ExitSuccess      = 0 // Success
	ExitGeneralError = 1 // General error (file I/O, permissions)
	ExitConfigError  = 2 // Configuration error (invalid config, missing values)
	ExitNotFound     = 3 // Requested key does not exist
)

// IsError checks if the given error matches the target error using errors.Is.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
