package grid

import "errors"

// Grid error types. Every client call that fails reports one of these,
// possibly wrapped with call context.
var (
	ErrNotFound         = errors.New("path not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConnection       = errors.New("grid connection error")
	ErrConflict         = errors.New("conflicting state at path")
)
