package registry

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyID       = errors.New("registry: tool id is required")
	ErrToolNotFound  = errors.New("registry: tool not found")
	ErrInvalidSchema = errors.New("registry: invalid schema")
	ErrInvalidInput  = errors.New("registry: invalid tool input")
	ErrNoExecutor    = errors.New("registry: tool has no executor")
)

// ExecutionError reports a failed tool execution.
type ExecutionError struct {
	ToolID string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("registry: tool %q failed: %v", e.ToolID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
