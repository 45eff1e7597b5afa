// Package persistence provides standardized error types for snapshot
// storage operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrContextNotFound indicates no usable snapshot exists for the
	// given workflow id. Corrupt snapshots are reported the same way so
	// callers can treat both as "absent".
	ErrContextNotFound = errors.New("workflow context not found")

	// ErrInvalidWorkflowID indicates a workflow id unsafe for storage
	// operations.
	ErrInvalidWorkflowID = errors.New("invalid workflow id")
)

// ContextError wraps snapshot storage errors with operation context.
type ContextError struct {
	Op         string // Operation being performed (e.g., "Save", "Load")
	WorkflowID string
	Err        error
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *ContextError) Unwrap() error {
	return e.Err
}

func (e *ContextError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewContextError creates a storage error with operation context.
func NewContextError(op, workflowID string, err error) *ContextError {
	return &ContextError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsContextNotFound checks whether an error indicates an absent snapshot.
func IsContextNotFound(err error) bool {
	return errors.Is(err, ErrContextNotFound)
}
