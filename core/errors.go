package core

import (
	"errors"
	"fmt"
)

// The runtime surfaces three error kinds to callers. A transport layer maps
// them to status codes (NotFound -> 404, InvalidRequest -> 400, Store -> 500).
// None of them is retried internally; retry policy belongs to the transport.

// NotFoundError indicates that no configuration exists for an agent identity.
type NotFoundError struct {
	AgentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("agent %s not found", e.AgentID)
}

// NewNotFoundError creates a NotFoundError for the given agent identity.
func NewNotFoundError(agentID string) *NotFoundError {
	return &NotFoundError{AgentID: agentID}
}

// StoreError wraps a backing-store failure (config, skill data or memory
// persistence). The underlying cause is preserved for errors.Is/As chains.
type StoreError struct {
	Op  string // Failing operation, e.g. "get config"
	Err error  // Underlying cause
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err as a StoreError for the named operation.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// InvalidRequestError indicates the caller violated a precondition before any
// work was performed.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// NewInvalidRequestError creates an InvalidRequestError with the given reason.
func NewInvalidRequestError(reason string) *InvalidRequestError {
	return &InvalidRequestError{Reason: reason}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsStoreError reports whether err is (or wraps) a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// IsInvalidRequest reports whether err is (or wraps) an InvalidRequestError.
func IsInvalidRequest(err error) bool {
	var ir *InvalidRequestError
	return errors.As(err, &ir)
}
