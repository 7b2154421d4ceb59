package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is returned when a mailbox query matches nothing.
	ErrNoData = errors.New("no data found")
	// ErrNoEvents is returned when a calendar query matches nothing.
	ErrNoEvents = errors.New("no events found")
	// ErrBudgetExhausted is returned when a run hits its iteration or time budget.
	ErrBudgetExhausted = errors.New("run budget exhausted")
	// ErrThreadRequired is returned when a conversation has no thread id.
	ErrThreadRequired = errors.New("thread_id is required")
	// ErrContentRequired is returned when a user request is empty.
	ErrContentRequired = errors.New("content is required")
	// ErrRunNotFound is returned when no run has the given id.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunNotActive is returned when cancelling a run that is not in flight.
	ErrRunNotActive = errors.New("run is not active")
)

// ValidationError reports tool arguments that do not satisfy the tool's schema.
type ValidationError struct {
	Tool   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

// GatewayError wraps a remote provider failure.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ExecutionError reports a tool whose execution failed after validation.
type ExecutionError struct {
	Tool    string
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
