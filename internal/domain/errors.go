package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTask      = errors.New("invalid task")
	ErrUnknownTool      = errors.New("unknown tool")
	ErrToolExecution    = errors.New("tool execution failed")
	ErrMalformedOutput  = errors.New("malformed reasoning output")
	ErrReasoningFailure = errors.New("reasoning failure")
	ErrNotFound         = errors.New("not found")
)

// UnknownToolError is returned when a name is not in the registry.
type UnknownToolError struct {
	Name      string
	Available []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("Unknown tool: %s. Available: [%s]", e.Name, strings.Join(e.Available, ", "))
}

func (e *UnknownToolError) Unwrap() error { return ErrUnknownTool }

// ToolExecutionError wraps an error or panic raised inside a tool.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("Tool execution failed: %v", e.Err)
}

func (e *ToolExecutionError) Is(target error) bool { return target == ErrToolExecution }

func (e *ToolExecutionError) Unwrap() error { return e.Err }

const (
	ReasonInvalidData = "invalid structured data"
	ReasonSchema      = "schema validation"
)

// MalformedOutputError describes engine text that could not become a Decision.
type MalformedOutputError struct {
	Reason string // ReasonInvalidData | ReasonSchema
	Detail string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed reasoning output (%s): %s", e.Reason, e.Detail)
}

func (e *MalformedOutputError) Unwrap() error { return ErrMalformedOutput }

// ReasoningFailureError means no usable Decision could be obtained for a turn.
type ReasoningFailureError struct {
	Attempts int
	Err      error
}

func (e *ReasoningFailureError) Error() string {
	return fmt.Sprintf("reasoning failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ReasoningFailureError) Is(target error) bool { return target == ErrReasoningFailure }

func (e *ReasoningFailureError) Unwrap() error { return e.Err }
