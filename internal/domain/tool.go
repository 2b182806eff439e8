package domain

import (
	"context"
	"fmt"
)

// Tool is a named operation the agent may invoke. Implementations validate
// their own arguments and report bad input as a failed ToolResult.
type Tool interface {
	Name() string
	Description() string
	HasSideEffects() bool
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

type ToolMetadata struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	HasSideEffects bool           `json:"has_side_effects"`
	Parameters     map[string]any `json:"parameters,omitempty"`
}

// MetadataOf snapshots the descriptive fields of t.
func MetadataOf(t Tool) ToolMetadata {
	return ToolMetadata{
		Name:           t.Name(),
		Description:    t.Description(),
		HasSideEffects: t.HasSideEffects(),
		Parameters:     t.Parameters(),
	}
}

// ToolResult is the uniform outcome of a tool call. Data is only set on success.
type ToolResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func OK(data map[string]any) ToolResult {
	if data == nil {
		data = map[string]any{}
	}
	return ToolResult{Success: true, Data: data}
}

func Fail(format string, args ...any) ToolResult {
	return ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Observation records one completed dispatch for the next reasoning turn.
type Observation struct {
	ToolName string         `json:"tool_name"`
	Success  bool           `json:"success"`
	Result   map[string]any `json:"result"`
	Error    string         `json:"error,omitempty"`
}

func NewObservation(toolName string, r ToolResult) Observation {
	obs := Observation{ToolName: toolName, Success: r.Success, Error: r.Error}
	if r.Success {
		obs.Result = r.Data
	}
	return obs
}
