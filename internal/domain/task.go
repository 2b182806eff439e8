package domain

import (
	"fmt"
	"strings"
)

// TaskInput is what a caller hands to the agent.
type TaskInput struct {
	Task    string         `json:"task"`
	Context map[string]any `json:"context,omitempty"`
}

// Validate rejects a task that is empty or whitespace only.
func (t TaskInput) Validate() error {
	if strings.TrimSpace(t.Task) == "" {
		return fmt.Errorf("%w: task must not be empty", ErrInvalidTask)
	}
	return nil
}

type DecisionType string

const (
	DecisionUseTool  DecisionType = "use_tool"
	DecisionRespond  DecisionType = "respond"
	DecisionClarify  DecisionType = "clarify"
	DecisionEscalate DecisionType = "escalate"
)

// DecisionTypes lists every decision tag the engine may emit.
var DecisionTypes = []DecisionType{DecisionUseTool, DecisionRespond, DecisionClarify, DecisionEscalate}

func (d DecisionType) Valid() bool {
	switch d {
	case DecisionUseTool, DecisionRespond, DecisionClarify, DecisionEscalate:
		return true
	}
	return false
}

// IsTerminal reports whether the decision ends the loop.
func (d DecisionType) IsTerminal() bool {
	return d == DecisionRespond || d == DecisionClarify || d == DecisionEscalate
}

type ToolCall struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// Decision is the structured output of one reasoning turn.
type Decision struct {
	Type      DecisionType `json:"decision_type"`
	Reasoning string       `json:"reasoning"`
	Message   string       `json:"message,omitempty"`
	ToolCall  *ToolCall    `json:"tool_call,omitempty"`
}

// ToolName returns the requested tool, or "" when the decision names none.
func (d Decision) ToolName() string {
	if d.ToolCall == nil {
		return ""
	}
	return d.ToolCall.ToolName
}

type ResponseStatus string

const (
	StatusSuccess    ResponseStatus = "SUCCESS"
	StatusFailed     ResponseStatus = "FAILED"
	StatusNeedsInput ResponseStatus = "NEEDS_INPUT"
	StatusEscalated  ResponseStatus = "ESCALATED"
)

// StatusFor maps a terminal decision to the response status it produces.
func StatusFor(d DecisionType) ResponseStatus {
	switch d {
	case DecisionRespond:
		return StatusSuccess
	case DecisionClarify:
		return StatusNeedsInput
	case DecisionEscalate:
		return StatusEscalated
	}
	return StatusFailed
}

// AgentResponse is the single final answer for a task.
type AgentResponse struct {
	Status  ResponseStatus `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}
