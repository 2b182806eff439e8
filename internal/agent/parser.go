package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"taskagent/internal/domain"
)

// rawDecision mirrors the wire shape before validation. Fields stay raw so
// that type mismatches are reported as schema errors rather than decode errors.
type rawDecision struct {
	DecisionType json.RawMessage `json:"decision_type"`
	Reasoning    json.RawMessage `json:"reasoning"`
	Message      json.RawMessage `json:"message"`
	ToolCall     json.RawMessage `json:"tool_call"`
}

type rawToolCall struct {
	ToolName  json.RawMessage `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ParseDecision turns raw engine text into a validated Decision. It is pure:
// the same input always yields the same Decision or the same error.
func ParseDecision(raw string) (domain.Decision, error) {
	cleaned := stripCodeFence(raw)

	var rec rawDecision
	if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return domain.Decision{}, schemaError("top-level value must be an object, got %s", typeErr.Value)
		}
		return domain.Decision{}, &domain.MalformedOutputError{Reason: domain.ReasonInvalidData, Detail: err.Error()}
	}

	var d domain.Decision

	tag, ok, err := optionalString(rec.DecisionType)
	if err != nil || !ok {
		return domain.Decision{}, schemaError("decision_type is required and must be a string")
	}
	d.Type = domain.DecisionType(tag)
	if !d.Type.Valid() {
		return domain.Decision{}, schemaError("decision_type %q is not one of %v", tag, domain.DecisionTypes)
	}

	if d.Reasoning, _, err = optionalString(rec.Reasoning); err != nil {
		return domain.Decision{}, schemaError("reasoning must be a string")
	}
	if d.Message, _, err = optionalString(rec.Message); err != nil {
		return domain.Decision{}, schemaError("message must be a string")
	}

	// An absent tool_call is left for the Controller, which records it as a
	// failed observation.
	if d.Type == domain.DecisionUseTool && !isNull(rec.ToolCall) {
		tc, err := parseToolCall(rec.ToolCall)
		if err != nil {
			return domain.Decision{}, err
		}
		d.ToolCall = tc
	}

	return d, nil
}

func parseToolCall(raw json.RawMessage) (*domain.ToolCall, error) {
	var rec rawToolCall
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, schemaError("tool_call must be an object")
	}
	name, ok, err := optionalString(rec.ToolName)
	if err != nil || !ok || name == "" {
		return nil, schemaError("tool_call.tool_name is required and must be a non-empty string")
	}

	args := map[string]any{}
	if !isNull(rec.Arguments) {
		if err := json.Unmarshal(rec.Arguments, &args); err != nil {
			return nil, schemaError("tool_call.arguments must be an object")
		}
	}
	return &domain.ToolCall{ToolName: name, Arguments: args}, nil
}

// stripCodeFence trims s and, when it opens with a ``` fence, drops the
// first and last lines.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return ""
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}

// optionalString decodes a JSON string. Absent or null yields ("", false, nil).
func optionalString(raw json.RawMessage) (string, bool, error) {
	if isNull(raw) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, err
	}
	return s, true, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func schemaError(format string, args ...any) error {
	return &domain.MalformedOutputError{Reason: domain.ReasonSchema, Detail: fmt.Sprintf(format, args...)}
}
