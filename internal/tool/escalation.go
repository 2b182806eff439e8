package tool

import (
	"context"
	"fmt"
	"time"

	"taskagent/internal/domain"
)

var escalationPriorities = []string{"low", "normal", "high", "urgent"}

type EscalationWriter interface {
	CreateEscalation(ctx context.Context, esc domain.Escalation) error
}

// EscalateToHumanTool opens a review ticket for a human operator.
type EscalateToHumanTool struct {
	escalations EscalationWriter
}

func NewEscalateToHumanTool(escalations EscalationWriter) *EscalateToHumanTool {
	return &EscalateToHumanTool{escalations: escalations}
}

func (t *EscalateToHumanTool) Name() string { return "escalate_to_human" }
func (t *EscalateToHumanTool) Description() string {
	return "Escalate the current task to a human operator when the agent cannot proceed"
}
func (t *EscalateToHumanTool) HasSideEffects() bool { return true }
func (t *EscalateToHumanTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{
		"reason":   {Type: "string", Description: "Reason for escalation (at least 10 characters)"},
		"priority": {Type: "string", Description: "Escalation priority", Enum: escalationPriorities, Default: "normal"},
		"context":  {Type: "string", Description: "Additional context for the human operator"},
	}, []string{"reason"})
}

func (t *EscalateToHumanTool) Execute(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	in := readArgs(args)
	reason := in.requiredString("reason")
	in.length("reason", reason, 10, 0)
	priority := in.optionalString("priority", "normal")
	in.oneOf("priority", priority, escalationPriorities)
	extra := in.optionalString("context", "")
	if err := in.err(); err != nil {
		return domain.Fail("Invalid input: %v", err), nil
	}

	esc := domain.Escalation{
		ID:        newID("ESC"),
		Reason:    reason,
		Priority:  priority,
		Context:   extra,
		Status:    "pending_review",
		CreatedAt: time.Now().UTC(),
	}
	if err := t.escalations.CreateEscalation(ctx, esc); err != nil {
		return domain.ToolResult{}, fmt.Errorf("store escalation: %w", err)
	}

	return domain.OK(map[string]any{
		"escalation_id": esc.ID,
		"reason":        esc.Reason,
		"priority":      esc.Priority,
		"status":        esc.Status,
		"message":       "Task has been escalated to a human operator",
	}), nil
}
