package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"taskagent/internal/domain"
)

// ToolLister supplies the capability listing for the system prompt.
type ToolLister interface {
	ListMetadata() []domain.ToolMetadata
}

// PromptBuilder renders the role-tagged turns sent to the reasoning engine.
type PromptBuilder struct {
	tools             ToolLister
	systemPromptExtra string
}

// PromptConfig holds configuration for the prompt builder.
type PromptConfig struct {
	SystemPromptExtra string
}

func NewPromptBuilder(tools ToolLister, cfg PromptConfig) *PromptBuilder {
	return &PromptBuilder{tools: tools, systemPromptExtra: cfg.SystemPromptExtra}
}

const nextStepQuestion = "What would you like to do next?"

const correctionPrompt = "Your previous reply could not be used: %s\n\n" +
	"Respond again with valid JSON only, matching the required output format exactly. " +
	"Do not include any text outside the JSON object."

// BuildSystemPrompt lists exactly the registered tools, in registration order,
// and the decision protocol.
func (p *PromptBuilder) BuildSystemPrompt() string {
	metas := p.tools.ListMetadata()

	var b strings.Builder
	b.WriteString(`You are an autonomous task agent. Your job is to analyze tasks and make structured decisions.

## Your Capabilities
You can make ONE of these decisions:
`)
	if len(metas) > 0 {
		b.WriteString("- **use_tool**: Call an external tool to get information or perform an action\n")
	}
	b.WriteString(`- **respond**: Provide a direct response (you have enough information)
- **clarify**: Ask for more information from the user
- **escalate**: The task requires human intervention

## Available Tools
`)
	if len(metas) == 0 {
		b.WriteString("No tools are currently available.\n")
	}
	for _, m := range metas {
		b.WriteString(formatTool(m))
	}

	decisions := `"respond" | "clarify" | "escalate"`
	if len(metas) > 0 {
		decisions = `"use_tool" | ` + decisions
	}
	fmt.Fprintf(&b, `
## Output Format
You MUST respond with valid JSON matching this exact structure:

{
  "decision_type": %s,
  "reasoning": "Your internal reasoning about why you made this decision",
  "message": "The message to return to the user (optional for use_tool)",
  "tool_call": {"tool_name": "...", "arguments": {...}}
}

Include "tool_call" only for use_tool.
`, decisions)

	if len(metas) > 0 {
		fmt.Fprintf(&b, `
For tool calls, include the tool_call object:
{
  "decision_type": "use_tool",
  "reasoning": "I need to look up the product price",
  "tool_call": {"tool_name": %q, "arguments": {}}
}
`, metas[0].Name)
	}

	b.WriteString(`
## Rules
1. ALWAYS output valid JSON - no markdown, no explanation outside the JSON
2. The "reasoning" field is for your internal thought process
3. The "message" field is what the user will see
4. For "use_tool", include "tool_call" with the tool name and arguments
5. Only use tools that are listed in Available Tools
6. Be concise and actionable
7. If you cannot help, escalate - do not make up information

## Examples

Task: "What is 2 + 2?"
{"decision_type": "respond", "reasoning": "This is a simple arithmetic question I can answer directly.", "message": "2 + 2 equals 4."}

Task: "Process the order"
{"decision_type": "clarify", "reasoning": "The user hasn't specified which order or what processing is needed.", "message": "Could you please specify which order you'd like me to process and what action to take?"}
`)

	if p.systemPromptExtra != "" {
		b.WriteString("\n## Custom Instructions\n")
		b.WriteString(p.systemPromptExtra)
		b.WriteByte('\n')
	}
	return b.String()
}

func formatTool(m domain.ToolMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- **%s**: %s", m.Name, m.Description)
	if m.HasSideEffects {
		b.WriteString(" (has side effects)")
	}
	b.WriteByte('\n')
	if args := formatArguments(m.Parameters); args != "" {
		b.WriteString("  arguments: ")
		b.WriteString(args)
		b.WriteByte('\n')
	}
	return b.String()
}

// formatArguments renders a JSON Schema properties object as
// "name (type, required), ..." sorted by name.
func formatArguments(schema map[string]any) string {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return ""
	}
	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []string:
		for _, r := range req {
			required[r] = true
		}
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for n := range props {
		names = append(names, n)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, n := range names {
		prop, _ := props[n].(map[string]any)
		typ, _ := prop["type"].(string)
		desc := typ
		if enum, ok := prop["enum"].([]string); ok && len(enum) > 0 {
			desc += " one of " + strings.Join(enum, "|")
		}
		if required[n] {
			desc += ", required"
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", n, desc))
	}
	return strings.Join(parts, ", ")
}

// FormatTask renders the opening user turn.
func FormatTask(in domain.TaskInput) string {
	msg := "Task: " + in.Task
	if len(in.Context) > 0 {
		ctx, err := json.MarshalIndent(in.Context, "", "  ")
		if err != nil {
			ctx = []byte(fmt.Sprintf("%v", in.Context))
		}
		msg += "\n\nContext:\n" + string(ctx)
	}
	return msg
}

// FormatObservation renders a tool outcome as the user turn that follows it.
func FormatObservation(obs domain.Observation) string {
	if obs.Success {
		result, err := json.MarshalIndent(obs.Result, "", "  ")
		if err != nil {
			result = []byte(fmt.Sprintf("%v", obs.Result))
		}
		return fmt.Sprintf("Tool '%s' executed successfully.\n\nResult:\n%s\n\n%s", obs.ToolName, result, nextStepQuestion)
	}
	return fmt.Sprintf("Tool '%s' failed.\n\nError: %s\n\n%s", obs.ToolName, obs.Error, nextStepQuestion)
}

// actionRecord is the assistant turn that stands in for the decision which
// produced obs.
func actionRecord(obs domain.Observation) string {
	rec := domain.Decision{
		Type:      domain.DecisionUseTool,
		Reasoning: "Calling " + obs.ToolName,
		ToolCall:  &domain.ToolCall{ToolName: obs.ToolName, Arguments: map[string]any{}},
	}
	b, _ := json.Marshal(rec)
	return string(b)
}

// BuildMessages assembles the full conversation for one reasoning call.
func (p *PromptBuilder) BuildMessages(in domain.TaskInput, observations []domain.Observation) []domain.Message {
	msgs := make([]domain.Message, 0, 2+2*len(observations))
	msgs = append(msgs,
		domain.Message{Role: domain.RoleSystem, Content: p.BuildSystemPrompt()},
		domain.Message{Role: domain.RoleUser, Content: FormatTask(in)},
	)
	for _, obs := range observations {
		msgs = append(msgs,
			domain.Message{Role: domain.RoleAssistant, Content: actionRecord(obs)},
			domain.Message{Role: domain.RoleUser, Content: FormatObservation(obs)},
		)
	}
	return msgs
}
