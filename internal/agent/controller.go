package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"taskagent/internal/domain"
	"taskagent/internal/metrics"
)

const defaultMaxIterations = 5

// What happens when the engine picks use_tool but names no tool.
const (
	MissingToolContinue = "continue"
	MissingToolFail     = "fail"
)

const (
	msgIterationLimit   = "I was unable to complete the task within the allowed steps."
	msgReasoningFailure = "I encountered an error while processing your request."
	msgUnexpected       = "An unexpected error occurred."
	msgInvalidTask      = "The task could not be accepted."
	msgMissingTool      = "Agent decided to use a tool but didn't specify which one."
)

// Reasoning produces the next Decision for a task.
type Reasoning interface {
	Step(ctx context.Context, in domain.TaskInput, observations []domain.Observation) (domain.Decision, error)
}

// ToolDispatcher runs a named tool and never fails outright.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) domain.ToolResult
}

// Controller drives the observation loop for one task at a time. It holds no
// per-task state, so one Controller serves concurrent tasks.
type Controller struct {
	reasoner          Reasoning
	dispatcher        ToolDispatcher
	metrics           *metrics.Collector
	logger            *slog.Logger
	maxIterations     int
	missingToolPolicy string
}

// ControllerConfig holds all dependencies and tuning parameters for the loop.
type ControllerConfig struct {
	Reasoner          Reasoning
	Dispatcher        ToolDispatcher
	Metrics           *metrics.Collector
	Logger            *slog.Logger
	MaxIterations     int    // default 5
	MissingToolPolicy string // continue (default) | fail
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.MissingToolPolicy != MissingToolFail {
		cfg.MissingToolPolicy = MissingToolContinue
	}
	return &Controller{
		reasoner:          cfg.Reasoner,
		dispatcher:        cfg.Dispatcher,
		metrics:           cfg.Metrics,
		logger:            cfg.Logger,
		maxIterations:     cfg.MaxIterations,
		missingToolPolicy: cfg.MissingToolPolicy,
	}
}

func (c *Controller) MaxIterations() int { return c.maxIterations }

// ProcessTask runs the loop until a terminal decision or the iteration cap.
// It always returns a response; internal failures become StatusFailed.
func (c *Controller) ProcessTask(ctx context.Context, in domain.TaskInput) (resp domain.AgentResponse) {
	iterations := 0
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("unexpected failure processing task", "panic", r, "stack", string(debug.Stack()))
			resp = failedResponse(msgUnexpected, fmt.Errorf("panic: %v", r))
		}
		c.metrics.RecordTask(string(resp.Status), iterations)
	}()

	if err := in.Validate(); err != nil {
		c.logger.Warn("rejected task", "err", err)
		return failedResponse(msgInvalidTask, err)
	}

	observations := make([]domain.Observation, 0, c.maxIterations)

	for iterations < c.maxIterations {
		c.logger.Info("agent iteration", "iteration", iterations+1, "max", c.maxIterations)

		if err := ctx.Err(); err != nil {
			return c.failure(&domain.ReasoningFailureError{Err: err})
		}

		decision, err := c.reasoner.Step(ctx, in, observations)
		if err != nil {
			return c.failure(err)
		}

		if decision.Type.IsTerminal() {
			return finalize(decision, observations)
		}
		if decision.Type != domain.DecisionUseTool {
			return c.failure(fmt.Errorf("unsupported decision type %q", decision.Type))
		}

		name := decision.ToolName()
		if name == "" {
			obs := domain.NewObservation("unknown", domain.Fail(msgMissingTool))
			observations = append(observations, obs)
			iterations++
			c.logger.Warn("use_tool decision without a tool name", "policy", c.missingToolPolicy)
			if c.missingToolPolicy == MissingToolFail {
				out := failedResponse(msgUnexpected, errors.New(msgMissingTool))
				out.Data["observations"] = observationList(observations)
				return out
			}
			continue
		}

		result := c.dispatcher.Dispatch(ctx, name, decision.ToolCall.Arguments)
		observations = append(observations, domain.NewObservation(name, result))
		iterations++
	}

	c.logger.Warn("max iterations reached", "max", c.maxIterations)
	return domain.AgentResponse{
		Status:  domain.StatusFailed,
		Message: msgIterationLimit,
		Data: map[string]any{
			"iterations":   iterations,
			"observations": observationList(observations),
		},
	}
}

func (c *Controller) failure(err error) domain.AgentResponse {
	if errors.Is(err, domain.ErrReasoningFailure) {
		c.logger.Error("agent reasoning failed", "err", err)
		return failedResponse(msgReasoningFailure, err)
	}
	c.logger.Error("unexpected error processing task", "err", err)
	return failedResponse(msgUnexpected, err)
}

func failedResponse(message string, err error) domain.AgentResponse {
	return domain.AgentResponse{
		Status:  domain.StatusFailed,
		Message: message,
		Data:    map[string]any{"error": err.Error()},
	}
}

func finalize(d domain.Decision, observations []domain.Observation) domain.AgentResponse {
	data := map[string]any{"reasoning": d.Reasoning}
	if len(observations) > 0 {
		calls := make([]map[string]any, 0, len(observations))
		for _, obs := range observations {
			calls = append(calls, map[string]any{
				"tool":    obs.ToolName,
				"success": obs.Success,
				"result":  obs.Result,
				"error":   nullable(obs.Error),
			})
		}
		data["tool_calls"] = calls
	}
	return domain.AgentResponse{
		Status:  domain.StatusFor(d.Type),
		Message: d.Message,
		Data:    data,
	}
}

func observationList(observations []domain.Observation) []map[string]any {
	out := make([]map[string]any, 0, len(observations))
	for _, obs := range observations {
		out = append(out, map[string]any{
			"tool_name": obs.ToolName,
			"success":   obs.Success,
			"result":    obs.Result,
			"error":     nullable(obs.Error),
		})
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
