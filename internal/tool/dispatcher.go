package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taskagent/internal/domain"
	"taskagent/internal/metrics"
)

// Dispatcher resolves tool names and folds every outcome into a ToolResult.
type Dispatcher struct {
	registry *Registry
	metrics  *metrics.Collector
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, m *metrics.Collector, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, metrics: m, logger: logger}
}

// Dispatch never returns an error and never panics. Failures come back as
// ToolResult{Success: false}. There is no retry.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) domain.ToolResult {
	d.logger.Info("dispatching tool", "tool", name)
	d.logger.Debug("tool arguments", "tool", name, "args", args)

	t, err := d.registry.ResolveOrFail(name)
	if err != nil {
		d.logger.Error("tool error", "tool", name, "err", err)
		d.metrics.RecordDispatch(name, false, 0)
		return domain.Fail("%s", err.Error())
	}

	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	result, err := d.execute(ctx, t, args)
	elapsed := time.Since(start)

	if err != nil {
		var execErr *domain.ToolExecutionError
		if !errors.As(err, &execErr) {
			execErr = &domain.ToolExecutionError{Tool: name, Err: err}
		}
		d.logger.Error("tool execution failed", "tool", name, "err", execErr.Err)
		result = domain.Fail("%s", execErr.Error())
	}

	d.metrics.RecordDispatch(name, result.Success, elapsed)
	d.logger.Info("tool completed", "tool", name, "success", result.Success, "duration", elapsed)
	return result
}

func (d *Dispatcher) execute(ctx context.Context, t domain.Tool, args map[string]any) (result domain.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.ToolExecutionError{Tool: t.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	result, err = t.Execute(ctx, args)
	if err == nil && !result.Success {
		result.Data = nil
	}
	return result, err
}
