package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskagent/internal/domain"
)

// Failover tries multiple engines in order, falling back to the next one
// when the current fails.
type Failover struct {
	engines []domain.Engine
	logger  *slog.Logger
}

// NewFailover creates a failover chain from the given engines.
// At least one engine is required.
func NewFailover(engines []domain.Engine, logger *slog.Logger) *Failover {
	return &Failover{
		engines: engines,
		logger:  logger,
	}
}

func (f *Failover) Name() string {
	names := make([]string, len(f.engines))
	for i, e := range f.engines {
		names[i] = e.Name()
	}
	return "failover(" + strings.Join(names, "→") + ")"
}

// Model reports the primary engine's model.
func (f *Failover) Model() string {
	if len(f.engines) > 0 {
		return f.engines[0].Model()
	}
	return ""
}

func (f *Failover) Healthy(ctx context.Context) error {
	for _, e := range f.engines {
		if err := e.Healthy(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no healthy engine in failover chain")
}

// Complete tries each engine in order and returns the first successful reply.
func (f *Failover) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	if len(f.engines) == 0 {
		return "", errors.New("failover chain is empty")
	}
	var lastErr error
	for i, e := range f.engines {
		out, err := e.Complete(ctx, messages)
		if err == nil {
			if i > 0 {
				f.logger.Info("failover: used fallback engine",
					"provider", e.Name(),
					"attempt", i+1,
				)
			}
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		f.logger.Warn("failover: engine failed, trying next",
			"provider", e.Name(),
			"attempt", i+1,
			"error", err,
		)
	}
	return "", fmt.Errorf("all engines in failover chain failed: %w", lastErr)
}
