package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"taskagent/internal/domain"
	"taskagent/internal/metrics"
)

const defaultParseAttempts = 2

// Reasoner performs one reasoning turn: prompt the engine, parse its reply,
// and re-prompt a bounded number of times when the reply is malformed.
type Reasoner struct {
	engine      domain.Engine
	prompt      *PromptBuilder
	limiter     *RateLimiter
	metrics     *metrics.Collector
	logger      *slog.Logger
	maxAttempts int
}

// ReasonerConfig holds the dependencies and tuning of a Reasoner.
type ReasonerConfig struct {
	Engine      domain.Engine
	Prompt      *PromptBuilder
	Limiter     *RateLimiter // optional
	Metrics     *metrics.Collector
	Logger      *slog.Logger
	MaxAttempts int // parse attempts per turn (default 2)
}

func NewReasoner(cfg ReasonerConfig) *Reasoner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultParseAttempts
	}
	return &Reasoner{
		engine:      cfg.Engine,
		prompt:      cfg.Prompt,
		limiter:     cfg.Limiter,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Step asks the engine for the next Decision given the task and the
// observations so far. Any failure is a *domain.ReasoningFailureError.
func (r *Reasoner) Step(ctx context.Context, in domain.TaskInput, observations []domain.Observation) (domain.Decision, error) {
	messages := r.prompt.BuildMessages(in, observations)

	r.logger.Info("starting reasoning", "task", truncate(in.Task, 100), "observations", len(observations))

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return domain.Decision{}, &domain.ReasoningFailureError{Attempts: attempt, Err: fmt.Errorf("rate limit: %w", err)}
			}
		}

		start := time.Now()
		raw, err := r.engine.Complete(ctx, messages)
		if err != nil {
			r.metrics.RecordReasoning(metrics.OutcomeEngineErr)
			r.logger.Error("reasoning engine call failed", "engine", r.engine.Name(), "attempt", attempt, "err", err)
			return domain.Decision{}, &domain.ReasoningFailureError{Attempts: attempt, Err: fmt.Errorf("engine %s: %w", r.engine.Name(), err)}
		}
		r.logger.Debug("raw engine output", "attempt", attempt, "latency", time.Since(start), "output", raw)

		decision, err := ParseDecision(raw)
		if err == nil {
			r.metrics.RecordReasoning(metrics.OutcomeOK)
			r.logger.Info("decision made", "type", decision.Type, "reasoning", truncate(decision.Reasoning, 100))
			return decision, nil
		}

		r.metrics.RecordReasoning(metrics.OutcomeMalformed)
		r.logger.Warn("malformed reasoning output", "attempt", attempt, "max_attempts", r.maxAttempts, "err", err)
		lastErr = err

		var malformed *domain.MalformedOutputError
		if !errors.As(err, &malformed) {
			break
		}
		messages = append(messages,
			domain.Message{Role: domain.RoleAssistant, Content: raw},
			domain.Message{Role: domain.RoleUser, Content: fmt.Sprintf(correctionPrompt, malformed.Detail)},
		)
	}

	return domain.Decision{}, &domain.ReasoningFailureError{Attempts: r.maxAttempts, Err: lastErr}
}

// truncate trims s and cuts it to max runes for log fields.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max]) + "..."
	}
	return s
}
