package agent

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"taskagent/internal/domain"
	"taskagent/internal/tool"
)

// scriptedEngine replays canned replies and records every prompt it receives.
type scriptedEngine struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]domain.Message
}

func (e *scriptedEngine) Name() string                  { return "scripted" }
func (e *scriptedEngine) Model() string                 { return "scripted-1" }
func (e *scriptedEngine) Healthy(context.Context) error { return nil }
func (e *scriptedEngine) Complete(_ context.Context, msgs []domain.Message) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]domain.Message, len(msgs))
	copy(cp, msgs)
	e.calls = append(e.calls, cp)
	if e.err != nil {
		return "", e.err
	}
	if len(e.replies) == 0 {
		return "", errors.New("script exhausted")
	}
	r := e.replies[0]
	e.replies = e.replies[1:]
	return r, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// catalogStub serves the default product catalog.
type catalogStub struct{}

func (catalogStub) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	for _, p := range tool.DefaultProducts {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func testRegistry() *tool.Registry {
	reg := tool.NewRegistry(testLogger())
	reg.Register(tool.NewGetPricingTool(catalogStub{}))
	return reg
}

func newTestReasoner(engine domain.Engine, attempts int) *Reasoner {
	return NewReasoner(ReasonerConfig{
		Engine:      engine,
		Prompt:      NewPromptBuilder(testRegistry(), PromptConfig{}),
		Logger:      testLogger(),
		MaxAttempts: attempts,
	})
}

var task = domain.TaskInput{Task: "What does PROD-001 cost?"}

func TestReasoner_ValidFirstReply(t *testing.T) {
	eng := &scriptedEngine{replies: []string{`{"decision_type":"respond","reasoning":"r","message":"ok"}`}}
	d, err := newTestReasoner(eng, 2).Step(context.Background(), task, nil)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if d.Type != domain.DecisionRespond || d.Message != "ok" {
		t.Fatalf("unexpected decision %+v", d)
	}
	if len(eng.calls) != 1 {
		t.Fatalf("expected 1 engine call, got %d", len(eng.calls))
	}
	msgs := eng.calls[0]
	if len(msgs) != 2 || msgs[0].Role != domain.RoleSystem || msgs[1].Role != domain.RoleUser {
		t.Fatalf("unexpected prompt shape: %+v", msgs)
	}
	if !strings.Contains(msgs[1].Content, "Task: What does PROD-001 cost?") {
		t.Fatalf("task missing from user turn: %q", msgs[1].Content)
	}
}

func TestReasoner_RetriesMalformedOnce(t *testing.T) {
	eng := &scriptedEngine{replies: []string{
		"I think I should respond",
		`{"decision_type":"respond","message":"fixed"}`,
	}}
	d, err := newTestReasoner(eng, 2).Step(context.Background(), task, nil)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if d.Message != "fixed" {
		t.Fatalf("unexpected decision %+v", d)
	}
	if len(eng.calls) != 2 {
		t.Fatalf("expected 2 engine calls, got %d", len(eng.calls))
	}
	retry := eng.calls[1]
	if len(retry) != 4 {
		t.Fatalf("expected corrective turns appended, got %d messages", len(retry))
	}
	if retry[2].Role != domain.RoleAssistant || retry[2].Content != "I think I should respond" {
		t.Fatalf("raw reply not echoed back: %+v", retry[2])
	}
	if retry[3].Role != domain.RoleUser || !strings.Contains(retry[3].Content, "valid JSON only") {
		t.Fatalf("corrective turn missing: %+v", retry[3])
	}
}

func TestReasoner_ExhaustsRetryBudget(t *testing.T) {
	eng := &scriptedEngine{replies: []string{"nope", "still nope", "never reached"}}
	_, err := newTestReasoner(eng, 2).Step(context.Background(), task, nil)
	if !errors.Is(err, domain.ErrReasoningFailure) {
		t.Fatalf("expected reasoning failure, got %v", err)
	}
	if !errors.Is(err, domain.ErrMalformedOutput) {
		t.Fatalf("expected last parse error to be wrapped, got %v", err)
	}
	var rf *domain.ReasoningFailureError
	if !errors.As(err, &rf) || rf.Attempts != 2 {
		t.Fatalf("expected 2 attempts recorded, got %+v", rf)
	}
	if len(eng.calls) != 2 {
		t.Fatalf("expected exactly 2 engine calls, got %d", len(eng.calls))
	}
}

func TestReasoner_EngineErrorIsNotRetried(t *testing.T) {
	eng := &scriptedEngine{err: errors.New("503 upstream")}
	_, err := newTestReasoner(eng, 3).Step(context.Background(), task, nil)
	if !errors.Is(err, domain.ErrReasoningFailure) {
		t.Fatalf("expected reasoning failure, got %v", err)
	}
	if len(eng.calls) != 1 {
		t.Fatalf("expected a single engine call, got %d", len(eng.calls))
	}
}

func TestReasoner_ObservationsBecomeTurns(t *testing.T) {
	eng := &scriptedEngine{replies: []string{`{"decision_type":"respond","message":"29.99"}`}}
	obs := []domain.Observation{
		domain.NewObservation("get_pricing", domain.OK(map[string]any{"price": 29.99})),
		domain.NewObservation("create_order", domain.Fail("Invalid input: quantity")),
	}
	if _, err := newTestReasoner(eng, 2).Step(context.Background(), task, obs); err != nil {
		t.Fatalf("step: %v", err)
	}
	msgs := eng.calls[0]
	if len(msgs) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(msgs))
	}
	if msgs[2].Role != domain.RoleAssistant || !strings.Contains(msgs[2].Content, `"tool_name":"get_pricing"`) {
		t.Fatalf("unexpected action record: %+v", msgs[2])
	}
	if !strings.Contains(msgs[3].Content, "executed successfully") || !strings.Contains(msgs[3].Content, "What would you like to do next?") {
		t.Fatalf("unexpected success observation: %q", msgs[3].Content)
	}
	if !strings.Contains(msgs[5].Content, "failed") || !strings.Contains(msgs[5].Content, "Error: Invalid input: quantity") {
		t.Fatalf("unexpected failure observation: %q", msgs[5].Content)
	}
}

func TestReasoner_DefaultAttempts(t *testing.T) {
	r := NewReasoner(ReasonerConfig{Engine: &scriptedEngine{}, Prompt: NewPromptBuilder(testRegistry(), PromptConfig{}), Logger: testLogger()})
	if r.maxAttempts != 2 {
		t.Fatalf("expected default of 2 attempts, got %d", r.maxAttempts)
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	got := truncate("  Giá sản phẩm là bao nhiêu?  ", 6)
	if got != "Giá sả..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if !utf8.ValidString(truncate(strings.Repeat("é", 150), 100)) {
		t.Fatal("truncate produced invalid UTF-8")
	}
	if got := truncate(" short ", 100); got != "short" {
		t.Fatalf("expected trimmed input, got %q", got)
	}
}
