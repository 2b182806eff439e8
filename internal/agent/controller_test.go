package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"taskagent/internal/domain"
	"taskagent/internal/tool"
)

// stubReasoner returns scripted decisions and records the observations it saw.
type stubReasoner struct {
	mu        sync.Mutex
	decisions []domain.Decision
	err       error
	repeat    *domain.Decision
	seen      [][]domain.Observation
	panics    bool
}

func (s *stubReasoner) Step(_ context.Context, _ domain.TaskInput, obs []domain.Observation) (domain.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]domain.Observation, len(obs))
	copy(cp, obs)
	s.seen = append(s.seen, cp)
	if s.panics {
		panic("reasoner exploded")
	}
	if s.err != nil {
		return domain.Decision{}, s.err
	}
	if s.repeat != nil {
		return *s.repeat, nil
	}
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

// countingDispatcher wraps a real dispatcher and counts calls.
type countingDispatcher struct {
	inner *tool.Dispatcher
	mu    sync.Mutex
	calls int
}

func (c *countingDispatcher) Dispatch(ctx context.Context, name string, args map[string]any) domain.ToolResult {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Dispatch(ctx, name, args)
}

func newTestController(r Reasoning, opts ...func(*ControllerConfig)) (*Controller, *countingDispatcher) {
	d := &countingDispatcher{inner: tool.NewDispatcher(testRegistry(), nil, testLogger())}
	cfg := ControllerConfig{Reasoner: r, Dispatcher: d, Logger: testLogger()}
	for _, o := range opts {
		o(&cfg)
	}
	return NewController(cfg), d
}

func useTool(name string, args map[string]any) domain.Decision {
	return domain.Decision{Type: domain.DecisionUseTool, Reasoning: "need data", ToolCall: &domain.ToolCall{ToolName: name, Arguments: args}}
}

func TestProcessTask_RespondFirstTurn(t *testing.T) {
	r := &stubReasoner{decisions: []domain.Decision{{Type: domain.DecisionRespond, Reasoning: "direct", Message: "ok"}}}
	c, d := newTestController(r)

	resp := c.ProcessTask(context.Background(), task)
	if resp.Status != domain.StatusSuccess || resp.Message != "ok" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(r.seen) != 1 {
		t.Fatalf("expected one reasoning call, got %d", len(r.seen))
	}
	if _, ok := resp.Data["tool_calls"]; ok {
		t.Fatal("tool_calls must be absent without observations")
	}
	if resp.Data["reasoning"] != "direct" {
		t.Fatalf("expected reasoning in data, got %v", resp.Data)
	}
	if d.calls != 0 {
		t.Fatal("dispatcher must not be called")
	}
}

func TestProcessTask_TerminalStatusMapping(t *testing.T) {
	cases := map[domain.DecisionType]domain.ResponseStatus{
		domain.DecisionRespond:  domain.StatusSuccess,
		domain.DecisionClarify:  domain.StatusNeedsInput,
		domain.DecisionEscalate: domain.StatusEscalated,
	}
	for dt, want := range cases {
		r := &stubReasoner{decisions: []domain.Decision{{Type: dt}}}
		c, _ := newTestController(r)
		resp := c.ProcessTask(context.Background(), task)
		if resp.Status != want {
			t.Fatalf("%s: expected %s, got %s", dt, want, resp.Status)
		}
		if resp.Message != "" {
			t.Fatalf("%s: expected empty message, got %q", dt, resp.Message)
		}
	}
}

func TestProcessTask_PricingThenRespond(t *testing.T) {
	r := &stubReasoner{decisions: []domain.Decision{
		useTool("get_pricing", map[string]any{"product_id": "PROD-001"}),
		{Type: domain.DecisionRespond, Reasoning: "have price", Message: "PROD-001 costs 29.99 USD"},
	}}
	c, d := newTestController(r)

	resp := c.ProcessTask(context.Background(), task)
	if resp.Status != domain.StatusSuccess {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(r.seen) != 2 {
		t.Fatalf("expected 2 reasoning calls, got %d", len(r.seen))
	}
	if len(r.seen[0]) != 0 {
		t.Fatalf("first call must see no observations, got %d", len(r.seen[0]))
	}
	second := r.seen[1]
	if len(second) != 1 || second[0].ToolName != "get_pricing" || !second[0].Success {
		t.Fatalf("second call must see one successful pricing observation, got %+v", second)
	}
	if second[0].Result["price"] != 29.99 {
		t.Fatalf("unexpected observation result %v", second[0].Result)
	}
	calls, ok := resp.Data["tool_calls"].([]map[string]any)
	if !ok || len(calls) != 1 {
		t.Fatalf("expected one tool call in data, got %v", resp.Data["tool_calls"])
	}
	if calls[0]["tool"] != "get_pricing" || calls[0]["success"] != true || calls[0]["error"] != nil {
		t.Fatalf("unexpected tool call entry %v", calls[0])
	}
	if d.calls != 1 {
		t.Fatalf("expected one dispatch, got %d", d.calls)
	}
}

func TestProcessTask_IterationLimit(t *testing.T) {
	always := useTool("get_pricing", map[string]any{"product_id": "PROD-002"})
	r := &stubReasoner{repeat: &always}
	c, d := newTestController(r)

	resp := c.ProcessTask(context.Background(), task)
	if resp.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", resp.Status)
	}
	if resp.Message != "I was unable to complete the task within the allowed steps." {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if resp.Data["iterations"] != 5 {
		t.Fatalf("expected 5 iterations, got %v", resp.Data["iterations"])
	}
	if obs, _ := resp.Data["observations"].([]map[string]any); len(obs) != 5 {
		t.Fatalf("expected 5 observations, got %v", resp.Data["observations"])
	}
	if len(r.seen) != 5 || d.calls != 5 {
		t.Fatalf("expected 5 turns and 5 dispatches, got %d and %d", len(r.seen), d.calls)
	}
}

func TestProcessTask_CustomIterationLimit(t *testing.T) {
	always := useTool("get_pricing", map[string]any{"product_id": "PROD-002"})
	c, _ := newTestController(&stubReasoner{repeat: &always}, func(cfg *ControllerConfig) { cfg.MaxIterations = 2 })

	resp := c.ProcessTask(context.Background(), task)
	if resp.Data["iterations"] != 2 {
		t.Fatalf("expected 2 iterations, got %v", resp.Data["iterations"])
	}
}

func TestProcessTask_MalformedTwiceNeverDispatches(t *testing.T) {
	eng := &scriptedEngine{replies: []string{"not json", "still not json"}}
	c, d := newTestController(newTestReasoner(eng, 2))

	resp := c.ProcessTask(context.Background(), task)
	if resp.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", resp.Status)
	}
	if resp.Message != "I encountered an error while processing your request." {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if _, ok := resp.Data["error"].(string); !ok {
		t.Fatalf("expected error detail, got %v", resp.Data)
	}
	if d.calls != 0 {
		t.Fatalf("dispatcher must never be called, got %d", d.calls)
	}
}

func TestProcessTask_UnknownToolIsObserved(t *testing.T) {
	r := &stubReasoner{decisions: []domain.Decision{
		useTool("delete_database", nil),
		{Type: domain.DecisionEscalate, Message: "cannot do that"},
	}}
	c, _ := newTestController(r)

	resp := c.ProcessTask(context.Background(), task)
	if resp.Status != domain.StatusEscalated {
		t.Fatalf("unexpected response %+v", resp)
	}
	obs := r.seen[1]
	if len(obs) != 1 || obs[0].Success || obs[0].ToolName != "delete_database" {
		t.Fatalf("unexpected observation %+v", obs)
	}
}

func TestProcessTask_MissingToolNameContinues(t *testing.T) {
	r := &stubReasoner{decisions: []domain.Decision{
		{Type: domain.DecisionUseTool, Reasoning: "oops"},
		{Type: domain.DecisionRespond, Message: "recovered"},
	}}
	c, d := newTestController(r)

	resp := c.ProcessTask(context.Background(), task)
	if resp.Status != domain.StatusSuccess || resp.Message != "recovered" {
		t.Fatalf("unexpected response %+v", resp)
	}
	obs := r.seen[1]
	if len(obs) != 1 || obs[0].ToolName != "unknown" || obs[0].Error != "Agent decided to use a tool but didn't specify which one." {
		t.Fatalf("unexpected synthetic observation %+v", obs)
	}
	if d.calls != 0 {
		t.Fatal("dispatcher must not be called for a missing tool name")
	}
}

func TestProcessTask_MissingToolNameFailPolicy(t *testing.T) {
	r := &stubReasoner{decisions: []domain.Decision{{Type: domain.DecisionUseTool}}}
	c, _ := newTestController(r, func(cfg *ControllerConfig) { cfg.MissingToolPolicy = MissingToolFail })

	resp := c.ProcessTask(context.Background(), task)
	if resp.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %+v", resp)
	}
	if len(r.seen) != 1 {
		t.Fatalf("expected loop to stop after one turn, got %d", len(r.seen))
	}
}

func TestProcessTask_MissingToolCallReachesEngineAsObservation(t *testing.T) {
	eng := &scriptedEngine{replies: []string{
		`{"decision_type":"use_tool","reasoning":"look it up"}`,
		`{"decision_type":"respond","reasoning":"retried","message":"PROD-001 costs 29.99 USD"}`,
	}}
	c, d := newTestController(newTestReasoner(eng, 2))

	resp := c.ProcessTask(context.Background(), task)
	if resp.Status != domain.StatusSuccess || resp.Message != "PROD-001 costs 29.99 USD" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(eng.calls) != 2 {
		t.Fatalf("expected 2 engine calls, got %d", len(eng.calls))
	}
	second := eng.calls[1]
	last := second[len(second)-1].Content
	if !strings.Contains(last, "Tool 'unknown' failed.") || !strings.Contains(last, "didn't specify which one") {
		t.Fatalf("synthetic observation missing from prompt: %q", last)
	}
	if d.calls != 0 {
		t.Fatalf("dispatcher must not be called, got %d", d.calls)
	}
}

func TestProcessTask_MissingToolCallEveryTurnHitsIterationLimit(t *testing.T) {
	reply := `{"decision_type":"use_tool","reasoning":"not sure which"}`
	eng := &scriptedEngine{replies: []string{reply, reply, reply, reply, reply}}
	c, d := newTestController(newTestReasoner(eng, 2))

	resp := c.ProcessTask(context.Background(), task)
	if resp.Message != "I was unable to complete the task within the allowed steps." {
		t.Fatalf("unexpected response %+v", resp)
	}
	obs, _ := resp.Data["observations"].([]map[string]any)
	if len(obs) != 5 {
		t.Fatalf("expected 5 observations, got %v", resp.Data["observations"])
	}
	for _, o := range obs {
		if o["tool_name"] != "unknown" || o["success"] != false {
			t.Fatalf("unexpected observation %v", o)
		}
	}
	if len(eng.calls) != 5 || d.calls != 0 {
		t.Fatalf("expected 5 engine calls and no dispatches, got %d and %d", len(eng.calls), d.calls)
	}
}

func TestProcessTask_CancelledBetweenTurns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &stubReasoner{decisions: []domain.Decision{{Type: domain.DecisionRespond, Message: "late"}}}
	c, _ := newTestController(r)

	resp := c.ProcessTask(ctx, task)
	if resp.Status != domain.StatusFailed || resp.Message != "I encountered an error while processing your request." {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(r.seen) != 0 {
		t.Fatal("reasoner must not run after cancellation")
	}
	if msg, _ := resp.Data["error"].(string); !strings.Contains(msg, context.Canceled.Error()) {
		t.Fatalf("expected cancellation in error, got %v", resp.Data["error"])
	}
}

func TestProcessTask_ReasoningFailure(t *testing.T) {
	r := &stubReasoner{err: &domain.ReasoningFailureError{Attempts: 1, Err: errors.New("timeout")}}
	c, _ := newTestController(r)

	resp := c.ProcessTask(context.Background(), task)
	if resp.Message != "I encountered an error while processing your request." {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestProcessTask_UnexpectedError(t *testing.T) {
	r := &stubReasoner{err: errors.New("something odd")}
	c, _ := newTestController(r)

	resp := c.ProcessTask(context.Background(), task)
	if resp.Status != domain.StatusFailed || resp.Message != "An unexpected error occurred." {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Data["error"] != "something odd" {
		t.Fatalf("unexpected error detail %v", resp.Data["error"])
	}
}

func TestProcessTask_PanicIsContained(t *testing.T) {
	c, _ := newTestController(&stubReasoner{panics: true})

	resp := c.ProcessTask(context.Background(), task)
	if resp.Status != domain.StatusFailed || resp.Message != "An unexpected error occurred." {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestProcessTask_BlankTaskSkipsEngine(t *testing.T) {
	r := &stubReasoner{}
	c, _ := newTestController(r)

	resp := c.ProcessTask(context.Background(), domain.TaskInput{Task: "   "})
	if resp.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %+v", resp)
	}
	if len(r.seen) != 0 {
		t.Fatal("reasoner must not be called for a blank task")
	}
}

func TestProcessTask_ConcurrentTasks(t *testing.T) {
	reply := domain.Decision{Type: domain.DecisionRespond, Message: "ok"}
	c, _ := newTestController(&stubReasoner{repeat: &reply})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if resp := c.ProcessTask(context.Background(), task); resp.Status != domain.StatusSuccess {
				t.Errorf("unexpected response %+v", resp)
			}
		}()
	}
	wg.Wait()
}
