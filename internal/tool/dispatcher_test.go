package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"taskagent/internal/domain"
	"taskagent/internal/metrics"
)

func TestDispatch_UnknownTool(t *testing.T) {
	reg := NewDefaultRegistry(Backends{Store: newMemStore(), Notifier: &recordingSender{}}, testLogger())
	d := NewDispatcher(reg, nil, testLogger())

	res := d.Dispatch(context.Background(), "delete_database", nil)
	if res.Success {
		t.Fatal("expected failure for unknown tool")
	}
	if !strings.Contains(res.Error, "Unknown tool: delete_database") {
		t.Fatalf("unexpected error %q", res.Error)
	}
	for _, name := range reg.Names() {
		if !strings.Contains(res.Error, name) {
			t.Fatalf("expected %s listed in %q", name, res.Error)
		}
	}
}

func TestDispatch_Success(t *testing.T) {
	reg := NewRegistry(testLogger())
	stub := &stubTool{name: "echo", result: domain.OK(map[string]any{"v": 1})}
	reg.Register(stub)
	d := NewDispatcher(reg, metrics.New(nil), testLogger())

	res := d.Dispatch(context.Background(), "echo", map[string]any{"a": "b"})
	if !res.Success || res.Data["v"] != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if stub.callCount() != 1 || stub.args["a"] != "b" {
		t.Fatalf("tool not invoked with args: %+v", stub.args)
	}
}

func TestDispatch_NilArgsBecomeEmpty(t *testing.T) {
	reg := NewRegistry(testLogger())
	stub := &stubTool{name: "echo", result: domain.OK(nil)}
	reg.Register(stub)

	NewDispatcher(reg, nil, testLogger()).Dispatch(context.Background(), "echo", nil)
	if stub.args == nil {
		t.Fatal("expected an empty argument map, got nil")
	}
}

func TestDispatch_ErrorBecomesFailure(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "broken", err: errors.New("connection refused")})

	res := NewDispatcher(reg, nil, testLogger()).Dispatch(context.Background(), "broken", nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "Tool execution failed: connection refused" {
		t.Fatalf("unexpected error %q", res.Error)
	}
}

func TestDispatch_PanicBecomesFailure(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "explodes", panics: "boom"})

	res := NewDispatcher(reg, nil, testLogger()).Dispatch(context.Background(), "explodes", nil)
	if res.Success || !strings.HasPrefix(res.Error, "Tool execution failed:") || !strings.Contains(res.Error, "boom") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDispatch_FailureDropsData(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "sloppy", result: domain.ToolResult{Success: false, Error: "nope", Data: map[string]any{"x": 1}}})

	res := NewDispatcher(reg, nil, testLogger()).Dispatch(context.Background(), "sloppy", nil)
	if res.Success || res.Data != nil || res.Error != "nope" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDispatch_InvalidArgs(t *testing.T) {
	reg := NewDefaultRegistry(Backends{Store: newMemStore(), Notifier: &recordingSender{}}, testLogger())
	d := NewDispatcher(reg, nil, testLogger())

	res := d.Dispatch(context.Background(), "create_order", map[string]any{
		"product_id": "PROD-001", "quantity": float64(0), "customer_id": "C",
	})
	if res.Success || !strings.HasPrefix(res.Error, "Invalid input:") {
		t.Fatalf("expected invalid input, got %+v", res)
	}
}

func TestDispatch_NoRetry(t *testing.T) {
	reg := NewRegistry(testLogger())
	stub := &stubTool{name: "flaky", err: errors.New("temporary")}
	reg.Register(stub)

	NewDispatcher(reg, nil, testLogger()).Dispatch(context.Background(), "flaky", nil)
	if stub.callCount() != 1 {
		t.Fatalf("expected exactly one call, got %d", stub.callCount())
	}
}
