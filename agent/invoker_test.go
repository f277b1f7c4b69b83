package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/avelinom/scout/conversation"
	"github.com/avelinom/scout/tools/base"
)

type slowTool struct {
	base.BaseTool
	delay time.Duration
}

func (s *slowTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	select {
	case <-time.After(s.delay):
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestInvoker_CompletesRecord(t *testing.T) {
	inv := NewInvoker(time.Second, nil)
	tool := newFake("fast_tool", "result text")

	rec := inv.Invoke(context.Background(), tool, "some input")
	if rec.Status != conversation.StatusCompleted {
		t.Fatalf("expected completed, got %s", rec.Status)
	}
	if rec.Response != "result text" {
		t.Fatalf("unexpected response %q", rec.Response)
	}
	if rec.ToolName != "fast_tool" {
		t.Fatalf("unexpected tool name %q", rec.ToolName)
	}
	if !strings.HasPrefix(rec.CallID, "call_") {
		t.Fatalf("unexpected call id %q", rec.CallID)
	}
	if got, ok := rec.Arguments["input"]; !ok || got != "some input" {
		t.Fatalf("arguments not recorded: %v", rec.Arguments)
	}
}

func TestInvoker_TimesOutSlowTool(t *testing.T) {
	inv := NewInvoker(20*time.Millisecond, nil)
	tool := &slowTool{
		BaseTool: base.BaseTool{ToolName: "slow_tool"},
		delay:    time.Second,
	}

	rec := inv.Invoke(context.Background(), tool, "input")
	if rec.Status != conversation.StatusFailed {
		t.Fatalf("expected failed, got %s", rec.Status)
	}
	if !strings.Contains(rec.Reason, "abandoned") {
		t.Fatalf("expected abandonment reason, got %q", rec.Reason)
	}
}

func TestInvoker_RecoversFromPanic(t *testing.T) {
	inv := NewInvoker(time.Second, nil)
	tool := newFake("panicky", "")
	tool.panics = true

	rec := inv.Invoke(context.Background(), tool, "input")
	if rec.Status != conversation.StatusFailed {
		t.Fatalf("expected failed, got %s", rec.Status)
	}
	if !strings.Contains(rec.Reason, "panic") {
		t.Fatalf("expected panic in reason, got %q", rec.Reason)
	}
}

func TestInvoker_HonorsCallerCancellation(t *testing.T) {
	inv := NewInvoker(0, nil)
	tool := &slowTool{
		BaseTool: base.BaseTool{ToolName: "slow_tool"},
		delay:    time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := inv.Invoke(ctx, tool, "input")
	if rec.Status != conversation.StatusFailed {
		t.Fatalf("expected failed, got %s", rec.Status)
	}
}
