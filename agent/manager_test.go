package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/avelinom/scout/conversation"
	"github.com/avelinom/scout/history"
	"github.com/avelinom/scout/llm"
	"github.com/avelinom/scout/tools"
	"github.com/avelinom/scout/tools/base"
	"github.com/avelinom/scout/tools/registry"
)

type fakeTool struct {
	base.BaseTool
	response string
	err      error
	panics   bool
}

func (f *fakeTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	if f.panics {
		panic("deliberate test panic")
	}
	return f.response, f.err
}

type fakeClient struct {
	reply string
	err   error
	seen  []string
}

func (f *fakeClient) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	for _, msg := range req.Messages {
		f.seen = append(f.seen, msg.Content)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{
		Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant, Content: f.reply}}},
	}, nil
}

func (f *fakeClient) Close() error { return nil }

func newTestRegistry(t *testing.T, entries map[string]tools.Tool) *registry.Registry {
	t.Helper()
	reg := registry.New()
	priorities := map[string]int{
		tools.NameDocumentRetrieval: tools.PriorityDocumentRetrieval,
		tools.NameSQLRetrieval:      tools.PrioritySQLRetrieval,
		tools.NameSearchWeb:         tools.PrioritySearchWeb,
		tools.NameRunCode:           tools.PriorityRunCode,
	}
	for name, tool := range entries {
		if err := reg.Register(tool, priorities[name]); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	return reg
}

func newFake(name, response string) *fakeTool {
	return &fakeTool{
		BaseTool: base.BaseTool{ToolName: name, ToolDesc: "fake"},
		response: response,
	}
}

func newTestManager(t *testing.T, reg *registry.Registry, client llm.Client) *Manager {
	t.Helper()
	store, err := history.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return NewManager(client, reg, store)
}

func TestHandle_NoToolsEnabledReturnsFixedReply(t *testing.T) {
	reg := newTestRegistry(t, map[string]tools.Tool{
		tools.NameSearchWeb: newFake(tools.NameSearchWeb, "web says hi"),
	})
	if err := reg.SetEnabled(tools.NameSearchWeb, false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	client := &fakeClient{reply: "should not be called"}
	m := newTestManager(t, reg, client)
	result, err := m.Handle(context.Background(), Query{Text: "hello"})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if result.Reply != noToolsReply {
		t.Fatalf("expected fixed no-tools reply, got %q", result.Reply)
	}
	if result.State != StateFailed {
		t.Fatalf("expected failed state, got %s", result.State)
	}

	conv := m.Conversation()
	if len(conv.ToolCalls) != 0 {
		t.Fatalf("no tool calls expected, got %d", len(conv.ToolCalls))
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected user and assistant messages, got %d", len(conv.Messages))
	}
	if len(client.seen) != 0 {
		t.Fatalf("language model must not be called when no tools are enabled")
	}
}

func TestHandle_InvokesToolsInPriorityOrder(t *testing.T) {
	reg := newTestRegistry(t, map[string]tools.Tool{
		tools.NameSearchWeb:         newFake(tools.NameSearchWeb, "from the web"),
		tools.NameDocumentRetrieval: newFake(tools.NameDocumentRetrieval, "from the docs"),
		tools.NameSQLRetrieval:      newFake(tools.NameSQLRetrieval, "from the database"),
	})

	client := &fakeClient{reply: "composed answer"}
	m := newTestManager(t, reg, client)
	result, err := m.Handle(context.Background(), Query{Text: "what is the vacation policy?"})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if result.Reply != "composed answer" {
		t.Fatalf("unexpected reply %q", result.Reply)
	}

	want := []string{tools.NameDocumentRetrieval, tools.NameSQLRetrieval, tools.NameSearchWeb}
	if len(result.ToolCalls) != len(want) {
		t.Fatalf("expected %d tool calls, got %d", len(want), len(result.ToolCalls))
	}
	for i, name := range want {
		if result.ToolCalls[i].ToolName != name {
			t.Fatalf("call %d: expected %s, got %s", i, name, result.ToolCalls[i].ToolName)
		}
		if result.ToolCalls[i].Status != conversation.StatusCompleted {
			t.Fatalf("call %d: expected completed, got %s", i, result.ToolCalls[i].Status)
		}
	}

	// the compose prompt carries the evidence in the same order
	prompt := strings.Join(client.seen, "\n")
	docIdx := strings.Index(prompt, "from the docs")
	webIdx := strings.Index(prompt, "from the web")
	if docIdx < 0 || webIdx < 0 || docIdx > webIdx {
		t.Fatalf("evidence order wrong in prompt:\n%s", prompt)
	}
}

func TestHandle_RunCodeOnlyOnExplicitFlag(t *testing.T) {
	reg := newTestRegistry(t, map[string]tools.Tool{
		tools.NameDocumentRetrieval: newFake(tools.NameDocumentRetrieval, "docs"),
		tools.NameRunCode:           newFake(tools.NameRunCode, "42"),
	})
	m := newTestManager(t, reg, &fakeClient{reply: "ok"})

	result, err := m.Handle(context.Background(), Query{Text: "compute something"})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	for _, rec := range result.ToolCalls {
		if rec.ToolName == tools.NameRunCode {
			t.Fatalf("run_code invoked without the computation flag")
		}
	}

	result, err = m.Handle(context.Background(), Query{Text: "compute something", RunCode: true})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	found := false
	for _, rec := range result.ToolCalls {
		if rec.ToolName == tools.NameRunCode {
			found = true
		}
	}
	if !found {
		t.Fatalf("run_code not invoked despite the computation flag")
	}
}

func TestHandle_ToolFailureIsContained(t *testing.T) {
	failing := newFake(tools.NameDocumentRetrieval, "")
	failing.err = errors.New("index corrupted")
	reg := newTestRegistry(t, map[string]tools.Tool{
		tools.NameDocumentRetrieval: failing,
		tools.NameSearchWeb:         newFake(tools.NameSearchWeb, "web evidence"),
	})

	m := newTestManager(t, reg, &fakeClient{reply: "answer from the web"})
	result, err := m.Handle(context.Background(), Query{Text: "anything"})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if result.State != StatePersisted {
		t.Fatalf("expected persisted state, got %s", result.State)
	}

	var failed, completed int
	for _, rec := range result.ToolCalls {
		switch rec.Status {
		case conversation.StatusFailed:
			failed++
			if rec.Reason == "" {
				t.Fatalf("failed record missing reason")
			}
		case conversation.StatusCompleted:
			completed++
		}
	}
	if failed != 1 || completed != 1 {
		t.Fatalf("expected 1 failed and 1 completed record, got %d/%d", failed, completed)
	}
}

func TestHandle_ToolPanicIsContained(t *testing.T) {
	panicking := newFake(tools.NameDocumentRetrieval, "")
	panicking.panics = true
	reg := newTestRegistry(t, map[string]tools.Tool{
		tools.NameDocumentRetrieval: panicking,
	})

	m := newTestManager(t, reg, &fakeClient{reply: "still answered"})
	result, err := m.Handle(context.Background(), Query{Text: "anything"})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Status != conversation.StatusFailed {
		t.Fatalf("expected a failed record from the panicking tool, got %+v", result.ToolCalls)
	}
	if !strings.Contains(result.ToolCalls[0].Reason, "panic") {
		t.Fatalf("expected panic reason, got %q", result.ToolCalls[0].Reason)
	}
}

func TestHandle_ComposeFailureStillPersists(t *testing.T) {
	reg := newTestRegistry(t, map[string]tools.Tool{
		tools.NameSearchWeb: newFake(tools.NameSearchWeb, "evidence"),
	})
	m := newTestManager(t, reg, &fakeClient{err: errors.New("model overloaded")})

	result, err := m.Handle(context.Background(), Query{Text: "anything"})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if result.State != StateFailed {
		t.Fatalf("expected failed state, got %s", result.State)
	}
	if !strings.HasPrefix(result.Reply, "Error executing agent query: ") {
		t.Fatalf("unexpected failure reply %q", result.Reply)
	}

	conv := m.Conversation()
	if conv.Messages[len(conv.Messages)-1].Content != result.Reply {
		t.Fatalf("error reply not appended to conversation")
	}
	var sawError bool
	for _, entry := range conv.Logs {
		if entry.LogType() == "error" {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected an error log entry")
	}
}

func TestHandle_PersistsSessionRoundTrip(t *testing.T) {
	reg := newTestRegistry(t, map[string]tools.Tool{
		tools.NameDocumentRetrieval: newFake(tools.NameDocumentRetrieval, "docs evidence"),
	})
	store, err := history.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m := NewManager(&fakeClient{reply: "final answer"}, reg, store)
	id := m.StartSession()

	if _, err := m.Handle(context.Background(), Query{Text: "first question"}); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	restored, err := store.Load(id)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(restored.Messages) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(restored.Messages))
	}
	if len(restored.ToolCalls) != 1 {
		t.Fatalf("expected 1 persisted tool call, got %d", len(restored.ToolCalls))
	}
	if len(restored.Logs) == 0 {
		t.Fatalf("expected persisted execution logs")
	}
}

func TestHandle_RejectsEmptyQuery(t *testing.T) {
	reg := newTestRegistry(t, map[string]tools.Tool{})
	m := newTestManager(t, reg, &fakeClient{reply: "x"})

	if _, err := m.Handle(context.Background(), Query{Text: "   "}); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestHandle_ResponsePreviewBounded(t *testing.T) {
	long := strings.Repeat("x", conversation.ResponsePreviewLimit*2)
	reg := newTestRegistry(t, map[string]tools.Tool{
		tools.NameDocumentRetrieval: newFake(tools.NameDocumentRetrieval, long),
	})
	m := newTestManager(t, reg, &fakeClient{reply: "ok"})

	result, err := m.Handle(context.Background(), Query{Text: "anything"})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	got := result.ToolCalls[0].Response
	if len(got) > conversation.ResponsePreviewLimit+len("...") {
		t.Fatalf("persisted response preview too long: %d chars", len(got))
	}
}

func TestHandle_ComposerSeesFullToolOutput(t *testing.T) {
	marker := "the rollover cap is ten days"
	long := strings.Repeat("a", conversation.ResponsePreviewLimit) + " " + marker
	reg := newTestRegistry(t, map[string]tools.Tool{
		tools.NameDocumentRetrieval: newFake(tools.NameDocumentRetrieval, long),
	})
	client := &fakeClient{reply: "ok"}
	m := newTestManager(t, reg, client)

	result, err := m.Handle(context.Background(), Query{Text: "what is the rollover cap?"})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	// the session log keeps the bounded preview, the composer the full text
	if got := result.ToolCalls[0].Response; strings.Contains(got, marker) {
		t.Fatalf("persisted preview not bounded: %d chars", len(got))
	}
	prompt := strings.Join(client.seen, "\n")
	if !strings.Contains(prompt, marker) {
		t.Fatalf("evidence past the preview limit never reached the composer:\n%s", prompt)
	}
}

func TestLoadSession_ResumesExisting(t *testing.T) {
	reg := newTestRegistry(t, map[string]tools.Tool{
		tools.NameSearchWeb: newFake(tools.NameSearchWeb, "evidence"),
	})
	store, err := history.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	first := NewManager(&fakeClient{reply: "first answer"}, reg, store)
	id := first.StartSession()
	if _, err := first.Handle(context.Background(), Query{Text: "original question"}); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	second := NewManager(&fakeClient{reply: "second answer"}, reg, store)
	if err := second.LoadSession(id); err != nil {
		t.Fatalf("load session failed: %v", err)
	}
	if _, err := second.Handle(context.Background(), Query{Text: "follow-up"}); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	restored, err := store.Load(id)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(restored.Messages) != 4 {
		t.Fatalf("expected 4 messages after resume, got %d", len(restored.Messages))
	}

	if err := second.LoadSession("conv_does_not_exist"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHandle_RecordsAreTerminal(t *testing.T) {
	reg := newTestRegistry(t, map[string]tools.Tool{
		tools.NameDocumentRetrieval: newFake(tools.NameDocumentRetrieval, "docs"),
		tools.NameSearchWeb:         newFake(tools.NameSearchWeb, "web"),
	})
	m := newTestManager(t, reg, &fakeClient{reply: "done"})

	result, err := m.Handle(context.Background(), Query{Text: "anything"})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	for i, rec := range result.ToolCalls {
		if !rec.Terminal() {
			t.Fatalf("record %d left in status %s", i, rec.Status)
		}
		if rec.FinishedAt.IsZero() {
			t.Fatalf("record %d missing finished_at", i)
		}
	}
}

func TestHandle_MultipleTurnsShareSession(t *testing.T) {
	reg := newTestRegistry(t, map[string]tools.Tool{
		tools.NameSearchWeb: newFake(tools.NameSearchWeb, "evidence"),
	})
	m := newTestManager(t, reg, &fakeClient{reply: "answer"})

	for i := 0; i < 3; i++ {
		if _, err := m.Handle(context.Background(), Query{Text: fmt.Sprintf("question %d", i)}); err != nil {
			t.Fatalf("turn %d failed: %v", i, err)
		}
	}

	conv := m.Conversation()
	if len(conv.Messages) != 6 {
		t.Fatalf("expected 6 messages over 3 turns, got %d", len(conv.Messages))
	}
	if len(conv.ToolCalls) != 3 {
		t.Fatalf("expected 3 tool calls, got %d", len(conv.ToolCalls))
	}
}
