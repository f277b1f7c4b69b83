package history

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avelinom/scout/conversation"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	conv := conversation.New("conv_roundtrip")
	conv.AppendMessage(conversation.RoleUser, "hello")
	conv.AppendMessage(conversation.RoleAssistant, "hi")
	rec := conversation.NewToolCallRecord("call_1", "search_web", map[string]any{"input": "hello"})
	rec.Complete("results")
	conv.AppendToolCall(rec)

	if err := store.Save(conv); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load("conv_roundtrip")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(loaded.Messages))
	}
	if len(loaded.ToolCalls) != 1 || loaded.ToolCalls[0].CallID != "call_1" {
		t.Fatalf("tool call not restored: %+v", loaded.ToolCalls)
	}
}

func TestStore_LoadMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("conv_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_DeleteRemovesDurableRecord(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	conv := conversation.New("conv_gone")
	conv.AppendMessage(conversation.RoleUser, "delete me")
	if err := store.Save(conv); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := store.Delete("conv_gone"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "conv_gone.json")); !os.IsNotExist(err) {
		t.Fatalf("expected session file to be removed")
	}
	// Deleting again is not an error.
	if err := store.Delete("conv_gone"); err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
}

func TestStore_ListAllNewestFirst(t *testing.T) {
	store := newTestStore(t)

	older := conversation.New("conv_older")
	older.CreatedAt = older.CreatedAt.Add(-3600e9)
	older.AppendMessage(conversation.RoleUser, "old question")

	newer := conversation.New("conv_newer")
	newer.AppendMessage(conversation.RoleUser, "new question")
	newer.AppendMessage(conversation.RoleAssistant, "answer")

	if err := store.Save(older); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Save(newer); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	sessions, err := store.ListAll()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "conv_newer" || sessions[1].ID != "conv_older" {
		t.Fatalf("expected newest first, got %q then %q", sessions[0].ID, sessions[1].ID)
	}
	if sessions[1].Title != "old question" {
		t.Fatalf("expected title from first user message, got %q", sessions[1].Title)
	}
	if sessions[0].Messages != 2 {
		t.Fatalf("expected message count 2, got %d", sessions[0].Messages)
	}
}

func TestStore_ListAllSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	conv := conversation.New("conv_ok")
	conv.AppendMessage(conversation.RoleUser, "fine")
	if err := store.Save(conv); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	sessions, err := store.ListAll()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "conv_ok" {
		t.Fatalf("expected only the valid session, got %+v", sessions)
	}
}

func TestNewSessionID_Shape(t *testing.T) {
	id := NewSessionID()
	if !strings.HasPrefix(id, "conv_") {
		t.Fatalf("expected conv_ prefix, got %q", id)
	}
	if id == NewSessionID() {
		t.Fatalf("expected unique ids")
	}
}
