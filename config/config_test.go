package config

import (
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return m
}

func TestManager_ToolTogglesDefaultEnabled(t *testing.T) {
	m := newTestManager(t)

	for _, name := range []string{"search_web", "document_retrieval", "sql_retrieval", "run_code"} {
		if !m.IsToolEnabled(name) {
			t.Fatalf("expected %s enabled by default", name)
		}
	}
	// Unknown tools default to enabled rather than silently vanishing.
	if !m.IsToolEnabled("future_tool") {
		t.Fatalf("expected unknown tool to default to enabled")
	}
}

func TestManager_ToggleSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m, err := NewManagerAt(path)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if err := m.SetToolEnabled("search_web", false); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	reloaded, err := NewManagerAt(path)
	if err != nil {
		t.Fatalf("failed to reload manager: %v", err)
	}
	if reloaded.IsToolEnabled("search_web") {
		t.Fatalf("expected search_web disabled after reload")
	}
	if !reloaded.IsToolEnabled("sql_retrieval") {
		t.Fatalf("expected untouched toggles to stay enabled")
	}
}

func TestManager_EnabledDatabasesFilteredByMappings(t *testing.T) {
	m := newTestManager(t)

	if err := m.SetDatabaseMapping("chinook", "Chinook.db"); err != nil {
		t.Fatalf("mapping failed: %v", err)
	}
	if err := m.SetEnabledDatabases([]string{"employees", "chinook", "unmapped"}); err != nil {
		t.Fatalf("enable failed: %v", err)
	}

	enabled := m.EnabledDatabases()
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled databases, got %d: %v", len(enabled), enabled)
	}
	if enabled["chinook"] != "Chinook.db" {
		t.Fatalf("expected chinook mapping preserved, got %q", enabled["chinook"])
	}
	if _, ok := enabled["unmapped"]; ok {
		t.Fatalf("expected unmapped database to be filtered out")
	}
}

func TestManager_DocumentFilter(t *testing.T) {
	m := newTestManager(t)

	// Empty list means everything ingested is readable.
	if !m.IsDocumentEnabled("handbook.txt") {
		t.Fatalf("expected all documents enabled with empty list")
	}

	if err := m.SetEnabledDocuments([]string{"handbook.txt"}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !m.IsDocumentEnabled("handbook.txt") {
		t.Fatalf("expected handbook.txt enabled")
	}
	if m.IsDocumentEnabled("other.txt") {
		t.Fatalf("expected other.txt disabled")
	}
}
