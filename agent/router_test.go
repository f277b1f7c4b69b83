package agent

import (
	"testing"

	"github.com/avelinom/scout/tools"
)

func descriptors(names ...string) []tools.Descriptor {
	priorities := map[string]int{
		tools.NameDocumentRetrieval: tools.PriorityDocumentRetrieval,
		tools.NameSQLRetrieval:      tools.PrioritySQLRetrieval,
		tools.NameSearchWeb:         tools.PrioritySearchWeb,
		tools.NameRunCode:           tools.PriorityRunCode,
	}
	out := make([]tools.Descriptor, 0, len(names))
	for _, name := range names {
		out = append(out, tools.Descriptor{
			Name:            name,
			DisplayPriority: priorities[name],
			Enabled:         true,
		})
	}
	return out
}

func TestRoute_PreservesPriorityOrder(t *testing.T) {
	enabled := descriptors(tools.NameDocumentRetrieval, tools.NameSQLRetrieval, tools.NameSearchWeb)

	routed := Route(Query{Text: "q"}, enabled)
	if len(routed) != 3 {
		t.Fatalf("expected 3 routed tools, got %d", len(routed))
	}
	for i, d := range enabled {
		if routed[i].Name != d.Name {
			t.Fatalf("position %d: expected %s, got %s", i, d.Name, routed[i].Name)
		}
	}
}

func TestRoute_ExcludesRunCodeWithoutFlag(t *testing.T) {
	enabled := descriptors(tools.NameDocumentRetrieval, tools.NameRunCode)

	routed := Route(Query{Text: "calculate 2+2"}, enabled)
	for _, d := range routed {
		if d.Name == tools.NameRunCode {
			t.Fatalf("run_code routed without the computation flag")
		}
	}

	routed = Route(Query{Text: "calculate 2+2", RunCode: true}, enabled)
	found := false
	for _, d := range routed {
		if d.Name == tools.NameRunCode {
			found = true
		}
	}
	if !found {
		t.Fatalf("run_code not routed despite the computation flag")
	}
}

func TestRoute_OnlyRunCodeEnabledWithoutFlag(t *testing.T) {
	enabled := descriptors(tools.NameRunCode)
	if routed := Route(Query{Text: "q"}, enabled); len(routed) != 0 {
		t.Fatalf("expected empty routing, got %v", routed)
	}
}
