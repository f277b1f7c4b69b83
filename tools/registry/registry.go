package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/avelinom/scout/tools"
)

var (
	// ErrToolNotFound is returned when resolving a name with no registration
	ErrToolNotFound = errors.New("tool not found")
)

type entry struct {
	tool     tools.Tool
	priority int
	enabled  bool
	order    int
}

// Registry holds the registered tools with their routing priority and
// enabled state. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	next    int
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Register adds a tool under its own name. Registration replaces any
// previous tool with the same name but keeps its enabled state.
func (r *Registry) Register(tool tools.Tool, priority int) error {
	if tool == nil {
		return fmt.Errorf("cannot register a nil tool")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("cannot register a tool with an empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[name]; ok {
		existing.tool = tool
		existing.priority = priority
		return nil
	}
	r.entries[name] = &entry{
		tool:     tool,
		priority: priority,
		enabled:  true,
		order:    r.next,
	}
	r.next++
	return nil
}

// SetEnabled toggles a tool on or off
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	e.enabled = enabled
	return nil
}

// Resolve returns the tool registered under name
func (r *Registry) Resolve(name string) (tools.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return e.tool, nil
}

// Descriptors returns every registered tool in registration order
func (r *Registry) Descriptors() []tools.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]tools.Descriptor, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, tools.Descriptor{
			Name:            name,
			DisplayName:     displayName(name),
			DisplayPriority: e.priority,
			Enabled:         e.enabled,
		})
	}
	sortDescriptors(out, r.entries)
	return out
}

// EnabledTools returns a snapshot of the enabled tools sorted by
// priority, lowest first. Ties keep registration order.
func (r *Registry) EnabledTools() []tools.Descriptor {
	all := r.Descriptors()
	out := all[:0:0]
	for _, d := range all {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

func sortDescriptors(ds []tools.Descriptor, entries map[string]*entry) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.DisplayPriority != b.DisplayPriority {
			return a.DisplayPriority < b.DisplayPriority
		}
		return entries[a.Name].order < entries[b.Name].order
	})
}

// displayName turns a snake_case tool name into a human-readable label
func displayName(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		if w == "sql" {
			words[i] = "SQL"
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
