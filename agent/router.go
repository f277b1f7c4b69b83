package agent

import "github.com/avelinom/scout/tools"

// Route selects the tools to try for a turn. Descriptors arrive sorted
// by priority; the order is preserved so evidence is gathered from the
// most reliable source first. The code execution tool is included only
// when the query explicitly asks for computation.
func Route(q Query, enabled []tools.Descriptor) []tools.Descriptor {
	out := make([]tools.Descriptor, 0, len(enabled))
	for _, d := range enabled {
		if d.Name == tools.NameRunCode && !q.RunCode {
			continue
		}
		out = append(out, d)
	}
	return out
}
