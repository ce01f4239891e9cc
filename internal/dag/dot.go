package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Dot renders the graph in Graphviz DOT format. Edges point from a
// dependency to its dependent.
func (g *Graph) Dot(name string) string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", name)
	for _, id := range g.order {
		fmt.Fprintf(&sb, "  %q%s;\n", id, formatAttrs(g.attrs[id]))
	}
	for _, id := range g.order {
		for _, dep := range sortedKeys(g.nodes[id].dependents) {
			fmt.Fprintf(&sb, "  %q -> %q;\n", id, dep)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func formatAttrs(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, attrs[k])
	}
	return " [" + strings.Join(parts, ", ") + "]"
}
