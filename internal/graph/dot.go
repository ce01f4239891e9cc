package graph

import (
	"fmt"

	"github.com/specialistvlad/chidori/internal/dag"
	"github.com/specialistvlad/chidori/internal/node"
	"github.com/specialistvlad/chidori/internal/runtime"
)

// Dot renders a File as a Graphviz digraph. Edges are recovered from the
// selections of each node's queries and point from a dependency to the node
// that reacts to it; selections naming nodes outside the file are ignored.
func Dot(file runtime.File) string {
	g := dag.New()
	for _, it := range file.Nodes {
		g.AddNode(it.Core.Name)
		_ = g.SetAttr(it.Core.Name, "label", label(it))
	}
	for _, it := range file.Nodes {
		for _, q := range it.Core.Queries {
			if q.IsAbsent() {
				continue
			}
			for _, ref := range node.References(*q.Text) {
				if ref == it.Core.Name {
					continue
				}
				if _, ok := file.Lookup(ref); ok {
					_ = g.AddEdge(ref, it.Core.Name)
				}
			}
		}
	}
	name := file.ID
	if name == "" {
		name = "file"
	}
	return g.Dot(name)
}

func label(it *node.Item) string {
	switch p := it.Payload.(type) {
	case node.Custom:
		return fmt.Sprintf("%s\n%s: %s", it.Core.Name, p.Kind(), p.TypeName)
	case nil:
		return it.Core.Name
	default:
		return fmt.Sprintf("%s\n%s", it.Core.Name, p.Kind())
	}
}
