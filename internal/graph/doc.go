// Package graph assembles a File of node declarations locally and commits it
// to the runtime.
//
// # Assembly
//
// A Builder keeps nodes in declaration order, keyed by name. Declare refuses
// a name that is already taken; Replace is the explicit last-write-wins
// operation and keeps the replaced node's position.
//
// # Wiring
//
// RunWhen makes one node react to another by appending a query derived from
// the dependency's output schema to the dependent's query list:
//
//	a, _ := b.PromptNode(node.PromptOpts{Name: "A", Template: "..."})
//	c, _ := b.CustomNode(node.CustomOpts{Name: "C", TypeName: "summarize"})
//	_ = c.RunWhen(a) // C gains `query A { A }`
//
// Wiring is not idempotent: every call appends another query.
//
// # Commit
//
// Commit sends the whole File to the runtime as a merge on the chosen
// branch. The local state is kept, so a Builder can be committed again after
// further changes.
//
// A Builder is meant to be used from a single goroutine.
package graph
