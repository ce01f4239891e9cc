package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/chidori/internal/ctxlog"
	"github.com/specialistvlad/chidori/internal/dag"
	"github.com/specialistvlad/chidori/internal/node"
	"github.com/specialistvlad/chidori/internal/runtime"
)

var (
	// ErrDuplicateNode is returned by Declare for a name already in use.
	ErrDuplicateNode = errors.New("duplicate node name")
	// ErrUnknownNode is returned for operations on a name that is not declared.
	ErrUnknownNode = errors.New("unknown node")
)

// Merger is the part of the runtime client Commit needs.
type Merger interface {
	Merge(ctx context.Context, fileID string, file runtime.File, branch uint64) (*runtime.ExecutionStatus, error)
}

type entry struct {
	item *node.Item
	// deps are the names wired with RunWhen, in wiring order.
	deps []string
}

// Builder accumulates node declarations.
type Builder struct {
	order []string
	nodes map[string]*entry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[string]*entry)}
}

// Len returns the number of declared nodes.
func (b *Builder) Len() int { return len(b.order) }

// Names returns node names in declaration order.
func (b *Builder) Names() []string {
	return append([]string(nil), b.order...)
}

// Node returns a handle for a declared node.
func (b *Builder) Node(name string) (*NodeHandle, bool) {
	if _, ok := b.nodes[name]; !ok {
		return nil, false
	}
	return &NodeHandle{b: b, name: name}, true
}

// Declare adds an item. A name that is already declared is rejected.
func (b *Builder) Declare(it *node.Item) (*NodeHandle, error) {
	if it == nil || it.Payload == nil {
		return nil, fmt.Errorf("declare: node has no payload")
	}
	name := it.Core.Name
	if _, exists := b.nodes[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, name)
	}
	b.nodes[name] = &entry{item: it.Clone()}
	b.order = append(b.order, name)
	return &NodeHandle{b: b, name: name}, nil
}

// Replace stores it under its name, overwriting any node of the same name
// in place. Wiring recorded for the old node is dropped with it.
func (b *Builder) Replace(it *node.Item) (*NodeHandle, error) {
	if it == nil || it.Payload == nil {
		return nil, fmt.Errorf("replace: node has no payload")
	}
	name := it.Core.Name
	if _, exists := b.nodes[name]; !exists {
		b.order = append(b.order, name)
	}
	b.nodes[name] = &entry{item: it.Clone()}
	return &NodeHandle{b: b, name: name}, nil
}

// PromptNode builds and declares a prompt node.
func (b *Builder) PromptNode(opts node.PromptOpts) (*NodeHandle, error) {
	it, err := node.NewPrompt(opts)
	if err != nil {
		return nil, err
	}
	return b.Declare(it)
}

// CustomNode builds and declares a custom node.
func (b *Builder) CustomNode(opts node.CustomOpts) (*NodeHandle, error) {
	it, err := node.NewCustom(opts)
	if err != nil {
		return nil, err
	}
	return b.Declare(it)
}

// CodeNode builds and declares a code node.
func (b *Builder) CodeNode(opts node.CodeOpts) (*NodeHandle, error) {
	it, err := node.NewCode(opts)
	if err != nil {
		return nil, err
	}
	return b.Declare(it)
}

// VectorMemoryNode builds and declares a vector memory node.
func (b *Builder) VectorMemoryNode(opts node.VectorMemoryOpts) (*NodeHandle, error) {
	it, err := node.NewVectorMemory(opts)
	if err != nil {
		return nil, err
	}
	return b.Declare(it)
}

// Wire makes dependent run when dependency produces output by appending
// the dependency's derived query to dependent's queries.
func (b *Builder) Wire(dependent, dependency string) error {
	target, ok := b.nodes[dependent]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, dependent)
	}
	source, ok := b.nodes[dependency]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, dependency)
	}
	ind, err := node.Derive(source.item)
	if err != nil {
		return fmt.Errorf("wiring %q to %q: %w", dependent, dependency, err)
	}
	target.item.Core.Queries = append(target.item.Core.Queries, node.NewQuery(node.QueryFor(ind)))
	target.deps = append(target.deps, dependency)
	return nil
}

// File returns a snapshot of every declared node in declaration order.
func (b *Builder) File() runtime.File {
	nodes := make([]*node.Item, 0, len(b.order))
	for _, name := range b.order {
		nodes = append(nodes, b.nodes[name].item.Clone())
	}
	return runtime.File{Nodes: nodes}
}

// Commit merges the current File into branch of fileID.
func (b *Builder) Commit(ctx context.Context, m Merger, fileID string, branch uint64) (*runtime.ExecutionStatus, error) {
	logger := ctxlog.FromContext(ctx)
	file := b.File()
	file.ID = fileID

	logger.Info("Committing graph.", "fileID", fileID, "branch", branch, "nodes", len(file.Nodes))
	status, err := m.Merge(ctx, fileID, file, branch)
	if err != nil {
		return nil, fmt.Errorf("committing %q: %w", fileID, err)
	}
	logger.Debug("Graph committed.", "fileID", fileID, "counter", status.MonotonicCounter)
	return status, nil
}

// Validate checks the wiring recorded by RunWhen: every dependency must
// still be declared and the wiring must not form a cycle.
func (b *Builder) Validate() error {
	g := dag.New()
	for _, name := range b.order {
		g.AddNode(name)
	}
	var errs []error
	for _, name := range b.order {
		for _, dep := range b.nodes[name].deps {
			if _, ok := b.nodes[dep]; !ok {
				errs = append(errs, fmt.Errorf("%w: %q runs when %q", ErrUnknownNode, name, dep))
				continue
			}
			if err := g.AddEdge(dep, name); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return g.DetectCycles()
}
