package graph

import (
	"context"
	"fmt"

	"github.com/specialistvlad/chidori/internal/address"
	"github.com/specialistvlad/chidori/internal/node"
	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/specialistvlad/chidori/internal/value"
)

// Querier is the part of the runtime client NodeHandle.Query needs.
type Querier interface {
	Query(ctx context.Context, fileID string, branch, frame uint64, query string) (*runtime.QueryAtFrameResponse, error)
}

// NodeHandle refers to a declared node by name.
type NodeHandle struct {
	b    *Builder
	name string
}

// Name returns the node's name.
func (h *NodeHandle) Name() string { return h.name }

// Item returns a copy of the node's current declaration.
func (h *NodeHandle) Item() *node.Item {
	return h.b.nodes[h.name].item.Clone()
}

// Individual derives the node's addressable view.
func (h *NodeHandle) Individual() (*node.Individual, error) {
	return node.Derive(h.b.nodes[h.name].item)
}

// OutputPath returns the path under which the node's output is stored.
func (h *NodeHandle) OutputPath() address.Path {
	return address.New(h.name)
}

// RunWhen makes this node react to dep's output.
func (h *NodeHandle) RunWhen(dep *NodeHandle) error {
	if dep.b != h.b {
		return fmt.Errorf("run when: %q and %q belong to different builders", h.name, dep.name)
	}
	return h.b.Wire(h.name, dep.name)
}

// Query reads this node's output at a frame and keys each value by its
// path joined with ":".
func (h *NodeHandle) Query(ctx context.Context, q Querier, fileID string, branch, frame uint64) (map[string]value.SerializedValue, error) {
	ind, err := h.Individual()
	if err != nil {
		return nil, err
	}
	resp, err := q.Query(ctx, fileID, branch, frame, node.QueryFor(ind))
	if err != nil {
		return nil, err
	}
	return resp.Map(address.DefaultDelimiter)
}
