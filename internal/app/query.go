package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/chidori/internal/graph"
	"github.com/specialistvlad/chidori/internal/value"
)

// QueryOptions selects what Query runs.
type QueryOptions struct {
	// Query is run verbatim when Node is empty.
	Query string
	// Node runs the query derived from the named node's output schema, as
	// committed on the configured branch.
	Node  string
	Frame uint64
	// Delimiter joins result paths into keys; empty means ":".
	Delimiter string
}

// Query runs a query against a frame of the configured branch and prints
// the results keyed by joined path.
func (a *App) Query(ctx context.Context, opts QueryOptions) (map[string]value.SerializedValue, error) {
	ctx = a.context(ctx)
	fileID, err := a.fileID()
	if err != nil {
		return nil, err
	}

	var out map[string]value.SerializedValue
	switch {
	case opts.Node != "":
		out, err = a.queryNode(ctx, fileID, opts)
	case opts.Query != "":
		resp, qerr := a.client.Query(ctx, fileID, a.config.Branch, opts.Frame, opts.Query)
		if qerr != nil {
			return nil, qerr
		}
		out, err = resp.Map(opts.Delimiter)
	default:
		return nil, errors.New("either a query or a node name is required")
	}
	if err != nil {
		return nil, err
	}
	return out, a.print(out)
}

func (a *App) queryNode(ctx context.Context, fileID string, opts QueryOptions) (map[string]value.SerializedValue, error) {
	file, err := a.client.CurrentFileState(ctx, fileID, a.config.Branch)
	if err != nil {
		return nil, err
	}
	it, ok := file.Lookup(opts.Node)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not committed to file %q", graph.ErrUnknownNode, opts.Node, fileID)
	}

	b := graph.NewBuilder()
	h, err := b.Declare(it)
	if err != nil {
		return nil, err
	}
	return h.Query(ctx, a.client, fileID, a.config.Branch, opts.Frame)
}
