package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/chidori/internal/graph"
	"github.com/specialistvlad/chidori/internal/manifest"
	"github.com/specialistvlad/chidori/internal/runtime"
)

// GraphShow prints the DOT rendering of the manifests under paths, or of
// the committed file when no paths are given.
func (a *App) GraphShow(ctx context.Context, paths ...string) error {
	ctx = a.context(ctx)

	var file runtime.File
	if len(paths) > 0 {
		b, err := manifest.Load(ctx, paths...)
		if err != nil {
			return fmt.Errorf("failed to load manifests: %w", err)
		}
		file = b.File()
	} else {
		fileID, err := a.fileID()
		if err != nil {
			return err
		}
		current, err := a.client.CurrentFileState(ctx, fileID, a.config.Branch)
		if err != nil {
			return err
		}
		file = *current
	}

	_, err := fmt.Fprint(a.outW, graph.Dot(file))
	return err
}

// Graphs prints the id of every file registered with the runtime, one per
// line, until the stream ends or ctx is done.
func (a *App) Graphs(ctx context.Context) error {
	ctx = a.context(ctx)
	stream, err := a.client.ListRegisteredGraphs(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	n := 0
	for stream.Next() {
		fmt.Fprintln(a.outW, stream.Value().ID)
		n++
	}
	a.logger.Debug("Graph listing finished.", "graphs", n)
	return streamErr(ctx, stream.Err())
}

// Events prints every change event of the configured branch as it arrives.
func (a *App) Events(ctx context.Context) error {
	ctx = a.context(ctx)
	fileID, err := a.fileID()
	if err != nil {
		return err
	}
	stream, err := a.client.ListChangeEvents(ctx, fileID, a.config.Branch)
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Next() {
		if a.config.Output == "yaml" {
			fmt.Fprintln(a.outW, "---")
		}
		if err := a.print(stream.Value()); err != nil {
			return err
		}
	}
	return streamErr(ctx, stream.Err())
}

// streamErr drops the error of a stream that ended because ctx did.
func streamErr(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
