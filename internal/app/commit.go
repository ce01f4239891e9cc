package app

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/specialistvlad/chidori/internal/graph"
	"github.com/specialistvlad/chidori/internal/manifest"
	"github.com/specialistvlad/chidori/internal/runtime"
)

// CommitOptions tunes Commit.
type CommitOptions struct {
	// DryRun reports the delta without merging.
	DryRun bool
	// AllowCycles skips the cycle check on run_when wiring.
	AllowCycles bool
	// SkipUnchanged skips the merge when the file already holds exactly
	// these nodes. By default every local node is resent.
	SkipUnchanged bool
}

// CommitResult is what Commit prints.
type CommitResult struct {
	FileID    string      `json:"file_id"`
	Generated bool        `json:"generated,omitempty"`
	Branch    uint64      `json:"branch"`
	Counter   uint64      `json:"counter,omitempty"`
	Skipped   bool        `json:"skipped,omitempty"`
	Digest    string      `json:"digest"`
	DryRun    bool        `json:"dry_run,omitempty"`
	Delta     graph.Delta `json:"delta"`
}

// Commit loads the manifests under paths and merges them into the
// configured file and branch. Without a configured file id a new one is
// generated and reported.
func (a *App) Commit(ctx context.Context, paths []string, opts CommitOptions) (*CommitResult, error) {
	ctx = a.context(ctx)
	logger := a.logger.With("paths", paths)

	b, err := manifest.Load(ctx, paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifests: %w", err)
	}
	logger.Debug("Manifests loaded.", "nodes", b.Len())

	if !opts.AllowCycles {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("invalid graph: %w", err)
		}
	}

	res := &CommitResult{
		FileID: a.config.FileID,
		Branch: a.config.Branch,
		DryRun: opts.DryRun,
	}
	remote := runtime.File{}
	if res.FileID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("generating file id: %w", err)
		}
		res.FileID, res.Generated = id, true
		logger.Info("Generated file id.", "fileID", id)
	} else {
		current, err := a.client.CurrentFileState(ctx, res.FileID, res.Branch)
		if err != nil {
			return nil, err
		}
		remote = *current
	}

	local := b.File()
	if res.Delta, err = graph.Diff(remote, local); err != nil {
		return nil, err
	}
	if res.Digest, err = graph.FileDigest(local); err != nil {
		return nil, err
	}

	if opts.DryRun {
		logger.Info("Dry run, nothing merged.", "fileID", res.FileID, "added", len(res.Delta.Added), "modified", len(res.Delta.Modified))
		return res, a.print(res)
	}
	if opts.SkipUnchanged && res.Delta.IsEmpty() && !res.Generated {
		res.Skipped = true
		logger.Info("Graph is up to date, nothing to merge.", "fileID", res.FileID)
		return res, a.print(res)
	}

	status, err := b.Commit(ctx, a.client, res.FileID, res.Branch)
	if err != nil {
		return nil, err
	}
	res.Counter = status.MonotonicCounter
	return res, a.print(res)
}
