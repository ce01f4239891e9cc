package app

import (
	"context"

	"github.com/specialistvlad/chidori/internal/runtime"
)

// StartResult is what Start prints.
type StartResult struct {
	URL   string `json:"url"`
	Ready bool   `json:"ready"`
}

// Start waits for the runtime, launching it when a launch command is
// configured, under the configured startup policy.
func (a *App) Start(ctx context.Context) error {
	ctx = a.context(ctx)
	if err := a.client.Start(ctx); err != nil {
		return err
	}
	return a.print(StartResult{URL: a.client.URL(), Ready: true})
}

// Play resumes execution of the configured branch from frame.
func (a *App) Play(ctx context.Context, frame uint64) error {
	return a.control(ctx, frame, a.client.Play)
}

// Pause halts execution of the configured branch at frame.
func (a *App) Pause(ctx context.Context, frame uint64) error {
	return a.control(ctx, frame, a.client.Pause)
}

func (a *App) control(ctx context.Context, frame uint64, call func(context.Context, string, uint64, uint64) (*runtime.ExecutionStatus, error)) error {
	ctx = a.context(ctx)
	fileID, err := a.fileID()
	if err != nil {
		return err
	}
	status, err := call(ctx, fileID, a.config.Branch, frame)
	if err != nil {
		return err
	}
	a.logger.Debug("Execution state changed.", "fileID", fileID, "branch", a.config.Branch, "frame", frame, "counter", status.MonotonicCounter)
	return a.print(status)
}

// Branches prints the branches of the configured file.
func (a *App) Branches(ctx context.Context) error {
	ctx = a.context(ctx)
	fileID, err := a.fileID()
	if err != nil {
		return err
	}
	res, err := a.client.ListBranches(ctx, fileID)
	if err != nil {
		return err
	}
	if res.Branches == nil {
		res.Branches = []runtime.Branch{}
	}
	return a.print(res)
}

// NewBranch forks the configured branch at divergesAt.
func (a *App) NewBranch(ctx context.Context, divergesAt uint64) error {
	ctx = a.context(ctx)
	fileID, err := a.fileID()
	if err != nil {
		return err
	}
	status, err := a.client.NewBranch(ctx, fileID, a.config.Branch, divergesAt)
	if err != nil {
		return err
	}
	a.logger.Info("Branch created.", "fileID", fileID, "source", a.config.Branch, "branch", status.Branch)
	return a.print(status)
}
