package app

import (
	"context"

	"github.com/specialistvlad/chidori/internal/handlers"
	"github.com/specialistvlad/chidori/internal/worker"
)

// Worker serves the configured file's custom-node events with handlers from
// modules until ctx is done. It waits for the runtime first and exposes
// /health and /metrics when a healthcheck port is configured.
func (a *App) Worker(ctx context.Context, modules ...handlers.Module) error {
	ctx = a.context(ctx)
	fileID, err := a.fileID()
	if err != nil {
		return err
	}

	if err := a.client.Start(ctx); err != nil {
		return err
	}

	a.healthCheckServer()
	defer func() { _ = a.closeHealthCheckServer() }()

	h := handlers.New().Load(modules...)
	defer func() {
		if err := h.Close(); err != nil {
			a.logger.Warn("Closing handlers failed.", "error", err)
		}
	}()
	a.logger.Info("Handlers registered.", "modules", len(modules), "types", h.Types())

	session := worker.NewSession(a.client, fileID)
	session.PollInterval = a.config.PollInterval

	w := &worker.Worker{
		Session:     session,
		Handlers:    h,
		Concurrency: a.config.WorkerConcurrency,
		Attribution: worker.Attribution(a.config.Attribution),
	}

	file, err := a.client.CurrentFileState(ctx, fileID, a.config.Branch)
	if err != nil {
		return err
	}
	if err := w.LoadSchemas(*file); err != nil {
		a.logger.Warn("Some output schemas could not be loaded; their output is not checked.", "error", err)
	}

	return w.Run(ctx)
}
