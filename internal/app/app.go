package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/specialistvlad/chidori/internal/ctxlog"
	"github.com/specialistvlad/chidori/internal/runtime"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	client     *runtime.Client
	httpServer *http.Server
}

// NewApp is the constructor for the main application. Results are written
// to outW and logs to logW. opts are applied after the options derived from
// cfg, so they win.
func NewApp(outW, logW io.Writer, cfg *Config, opts ...runtime.Option) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	rtOpts := []runtime.Option{
		runtime.WithStartup(runtime.StartupPolicy{
			Interval:    cfg.StartupInterval,
			MaxAttempts: cfg.StartupMaxAttempts,
			Timeout:     cfg.StartupTimeout,
		}),
		runtime.WithCompression(cfg.Compression),
	}
	if fields := strings.Fields(cfg.LaunchCommand); len(fields) > 0 {
		rtOpts = append(rtOpts, runtime.WithLauncher(runtime.ExecLauncher{
			Command: fields[0],
			Args:    fields[1:],
			Stdout:  os.Stderr,
		}))
	}

	client, err := runtime.New(cfg.ServerURL, append(rtOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating runtime client: %w", err)
	}
	logger.Debug("Runtime client created.", "url", client.URL(), "compression", cfg.Compression)

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		client: client,
	}, nil
}

// Logger returns the application's logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Client returns the runtime client. This is primarily for testing.
func (a *App) Client() *runtime.Client { return a.client }

// Close releases the runtime client.
func (a *App) Close() error {
	a.logger.Debug("Closing app.")
	return a.client.Close()
}

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// fileID returns the configured file id or ErrNoFileID.
func (a *App) fileID() (string, error) {
	if a.config.FileID == "" {
		return "", ErrNoFileID
	}
	return a.config.FileID, nil
}
