package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/chidori/internal/app"
	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/spf13/cobra"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

// Options carries the process-level dependencies of a CLI run.
type Options struct {
	Out io.Writer
	Err io.Writer
	// Env supplies CHIDORI_* variables; nil means none.
	Env app.Env
	// Runtime options are applied to every runtime client, after the ones
	// derived from configuration.
	Runtime []runtime.Option
}

// cli holds the state shared by all commands of one run.
type cli struct {
	opts Options
	cfg  app.Config
}

// Run parses args and executes the selected command. Usage problems are
// returned as an *ExitError with code 2.
func Run(ctx context.Context, args []string, opts Options) error {
	slog.Debug("CLI parser started.")
	root, err := NewRootCommand(opts)
	if err != nil {
		return err
	}
	root.SetArgs(args)
	err = root.ExecuteContext(ctx)
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) && strings.HasPrefix(err.Error(), "unknown command") {
		return usageError(err)
	}
	return err
}

// NewRootCommand builds the command tree. Flag defaults are the built-in
// defaults overlaid with opts.Env, so flags take precedence over the
// environment.
func NewRootCommand(opts Options) (*cobra.Command, error) {
	c := &cli{opts: opts, cfg: app.DefaultConfig()}
	if opts.Env != nil {
		if err := c.cfg.ApplyEnv(opts.Env); err != nil {
			return nil, usageError(err)
		}
	}

	root := &cobra.Command{
		Use:   "chidori",
		Short: "Chidori - build reactive node graphs and serve their custom nodes",
		Long: `Chidori assembles graphs of prompt, custom, code and vector memory nodes
from HCL manifests, commits them to an execution runtime, controls their
execution and runs workers for custom node types.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfg.ServerURL, "server", c.cfg.ServerURL, "Runtime URL, e.g. http://localhost:9800.")
	pf.StringVar(&c.cfg.FileID, "file-id", c.cfg.FileID, "File (graph) id to operate on.")
	pf.Uint64Var(&c.cfg.Branch, "branch", c.cfg.Branch, "Branch to operate on.")
	pf.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&c.cfg.LogFormat, "log-format", c.cfg.LogFormat, "Log output format. Options: 'text' or 'json'.")
	pf.StringVarP(&c.cfg.Output, "output", "o", c.cfg.Output, "Result format. Options: 'json' or 'yaml'.")
	pf.StringVar(&c.cfg.Compression, "compression", c.cfg.Compression, "Message compression. Options: '' or 'zstd'.")
	pf.DurationVar(&c.cfg.StartupInterval, "startup-interval", c.cfg.StartupInterval, "Pause between attempts to reach the runtime.")
	pf.IntVar(&c.cfg.StartupMaxAttempts, "startup-max-attempts", c.cfg.StartupMaxAttempts, "Attempts to reach the runtime. 0 is unbounded.")
	pf.DurationVar(&c.cfg.StartupTimeout, "startup-timeout", c.cfg.StartupTimeout, "Total time to wait for the runtime. 0 is no limit.")
	pf.StringVar(&c.cfg.LaunchCommand, "launch-command", c.cfg.LaunchCommand, "Command that starts the runtime when it is not reachable.")

	root.AddCommand(
		c.startCommand(),
		c.commitCommand(),
		c.playCommand(),
		c.pauseCommand(),
		c.queryCommand(),
		c.branchesCommand(),
		c.branchCommand(),
		c.graphCommand(),
		c.graphsCommand(),
		c.eventsCommand(),
		c.workerCommand(),
	)
	for _, cmd := range root.Commands() {
		wrapArgs(cmd)
	}
	return root, nil
}

// wrapArgs turns positional argument errors into usage errors.
func wrapArgs(cmd *cobra.Command) {
	if args := cmd.Args; args != nil {
		cmd.Args = func(cmd *cobra.Command, a []string) error {
			if err := args(cmd, a); err != nil {
				return usageError(err)
			}
			return nil
		}
	}
	for _, sub := range cmd.Commands() {
		wrapArgs(sub)
	}
}

// withApp validates the configuration, builds an App and runs fn with it.
func (c *cli) withApp(fn func(ctx context.Context, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := app.NewConfig(c.cfg)
		if err != nil {
			return usageError(err)
		}
		slog.Debug("CLI parameter validation complete.", "command", cmd.Name())

		a, err := app.NewApp(c.opts.Out, c.opts.Err, cfg, c.opts.Runtime...)
		if err != nil {
			if errors.Is(err, runtime.ErrInvalidURL) {
				return usageError(err)
			}
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil {
				a.Logger().Debug("Closing runtime client failed.", "error", cerr)
			}
		}()
		return fn(cmd.Context(), a, args)
	}
}

// oneOf rejects values outside allowed.
func oneOf(flag, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return usageError(fmt.Errorf("invalid %s %q: must be one of %s", flag, value, strings.Join(allowed, ", ")))
}
