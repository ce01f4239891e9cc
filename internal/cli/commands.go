package cli

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/specialistvlad/chidori/internal/app"
	"github.com/specialistvlad/chidori/internal/handlers"
	"github.com/specialistvlad/chidori/modules/exec"
	"github.com/specialistvlad/chidori/modules/http_client"
	"github.com/specialistvlad/chidori/modules/print"
	"github.com/specialistvlad/chidori/modules/socketio"
	"github.com/spf13/cobra"
)

func (c *cli) startCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Wait for the runtime to become reachable, launching it if configured",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
			return a.Start(ctx)
		}),
	}
}

func (c *cli) commitCommand() *cobra.Command {
	var opts app.CommitOptions
	cmd := &cobra.Command{
		Use:   "commit <path>...",
		Short: "Load HCL manifests and merge their nodes into the file",
		Long: `Load every .hcl file under the given paths and merge the declared nodes
into the configured file and branch. Every declared node is resent, even
when the file already holds it; --skip-unchanged merges only when the
delta is not empty. Without --file-id a new file id is generated and
printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.withApp(func(ctx context.Context, a *app.App, args []string) error {
			_, err := a.Commit(ctx, args, opts)
			return err
		}),
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report what would change without merging")
	cmd.Flags().BoolVar(&opts.AllowCycles, "allow-cycles", false, "Commit even when run_when wiring forms a cycle")
	cmd.Flags().BoolVar(&opts.SkipUnchanged, "skip-unchanged", false, "Do not merge when the file already holds exactly these nodes")
	return cmd
}

func (c *cli) playCommand() *cobra.Command {
	var frame uint64
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Resume execution of the branch",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
			return a.Play(ctx, frame)
		}),
	}
	cmd.Flags().Uint64Var(&frame, "frame", 0, "Frame to resume from")
	return cmd
}

func (c *cli) pauseCommand() *cobra.Command {
	var frame uint64
	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause execution of the branch",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
			return a.Pause(ctx, frame)
		}),
	}
	cmd.Flags().Uint64Var(&frame, "frame", 0, "Frame to pause at")
	return cmd
}

func (c *cli) queryCommand() *cobra.Command {
	var opts app.QueryOptions
	cmd := &cobra.Command{
		Use:   "query [query]",
		Short: "Run a query against a frame of the branch",
		Long: `Run a query against a frame of the branch and print the values keyed by
path. With --node the query selecting the node's whole output is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: c.withApp(func(ctx context.Context, a *app.App, args []string) error {
			if len(args) == 1 {
				opts.Query = args[0]
			}
			if opts.Query == "" && opts.Node == "" {
				return usageError(errors.New("a query or --node is required"))
			}
			_, err := a.Query(ctx, opts)
			return err
		}),
	}
	cmd.Flags().StringVar(&opts.Node, "node", "", "Query the output of this node")
	cmd.Flags().Uint64Var(&opts.Frame, "frame", 0, "Frame to query")
	cmd.Flags().StringVar(&opts.Delimiter, "delimiter", "", "Delimiter joining result paths (default \":\")")
	return cmd
}

func (c *cli) branchesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "branches",
		Short: "List the branches of the file",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
			return a.Branches(ctx)
		}),
	}
}

func (c *cli) branchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Branch commands",
	}

	var divergesAt uint64
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Fork the branch at a counter",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
			return a.NewBranch(ctx, divergesAt)
		}),
	}
	newCmd.Flags().Uint64Var(&divergesAt, "diverges-at", 0, "Counter at which the new branch diverges")
	cmd.AddCommand(newCmd)
	return cmd
}

func (c *cli) graphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Graph commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show [path]...",
		Short: "Print the graph in DOT format",
		Long: `Print the graph in Graphviz DOT format. With paths the local manifests are
rendered; without, the file committed to the runtime.`,
		RunE: c.withApp(func(ctx context.Context, a *app.App, args []string) error {
			return a.GraphShow(ctx, args...)
		}),
	})
	return cmd
}

func (c *cli) graphsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "graphs",
		Short: "List the files registered with the runtime",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
			return a.Graphs(ctx)
		}),
	}
}

func (c *cli) eventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Stream the change events of the branch",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
			return a.Events(ctx)
		}),
	}
}

// workerFlags configures the handler module of the worker command.
type workerFlags struct {
	handler string
	types   []string

	command string
	args    []string
	timeout time.Duration

	url       string
	method    string
	headers   map[string]string
	namespace string
	emitEvent string
	onEvent   string
	insecure  bool
}

func (f *workerFlags) module(out io.Writer) (handlers.Module, error) {
	switch f.handler {
	case "print":
		return &print.Module{Types: f.types, Out: out}, nil
	case "exec":
		if f.command == "" {
			return nil, usageError(errors.New("--command is required with --handler exec"))
		}
		return &exec.Module{Command: f.command, Args: f.args, Types: f.types, Timeout: f.timeout}, nil
	case "http":
		if f.url == "" {
			return nil, usageError(errors.New("--url is required with --handler http"))
		}
		return &http_client.Module{URL: f.url, Method: f.method, Headers: f.headers, Timeout: f.timeout, Types: f.types}, nil
	case "socketio":
		if f.url == "" {
			return nil, usageError(errors.New("--url is required with --handler socketio"))
		}
		return &socketio.Module{
			URL:                f.url,
			Namespace:          f.namespace,
			EmitEvent:          f.emitEvent,
			OnEvent:            f.onEvent,
			Timeout:            f.timeout,
			InsecureSkipVerify: f.insecure,
			Types:              f.types,
		}, nil
	}
	return nil, oneOf("--handler", f.handler, "print", "exec", "http", "socketio")
}

func (c *cli) workerCommand() *cobra.Command {
	f := &workerFlags{}
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Serve custom node events of the file",
		Long: `Poll the runtime for custom node events of the file, claim them, run them
through the selected handler and push the results back. Without --types the
handler serves every custom node type.`,
		Args: cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, a *app.App, _ []string) error {
			mod, err := f.module(c.opts.Out)
			if err != nil {
				return err
			}
			return a.Worker(ctx, mod)
		}),
	}

	fl := cmd.Flags()
	fl.StringVar(&f.handler, "handler", "print", "Handler module. Options: 'print', 'exec', 'http', 'socketio'.")
	fl.StringSliceVar(&f.types, "types", nil, "Custom node types to serve (default all)")
	fl.StringVar(&f.command, "command", "", "exec: command to run per event")
	fl.StringArrayVar(&f.args, "arg", nil, "exec: argument for the command, repeatable")
	fl.DurationVar(&f.timeout, "timeout", 0, "Per-event timeout of the handler")
	fl.StringVar(&f.url, "url", "", "http, socketio: service URL")
	fl.StringVar(&f.method, "method", "POST", "http: request method")
	fl.StringToStringVar(&f.headers, "header", nil, "http: request header as key=value, repeatable")
	fl.StringVar(&f.namespace, "namespace", "", "socketio: namespace")
	fl.StringVar(&f.emitEvent, "emit-event", socketio.DefaultEmitEvent, "socketio: event carrying requests")
	fl.StringVar(&f.onEvent, "on-event", socketio.DefaultOnEvent, "socketio: event carrying results")
	fl.BoolVar(&f.insecure, "insecure", false, "socketio: skip TLS verification")

	fl.IntVar(&c.cfg.WorkerConcurrency, "concurrency", c.cfg.WorkerConcurrency, "Events handled at once")
	fl.DurationVar(&c.cfg.PollInterval, "poll-interval", c.cfg.PollInterval, "Pause after an empty poll")
	fl.StringVar(&c.cfg.Attribution, "attribution", c.cfg.Attribution, "Causal attribution of results. Options: 'event' or 'none'.")
	fl.IntVar(&c.cfg.HealthcheckPort, "healthcheck-port", c.cfg.HealthcheckPort, "Port for /health and /metrics. 0 is disabled.")
	return cmd
}
