// Package exec runs a command for every worker event. The command receives
// a handlers.Request as JSON on stdin and writes a JSON array of
// handlers.Change to stdout:
//
//	[{"path": ["text"], "value": "hello"}]
//
// Output that is almost JSON, e.g. with single quotes or trailing commas,
// is repaired before it is rejected.
package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	osexec "os/exec"
	"strings"
	"time"

	"github.com/specialistvlad/chidori/internal/ctxlog"
	"github.com/specialistvlad/chidori/internal/handlers"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/specialistvlad/chidori/internal/worker"
)

// Module implements the handlers.Module interface for this package.
type Module struct {
	Command string
	Args    []string
	// Types limits the handler to these custom node types; empty registers
	// it as the fallback.
	Types []string
	// Timeout bounds each run; zero means no limit beyond the event context.
	Timeout time.Duration
}

// Handler runs one command per event.
type Handler struct {
	command string
	args    []string
	timeout time.Duration
}

// NewHandler returns a handler running command with args.
func NewHandler(command string, args []string, timeout time.Duration) *Handler {
	return &Handler{command: command, args: args, timeout: timeout}
}

// Handle implements worker.Handler.
func (h *Handler) Handle(ctx context.Context, ev worker.Event) ([]value.ChangeValue, error) {
	logger := ctxlog.FromContext(ctx).With("command", h.command)

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	input, err := json.Marshal(handlers.NewRequest(ev))
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := osexec.CommandContext(ctx, h.command, h.args...)
	cmd.Stdin = bytes.NewReader(append(input, '\n'))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	logger.Debug("Running command.")
	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("command %q failed: %w: %s", h.command, err, strings.TrimSpace(stderr.String()))
	}
	logger.Debug("Command finished.", "duration", time.Since(start), "stdoutBytes", stdout.Len())

	changes, err := handlers.ParseChanges(stdout.String())
	if err != nil {
		return nil, fmt.Errorf("command %q: %w", h.command, err)
	}
	return handlers.ChangeValues(ev.NodeName(), changes), nil
}

// Register registers the handler.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterFor(m.Types, NewHandler(m.Command, m.Args, m.Timeout))
}
