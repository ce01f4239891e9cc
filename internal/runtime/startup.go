package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/specialistvlad/chidori/internal/ctxlog"
	"google.golang.org/grpc/connectivity"
)

// StartupPolicy bounds how Start waits for the runtime.
type StartupPolicy struct {
	// Interval between connection attempts.
	Interval time.Duration
	// MaxAttempts caps the number of attempts. Zero means unbounded.
	MaxAttempts int
	// Timeout caps the total wait. Zero means no timeout.
	Timeout time.Duration
}

// DefaultStartupPolicy retries every second, forever.
func DefaultStartupPolicy() StartupPolicy {
	return StartupPolicy{Interval: time.Second}
}

// Launcher starts a runtime process. The returned Closer stops it.
type Launcher interface {
	Launch(ctx context.Context) (io.Closer, error)
}

// ExecLauncher runs the runtime as a child process.
type ExecLauncher struct {
	Command string
	Args    []string
	Stdout  io.Writer
	Stderr  io.Writer
}

// Launch starts the command without waiting for it to exit.
func (l ExecLauncher) Launch(ctx context.Context) (io.Closer, error) {
	cmd := exec.Command(l.Command, l.Args...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launching runtime %q: %w", l.Command, err)
	}
	ctxlog.FromContext(ctx).Info("Launched runtime process.", "command", l.Command, "pid", cmd.Process.Pid)
	return &process{cmd: cmd}, nil
}

type process struct {
	cmd *exec.Cmd
}

func (p *process) Close() error {
	if err := p.cmd.Process.Kill(); err != nil {
		return err
	}
	_ = p.cmd.Wait()
	return nil
}

// Start blocks until the runtime is reachable. When a Launcher is configured
// and the first attempt fails, the runtime is launched once. Failed attempts
// are logged and retried on the policy interval; they are not returned
// unless the attempt or time budget runs out.
func (c *Client) Start(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("url", c.url)
	policy := c.startup
	if policy.Interval <= 0 {
		policy.Interval = time.Second
	}

	parent := ctx
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, policy.Interval)
		err := c.probe(attemptCtx)
		cancel()
		if err == nil {
			logger.Info("Connected to runtime.", "attempts", attempt)
			return nil
		}
		logger.Warn("Error connecting to runtime, retrying.", "attempt", attempt, "error", err)

		if attempt == 1 && c.launcher != nil {
			if lerr := c.launch(ctx); lerr != nil {
				return lerr
			}
		}
		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", ErrStartupExhausted, attempt, err)
		}

		select {
		case <-ctx.Done():
			if parent.Err() != nil {
				return parent.Err()
			}
			return fmt.Errorf("%w within %s: %v", ErrStartupExhausted, policy.Timeout, err)
		case <-time.After(policy.Interval):
		}
	}
}

func (c *Client) launch(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.launched != nil {
		return nil
	}
	proc, err := c.launcher.Launch(ctx)
	if err != nil {
		return err
	}
	c.launched = proc
	return nil
}

// connReady asks the connection to connect and waits until it is ready,
// fails, or ctx ends. A connection left in TransientFailure by an earlier
// attempt is redialed right away rather than after its backoff.
func (c *Client) connReady(ctx context.Context) error {
	redial := c.conn.GetState() == connectivity.TransientFailure
	if redial {
		c.conn.ResetConnectBackoff()
	}
	c.conn.Connect()
	for {
		state := c.conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure:
			if !redial {
				return fmt.Errorf("connection to %s failed", c.target)
			}
		case connectivity.Shutdown:
			return fmt.Errorf("connection to %s is closed", c.target)
		}
		if !c.conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("connection to %s not ready: %w", c.target, ctx.Err())
		}
		redial = false
	}
}
