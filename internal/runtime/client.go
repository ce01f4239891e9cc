package runtime

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/chidori/internal/ctxlog"
	"github.com/specialistvlad/chidori/internal/node"
	"github.com/specialistvlad/chidori/internal/value"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Client talks to one runtime over a single shared connection.
type Client struct {
	url    string
	target string
	conn   *grpc.ClientConn

	startup  StartupPolicy
	launcher Launcher
	probe    func(ctx context.Context) error

	mu       sync.Mutex
	launched io.Closer
}

type options struct {
	dialer      func(context.Context, string) (net.Conn, error)
	compression string
	startup     StartupPolicy
	launcher    Launcher
	probe       func(ctx context.Context) error
}

// Option configures a Client.
type Option func(*options)

// WithDialer replaces the network dialer, e.g. with an in-memory listener.
func WithDialer(d func(context.Context, string) (net.Conn, error)) Option {
	return func(o *options) { o.dialer = d }
}

// WithCompression enables a registered message compressor such as "zstd".
// An empty name disables compression.
func WithCompression(name string) Option {
	return func(o *options) { o.compression = name }
}

// WithStartup overrides the startup retry policy.
func WithStartup(p StartupPolicy) Option {
	return func(o *options) { o.startup = p }
}

// WithLauncher makes Start launch the runtime when it is not reachable.
func WithLauncher(l Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithProbe replaces the reachability check used by Start.
func WithProbe(p func(ctx context.Context) error) Option {
	return func(o *options) { o.probe = p }
}

// New validates rawURL and prepares a client. It performs no network I/O.
func New(rawURL string, opts ...Option) (*Client, error) {
	if !strings.Contains(rawURL, "://") {
		return nil, fmt.Errorf("%w: %q must include a scheme, e.g. http://localhost:9800", ErrInvalidURL, rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURL, rawURL)
	}

	o := options{startup: DefaultStartupPolicy()}
	for _, opt := range opts {
		opt(&o)
	}

	var creds credentials.TransportCredentials
	switch u.Scheme {
	case "http", "grpc":
		creds = insecure.NewCredentials()
	case "https", "grpcs":
		creds = credentials.NewTLS(&tls.Config{ServerName: u.Hostname()})
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	callOpts := []grpc.CallOption{grpc.CallContentSubtype(CodecName)}
	if o.compression != "" {
		callOpts = append(callOpts, grpc.UseCompressor(o.compression))
	}
	interval := o.startup.Interval
	if interval <= 0 {
		interval = time.Second
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(callOpts...),
		// Reconnects follow the startup interval instead of growing.
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  interval,
				Multiplier: 1,
				MaxDelay:   interval,
			},
			MinConnectTimeout: 20 * time.Second,
		}),
	}

	target := u.Host
	if o.dialer != nil {
		target = "passthrough:///" + u.Host
		dialOpts = append(dialOpts, grpc.WithContextDialer(o.dialer))
	}

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	c := &Client{
		url:      rawURL,
		target:   target,
		conn:     conn,
		startup:  o.startup,
		launcher: o.launcher,
		probe:    o.probe,
	}
	if c.probe == nil {
		c.probe = c.connReady
	}
	return c, nil
}

// URL returns the URL the client was created with.
func (c *Client) URL() string { return c.url }

// Close releases the connection and stops a runtime launched by Start.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.mu.Lock()
	launched := c.launched
	c.launched = nil
	c.mu.Unlock()
	if launched != nil {
		if cerr := launched.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if err := c.conn.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		return wrapErr(method, err)
	}
	return nil
}

// Play resumes execution of a branch at a frame.
func (c *Client) Play(ctx context.Context, fileID string, branch, frame uint64) (*ExecutionStatus, error) {
	ctxlog.FromContext(ctx).Debug("Playing branch.", "fileID", fileID, "branch", branch, "frame", frame)
	resp := new(ExecutionStatus)
	if err := c.invoke(ctx, methodPlay, &RequestAtFrame{ID: fileID, Branch: branch, Frame: frame}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Pause halts execution of a branch at a frame.
func (c *Client) Pause(ctx context.Context, fileID string, branch, frame uint64) (*ExecutionStatus, error) {
	ctxlog.FromContext(ctx).Debug("Pausing branch.", "fileID", fileID, "branch", branch, "frame", frame)
	resp := new(ExecutionStatus)
	if err := c.invoke(ctx, methodPause, &RequestAtFrame{ID: fileID, Branch: branch, Frame: frame}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Query runs query text against a frame on a branch.
func (c *Client) Query(ctx context.Context, fileID string, branch, frame uint64, query string) (*QueryAtFrameResponse, error) {
	ctxlog.FromContext(ctx).Debug("Running query.", "fileID", fileID, "branch", branch, "frame", frame, "query", query)
	resp := new(QueryAtFrameResponse)
	req := &QueryAtFrame{ID: fileID, Query: node.NewQuery(query), Branch: branch, Frame: frame}
	if err := c.invoke(ctx, methodRunQuery, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListBranches returns the branch descriptors of a file.
func (c *Client) ListBranches(ctx context.Context, fileID string) (*ListBranchesRes, error) {
	resp := new(ListBranchesRes)
	if err := c.invoke(ctx, methodListBranches, &RequestListBranches{ID: fileID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// NewBranch forks sourceBranch at the given counter.
func (c *Client) NewBranch(ctx context.Context, fileID string, sourceBranch, divergesAt uint64) (*ExecutionStatus, error) {
	ctxlog.FromContext(ctx).Debug("Creating branch.", "fileID", fileID, "source", sourceBranch, "divergesAt", divergesAt)
	resp := new(ExecutionStatus)
	req := &RequestNewBranch{ID: fileID, SourceBranchID: sourceBranch, DivergesAtCounter: divergesAt}
	if err := c.invoke(ctx, methodCreateBranch, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CurrentFileState returns the File as the runtime currently holds it.
func (c *Client) CurrentFileState(ctx context.Context, fileID string, branch uint64) (*File, error) {
	resp := new(File)
	if err := c.invoke(ctx, methodCurrentFileState, &RequestOnlyID{ID: fileID, Branch: branch}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Merge submits file to be merged into a branch.
func (c *Client) Merge(ctx context.Context, fileID string, file File, branch uint64) (*ExecutionStatus, error) {
	ctxlog.FromContext(ctx).Debug("Merging file.", "fileID", fileID, "branch", branch, "nodes", len(file.Nodes))
	resp := new(ExecutionStatus)
	if err := c.invoke(ctx, methodMerge, &RequestFileMerge{ID: fileID, File: file, Branch: branch}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// PollEvents performs one pull of pending custom-node work.
func (c *Client) PollEvents(ctx context.Context, fileID string) (*RespondPollNodeWillExecuteEvents, error) {
	resp := new(RespondPollNodeWillExecuteEvents)
	if err := c.invoke(ctx, methodPollEvents, &FilteredPollNodeWillExecuteEventsRequest{ID: fileID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// AckEvent claims the event identified by (branch, counter).
func (c *Client) AckEvent(ctx context.Context, fileID string, branch, counter uint64) (*ExecutionStatus, error) {
	resp := new(ExecutionStatus)
	req := &RequestAckNodeWillExecuteEvent{ID: fileID, Branch: branch, Counter: counter}
	if err := c.invoke(ctx, methodAckEvent, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// PushWorkerEvent delivers a worker's result.
func (c *Client) PushWorkerEvent(ctx context.Context, ev *FileAddressedChangeValueWithCounter) (*ExecutionStatus, error) {
	resp := new(ExecutionStatus)
	if err := c.invoke(ctx, methodPushWorkerEvent, ev, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListRegisteredGraphs streams the identifiers of graphs known to the runtime.
func (c *Client) ListRegisteredGraphs(ctx context.Context) (*Stream[Empty], error) {
	return openStream[Empty](ctx, c, methodListRegisteredGraphs, &Empty{})
}

// ListChangeEvents streams the change history of a branch in order.
func (c *Client) ListChangeEvents(ctx context.Context, fileID string, branch uint64) (*Stream[value.ChangeValueWithCounter], error) {
	return openStream[value.ChangeValueWithCounter](ctx, c, methodListChangeEvents, &RequestOnlyID{ID: fileID, Branch: branch})
}
