// Package socketio relays worker events to a socket.io service. Each event
// is emitted as a handlers.Request; the service answers with a response
// event carrying the same branch and counter:
//
//	{"branch": 0, "counter": 7, "changes": [{"path": ["text"], "value": "hi"}]}
//
// or, on failure, {"branch": 0, "counter": 7, "error": "..."}.
package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/specialistvlad/chidori/internal/ctxlog"
	"github.com/specialistvlad/chidori/internal/handlers"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/specialistvlad/chidori/internal/worker"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const (
	DefaultEmitEvent = "node_will_execute"
	DefaultOnEvent   = "node_result"
	DefaultTimeout   = 30 * time.Second

	connectTimeout = 15 * time.Second
)

// Module implements the handlers.Module interface for this package.
type Module struct {
	URL                string
	Namespace          string
	EmitEvent          string
	OnEvent            string
	Timeout            time.Duration
	InsecureSkipVerify bool
	// Types limits the handler to these custom node types; empty registers
	// it as the fallback.
	Types []string
}

type eventKey struct {
	branch  uint64
	counter uint64
}

type response struct {
	Branch  uint64            `json:"branch"`
	Counter uint64            `json:"counter"`
	Changes []handlers.Change `json:"changes"`
	Error   string            `json:"error,omitempty"`
}

// Handler keeps one connection open and matches response events to the
// events waiting for them.
type Handler struct {
	cfg Module

	mu      sync.Mutex
	io      *socket.Socket
	pending map[eventKey]chan response
}

// NewHandler returns a handler for cfg. It connects on first use.
func NewHandler(cfg Module) *Handler {
	if cfg.EmitEvent == "" {
		cfg.EmitEvent = DefaultEmitEvent
	}
	if cfg.OnEvent == "" {
		cfg.OnEvent = DefaultOnEvent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "/"
	}
	return &Handler{cfg: cfg, pending: make(map[eventKey]chan response)}
}

// Handle implements worker.Handler.
func (h *Handler) Handle(ctx context.Context, ev worker.Event) ([]value.ChangeValue, error) {
	logger := ctxlog.FromContext(ctx).With("url", h.cfg.URL, "emitEvent", h.cfg.EmitEvent, "onEvent", h.cfg.OnEvent)

	io, err := h.connect(ctx)
	if err != nil {
		return nil, err
	}

	key := eventKey{ev.Branch, ev.Counter}
	done := make(chan response, 1)
	h.mu.Lock()
	h.pending[key] = done
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, key)
		h.mu.Unlock()
	}()

	payload, err := toNative(handlers.NewRequest(ev))
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}
	logger.Debug("Emitting event.", "sid", io.Id())
	if err := io.Emit(h.cfg.EmitEvent, payload); err != nil {
		return nil, fmt.Errorf("emitting %q: %w", h.cfg.EmitEvent, err)
	}

	opCtx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()
	select {
	case <-opCtx.Done():
		return nil, fmt.Errorf("timed out after %v waiting for event '%s'", h.cfg.Timeout, h.cfg.OnEvent)
	case res := <-done:
		if res.Error != "" {
			return nil, fmt.Errorf("socket.io handler: %s", res.Error)
		}
		logger.Debug("Received response event.", "changes", len(res.Changes))
		return handlers.ChangeValues(ev.NodeName(), res.Changes), nil
	}
}

func (h *Handler) connect(ctx context.Context) (*socket.Socket, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.io != nil && h.io.Connected() {
		return h.io, nil
	}
	logger := ctxlog.FromContext(ctx).With("url", h.cfg.URL)
	if h.io != nil {
		// Stop the lost socket's manager from reconnecting alongside the new one.
		logger.Debug("Dropping disconnected socket.")
		h.io.Disconnect()
		h.io = nil
	}

	parsedURL, err := url.Parse(h.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		opts.SetPath(parsedURL.Path)
	}
	if h.cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(h.cfg.Namespace, opts)

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})
	io.On(types.EventName(h.cfg.OnEvent), h.dispatch)

	logger.Debug("Connecting to socket.io service.")
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(connectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", connectTimeout)
	}

	logger.Info("Connected to socket.io service.", "sid", io.Id())
	h.io = io
	return io, nil
}

func (h *Handler) dispatch(data ...any) {
	if len(data) == 0 {
		return
	}
	raw, err := json.Marshal(data[0])
	if err != nil {
		return
	}
	var res response
	if err := json.Unmarshal(raw, &res); err != nil {
		return
	}
	h.mu.Lock()
	done, ok := h.pending[eventKey{res.Branch, res.Counter}]
	h.mu.Unlock()
	if !ok {
		return
	}
	select {
	case done <- res:
	default:
	}
}

// Close disconnects from the service.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.io != nil {
		h.io.Disconnect()
		h.io = nil
	}
	return nil
}

func toNative(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Register registers the handler.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterFor(m.Types, NewHandler(*m))
}
