// Package http_client posts every worker event to an HTTP endpoint. The
// body is a handlers.Request as JSON; a 2xx response body is read as a JSON
// array of handlers.Change, the same format the exec module reads from
// stdout. Any other status fails the event with the response body.
package http_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/specialistvlad/chidori/internal/ctxlog"
	"github.com/specialistvlad/chidori/internal/handlers"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/specialistvlad/chidori/internal/worker"
)

// DefaultTimeout bounds one request when Module.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// Module implements the handlers.Module interface for this package.
type Module struct {
	URL string
	// Method defaults to POST.
	Method  string
	Headers map[string]string
	Timeout time.Duration
	// Types limits the handler to these custom node types; empty registers
	// it as the fallback.
	Types []string
}

// Handler sends one request per event over a shared, pooled client.
type Handler struct {
	url     string
	method  string
	headers map[string]string
	client  *http.Client
}

// NewHandler returns a handler for cfg.
func NewHandler(cfg Module) *Handler {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}
	return &Handler{
		url:     cfg.URL,
		method:  method,
		headers: cfg.Headers,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Handle implements worker.Handler.
func (h *Handler) Handle(ctx context.Context, ev worker.Event) ([]value.ChangeValue, error) {
	logger := ctxlog.FromContext(ctx)

	body, err := json.Marshal(handlers.NewRequest(ev))
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, h.method, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	logger.Debug("Making HTTP request", "method", h.method, "url", h.url)
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	logger.Debug("Received HTTP response", "status", resp.Status, "bytes", len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: %s: %s", h.method, h.url, resp.Status, strings.TrimSpace(string(data)))
	}
	changes, err := handlers.ParseChanges(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", h.method, h.url, err)
	}
	return handlers.ChangeValues(ev.NodeName(), changes), nil
}

// Close drops idle connections.
func (h *Handler) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// Register registers the handler.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterFor(m.Types, NewHandler(*m))
}
