// Package handlers maps worker events to the handlers that compute them.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/specialistvlad/chidori/internal/worker"
)

// Module is implemented by every handler module.
type Module interface {
	Register(h *Handlers)
}

// Handlers holds all the registered handlers. Lookup prefers a handler for
// the event's custom node type, then one for its node name, then the
// fallback.
type Handlers struct {
	byType   map[string]worker.Handler
	byNode   map[string]worker.Handler
	fallback worker.Handler
}

// New creates an empty registry.
func New() *Handlers {
	return &Handlers{
		byType: make(map[string]worker.Handler),
		byNode: make(map[string]worker.Handler),
	}
}

// Load registers every module.
func (h *Handlers) Load(modules ...Module) *Handlers {
	for _, m := range modules {
		m.Register(h)
	}
	return h
}

// RegisterType registers a handler for a custom node type.
func (h *Handlers) RegisterType(typeName string, handler worker.Handler) {
	if _, exists := h.byType[typeName]; exists {
		panic(fmt.Sprintf("handler for node type '%s' already registered", typeName))
	}
	slog.Debug("Registering handler.", "type", typeName)
	h.byType[typeName] = handler
}

// RegisterNode registers a handler for a single node by name.
func (h *Handlers) RegisterNode(nodeName string, handler worker.Handler) {
	if _, exists := h.byNode[nodeName]; exists {
		panic(fmt.Sprintf("handler for node '%s' already registered", nodeName))
	}
	slog.Debug("Registering handler.", "node", nodeName)
	h.byNode[nodeName] = handler
}

// RegisterFallback registers the handler used when nothing else matches.
func (h *Handlers) RegisterFallback(handler worker.Handler) {
	if h.fallback != nil {
		panic("fallback handler already registered")
	}
	slog.Debug("Registering fallback handler.")
	h.fallback = handler
}

// Lookup implements worker.Dispatcher.
func (h *Handlers) Lookup(ev worker.Event) (worker.Handler, bool) {
	if t := ev.TypeName(); t != "" {
		if handler, ok := h.byType[t]; ok {
			return handler, true
		}
	}
	if handler, ok := h.byNode[ev.NodeName()]; ok {
		return handler, true
	}
	if h.fallback != nil {
		return h.fallback, true
	}
	return nil, false
}

// Types returns the registered node types in sorted order.
func (h *Handlers) Types() []string {
	out := make([]string, 0, len(h.byType))
	for t := range h.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// RegisterFor registers handler for each type, or as the fallback when
// types is empty. Modules use it to honor their Types option.
func (h *Handlers) RegisterFor(types []string, handler worker.Handler) {
	if len(types) == 0 {
		h.RegisterFallback(handler)
		return
	}
	for _, t := range types {
		h.RegisterType(t, handler)
	}
}

// Close closes every registered handler that holds resources.
func (h *Handlers) Close() error {
	seen := make(map[io.Closer]bool)
	var errs []error
	closeOne := func(handler worker.Handler) {
		c, ok := handler.(io.Closer)
		if !ok || seen[c] {
			return
		}
		seen[c] = true
		errs = append(errs, c.Close())
	}
	for _, handler := range h.byType {
		closeOne(handler)
	}
	for _, handler := range h.byNode {
		closeOne(handler)
	}
	closeOne(h.fallback)
	return errors.Join(errs...)
}
