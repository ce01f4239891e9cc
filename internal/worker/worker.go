package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/specialistvlad/chidori/internal/address"
	"github.com/specialistvlad/chidori/internal/ctxlog"
	"github.com/specialistvlad/chidori/internal/node"
	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/specialistvlad/chidori/internal/schema"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
)

// Worker pulls events for a session and runs them through handlers.
type Worker struct {
	Session  *Session
	Handlers Dispatcher
	// Concurrency bounds the handlers running at once; zero or less means 1.
	Concurrency int
	// Attribution defaults to AttributeEvent.
	Attribution Attribution

	schemas map[string]cty.Type
}

// LoadSchemas remembers the output schema of every node in file so that
// handler output can be checked before it is pushed.
func (w *Worker) LoadSchemas(file runtime.File) error {
	schemas := make(map[string]cty.Type, len(file.Nodes))
	var errs []error
	for _, it := range file.Nodes {
		ind, err := node.Derive(it)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		schemas[ind.Name] = ind.OutputType
	}
	w.schemas = schemas
	return errors.Join(errs...)
}

// Run processes events until ctx is done or a poll fails. Handler failures
// are logged and counted; they do not stop the loop. Run waits for running
// handlers before returning.
func (w *Worker) Run(ctx context.Context) error {
	ctx, logger := ctxlog.With(ctx, "fileID", w.Session.FileID())

	limit := w.Concurrency
	if limit <= 0 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	logger.Info("Worker started.", "concurrency", limit)
	events := w.Session.Events(ctx)
	defer events.Close()

	for events.Next() {
		ev := events.Event()
		evCtx, evLogger := ctxlog.With(ctx, "branch", ev.Branch, "counter", ev.Counter, "node", ev.NodeName())

		h, ok := w.Handlers.Lookup(ev)
		if !ok {
			evLogger.Debug("No handler for event, leaving it unclaimed.", "type", ev.TypeName())
			w.Session.Tracker().Release(ev.Branch, ev.Counter)
			continue
		}
		if err := w.Session.Acknowledge(ctx, ev.Branch, ev.Counter); err != nil {
			evLogger.Warn("Could not claim event.", "error", err)
			continue
		}

		g.Go(func() error {
			w.handle(evCtx, h, ev)
			return nil
		})
	}
	_ = g.Wait()

	if err := events.Err(); err != nil {
		logger.Error("Worker stopped.", "error", err)
		return err
	}
	logger.Info("Worker stopped.")
	return nil
}

func (w *Worker) handle(ctx context.Context, h Handler, ev Event) {
	logger := ctxlog.FromContext(ctx)

	timer := prometheus.NewTimer(handlerDuration.WithLabelValues(ev.NodeName()))
	changes, err := h.Handle(ctx, ev)
	timer.ObserveDuration()
	if err != nil {
		logger.Error("Handler failed.", "error", err)
		responses.WithLabelValues(resultHandlerError).Inc()
		w.Session.Tracker().Release(ev.Branch, ev.Counter)
		return
	}

	if err := w.conform(ev.NodeName(), changes); err != nil {
		logger.Error("Handler output does not match the node's schema.", "error", err)
		responses.WithLabelValues(resultSchemaError).Inc()
		w.Session.Tracker().Release(ev.Branch, ev.Counter)
		return
	}

	attribution := w.Attribution
	if attribution == "" {
		attribution = AttributeEvent
	}
	if _, err := w.Session.Respond(ctx, ev.Branch, ev.Counter, ev.NodeName(), changes, attribution.causality(ev)); err != nil {
		logger.Error("Could not push response.", "error", err)
		return
	}
	logger.Info("Event handled.", "changes", len(changes))
}

// conform checks each change under the node's own path against the part of
// its output schema it addresses. Nodes without a loaded schema, or with
// an empty one, pass.
func (w *Worker) conform(nodeName string, changes []value.ChangeValue) error {
	ty, ok := w.schemas[nodeName]
	if !ok || ty.Equals(cty.EmptyObject) {
		return nil
	}
	root := address.New(nodeName)
	for _, ch := range changes {
		if !ch.Path.HasPrefix(root) {
			continue
		}
		segs := ch.Path.Segments()[1:]
		at, ok := schema.TypeAt(ty, segs)
		if !ok {
			return fmt.Errorf("%w: %s is not part of the output of %q", schema.ErrSchema, ch.Path, nodeName)
		}
		if err := schema.Conform(at, ch.Value); err != nil {
			return fmt.Errorf("%s: %w", ch.Path, err)
		}
	}
	return nil
}
