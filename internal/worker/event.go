package worker

import (
	"context"

	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/specialistvlad/chidori/internal/value"
)

// Event is one unit of work handed out by the runtime.
type Event struct {
	runtime.NodeWillExecuteOnBranch
}

// NodeName is the node about to execute.
func (e Event) NodeName() string { return e.Node.SourceNode }

// TypeName is the custom node type, or "" for other flavors.
func (e Event) TypeName() string {
	if e.CustomNodeTypeName == nil {
		return ""
	}
	return *e.CustomNodeTypeName
}

// Inputs returns the change values the execution was computed from.
func (e Event) Inputs() []value.ChangeValueWithCounter {
	return e.Node.ChangeValuesUsedInExecution
}

// Handler computes the output of a node for one event.
type Handler interface {
	Handle(ctx context.Context, ev Event) ([]value.ChangeValue, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) ([]value.ChangeValue, error)

func (f HandlerFunc) Handle(ctx context.Context, ev Event) ([]value.ChangeValue, error) {
	return f(ctx, ev)
}

// Dispatcher finds the handler for an event.
type Dispatcher interface {
	Lookup(ev Event) (Handler, bool)
}
