package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/specialistvlad/chidori/internal/ctxlog"
	"github.com/specialistvlad/chidori/internal/handlers"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/specialistvlad/chidori/internal/worker"
)

// Module implements the handlers.Module interface for this package.
type Module struct {
	// Types limits the handler to these custom node types; empty registers
	// it as the fallback.
	Types []string
	// Out receives the printed events; nil means stdout.
	Out io.Writer
}

// Handler logs each event and prints the values it was computed from. It
// produces no changes.
type Handler struct {
	out io.Writer
}

// Handle implements worker.Handler.
func (h *Handler) Handle(ctx context.Context, ev worker.Event) ([]value.ChangeValue, error) {
	ctxlog.FromContext(ctx).Info("Printing event.", "inputs", len(ev.Inputs()))

	fmt.Fprintf(h.out, "%s (branch %d, counter %d)\n", ev.NodeName(), ev.Branch, ev.Counter)
	inputs := make(map[string]value.SerializedValue)
	for _, in := range ev.Inputs() {
		for _, ch := range in.FilledValues {
			inputs[ch.Path.String()] = ch.Value
		}
	}
	if len(inputs) == 0 {
		fmt.Fprintln(h.out, "      (null)")
		return nil, nil
	}

	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data, err := inputs[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(h.out, "      %s = %s\n", k, data)
	}
	return nil, nil
}

// Register registers the handler.
func (m *Module) Register(h *handlers.Handlers) {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	h.RegisterFor(m.Types, &Handler{out: out})
}
