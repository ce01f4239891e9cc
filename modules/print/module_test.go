package print

import (
	"bytes"
	"context"
	"testing"

	"github.com/specialistvlad/chidori/internal/handlers"
	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/specialistvlad/chidori/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrint(t *testing.T) {
	testCases := []struct {
		name   string
		inputs []value.ChangeValueWithCounter
		want   string
	}{
		{
			name: "no inputs",
			want: "B (branch 1, counter 4)\n      (null)\n",
		},
		{
			name: "sorted inputs",
			inputs: []value.ChangeValueWithCounter{{
				MonotonicCounter: 3,
				FilledValues: []value.ChangeValue{
					value.NewChangeValue([]string{"A", "text"}, value.String("hi"), 1),
					value.NewChangeValue([]string{"A", "count"}, value.Number(2), 1),
				},
			}},
			want: "B (branch 1, counter 4)\n      A:count = 2\n      A:text = \"hi\"\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			h := handlers.New().Load(&Module{Out: &out})
			ev := worker.Event{NodeWillExecuteOnBranch: runtime.NodeWillExecuteOnBranch{
				Branch:  1,
				Counter: 4,
				Node:    runtime.NodeWillExecute{SourceNode: "B", ChangeValuesUsedInExecution: tc.inputs},
			}}

			handler, ok := h.Lookup(ev)
			require.True(t, ok)
			changes, err := handler.Handle(context.Background(), ev)
			require.NoError(t, err)
			assert.Empty(t, changes)
			assert.Equal(t, tc.want, out.String())
		})
	}
}
