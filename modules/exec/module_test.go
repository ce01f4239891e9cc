package exec

import (
	"context"
	"testing"
	"time"

	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/specialistvlad/chidori/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event() worker.Event {
	return worker.Event{NodeWillExecuteOnBranch: runtime.NodeWillExecuteOnBranch{
		Branch:  0,
		Counter: 5,
		Node:    runtime.NodeWillExecute{SourceNode: "B"},
	}}
}

func TestHandler(t *testing.T) {
	testCases := []struct {
		name    string
		script  string
		want    map[string]value.SerializedValue
		wantErr string
	}{
		{
			name:   "valid output",
			script: `echo '[{"path":["text"],"value":"hello"},{"path":["n"],"value":3}]'`,
			want: map[string]value.SerializedValue{
				"B:text": value.String("hello"),
				"B:n":    value.Number(3),
			},
		},
		{
			name:   "reads the event from stdin",
			script: `grep -q '"counter":5' && echo '[{"path":[],"value":true}]'`,
			want:   map[string]value.SerializedValue{"B": value.Bool(true)},
		},
		{
			name:   "repairs almost json",
			script: `echo "[{path: ['text'], value: 'hi',},]"`,
			want:   map[string]value.SerializedValue{"B:text": value.String("hi")},
		},
		{
			name:   "empty output",
			script: `true`,
			want:   map[string]value.SerializedValue{},
		},
		{
			name:    "failing command",
			script:  `echo oops >&2; exit 3`,
			wantErr: "oops",
		},
		{
			name:    "not a list",
			script:  `echo '{"path":["text"]}'`,
			wantErr: "not a list of changes",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler("sh", []string{"-c", tc.script}, 10*time.Second)
			changes, err := h.Handle(context.Background(), event())
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)

			got := make(map[string]value.SerializedValue, len(changes))
			for _, c := range changes {
				got[c.Path.String()] = c.Value
			}
			require.Len(t, got, len(tc.want))
			for k, v := range tc.want {
				assert.True(t, v.Equal(got[k]), "value at %s", k)
			}
		})
	}
}

func TestHandler_Timeout(t *testing.T) {
	h := NewHandler("sh", []string{"-c", "exec sleep 5"}, 50*time.Millisecond)
	_, err := h.Handle(context.Background(), event())
	assert.Error(t, err)
}
