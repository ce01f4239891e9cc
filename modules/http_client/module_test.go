package http_client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/specialistvlad/chidori/internal/handlers"
	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/specialistvlad/chidori/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event() worker.Event {
	typeName := "summarize"
	return worker.Event{NodeWillExecuteOnBranch: runtime.NodeWillExecuteOnBranch{
		Branch:             1,
		Counter:            9,
		CustomNodeTypeName: &typeName,
		Node:               runtime.NodeWillExecute{SourceNode: "B"},
	}}
}

func TestHandler_RoundTrip(t *testing.T) {
	t.Parallel()

	var got handlers.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, `[{"path":["summary"],"value":"short"}]`)
	}))
	defer srv.Close()

	h := NewHandler(Module{URL: srv.URL, Headers: map[string]string{"X-Token": "secret"}})
	defer h.Close()

	changes, err := h.Handle(context.Background(), event())
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, "B:summary", changes[0].Path.String())
	assert.True(t, value.String("short").Equal(changes[0].Value))
	assert.Equal(t, handlers.Request{Branch: 1, Counter: 9, Node: "B", Type: "summarize", Inputs: []value.ChangeValueWithCounter{}}, got)
}

func TestHandler_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "model offline", wantErr: "model offline"},
		{name: "not a list", status: http.StatusOK, body: `{"summary":"short"}`, wantErr: "not a list of changes"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := NewHandler(Module{URL: srv.URL}).Handle(context.Background(), event())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestHandler_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHandler(Module{URL: srv.URL, Timeout: 50 * time.Millisecond}).Handle(context.Background(), event())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute request")
}

func TestModule_Register(t *testing.T) {
	t.Parallel()

	h := handlers.New().Load(&Module{URL: "http://localhost", Types: []string{"summarize"}})
	_, ok := h.Lookup(event())
	assert.True(t, ok)
	assert.Equal(t, []string{"summarize"}, h.Types())
	assert.NoError(t, h.Close())
}
