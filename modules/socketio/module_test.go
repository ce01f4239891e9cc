package socketio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/specialistvlad/chidori/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	server "github.com/zishang520/socket.io/v2/socket"
)

// newService answers every emitted event with reply(request).
func newService(t *testing.T, reply func(req map[string]any) map[string]any) string {
	t.Helper()
	io := server.NewServer(nil, nil)
	io.On("connection", func(clients ...any) {
		client := clients[0].(*server.Socket)
		client.On(DefaultEmitEvent, func(datas ...any) {
			req, _ := datas[0].(map[string]any)
			if res := reply(req); res != nil {
				client.Emit(DefaultOnEvent, res)
			}
		})
	})
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", io.ServeHandler(nil))
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		io.Close(nil)
		ts.Close()
	})
	return ts.URL
}

func event(counter uint64) worker.Event {
	return worker.Event{NodeWillExecuteOnBranch: runtime.NodeWillExecuteOnBranch{
		Branch:  1,
		Counter: counter,
		Node:    runtime.NodeWillExecute{SourceNode: "B"},
	}}
}

func TestHandler_RoundTrip(t *testing.T) {
	url := newService(t, func(req map[string]any) map[string]any {
		return map[string]any{
			"branch":  req["branch"],
			"counter": req["counter"],
			"changes": []any{
				map[string]any{"path": []any{"echo"}, "value": req["node"]},
			},
		}
	})

	h := NewHandler(Module{URL: url, Timeout: 5 * time.Second})
	t.Cleanup(func() { _ = h.Close() })

	for _, counter := range []uint64{3, 4} {
		changes, err := h.Handle(context.Background(), event(counter))
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, "B:echo", changes[0].Path.String())
		assert.True(t, value.String("B").Equal(changes[0].Value))
	}
}

func TestHandler_ErrorResponse(t *testing.T) {
	url := newService(t, func(req map[string]any) map[string]any {
		return map[string]any{"branch": req["branch"], "counter": req["counter"], "error": "model unavailable"}
	})

	h := NewHandler(Module{URL: url, Timeout: 5 * time.Second})
	t.Cleanup(func() { _ = h.Close() })

	_, err := h.Handle(context.Background(), event(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestHandler_Timeout(t *testing.T) {
	url := newService(t, func(map[string]any) map[string]any { return nil })

	h := NewHandler(Module{URL: url, Timeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = h.Close() })

	_, err := h.Handle(context.Background(), event(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestNewHandler_Defaults(t *testing.T) {
	h := NewHandler(Module{URL: "http://localhost:1"})
	assert.Equal(t, DefaultEmitEvent, h.cfg.EmitEvent)
	assert.Equal(t, DefaultOnEvent, h.cfg.OnEvent)
	assert.Equal(t, DefaultTimeout, h.cfg.Timeout)
	assert.Equal(t, "/", h.cfg.Namespace)
}

func TestHandler_ReconnectDropsLostSocket(t *testing.T) {
	var (
		mu      sync.Mutex
		clients []*server.Socket
		active  atomic.Int32
	)
	io := server.NewServer(nil, nil)
	io.On("connection", func(args ...any) {
		client := args[0].(*server.Socket)
		active.Add(1)
		mu.Lock()
		clients = append(clients, client)
		mu.Unlock()
		client.On("disconnect", func(...any) { active.Add(-1) })
		client.On(DefaultEmitEvent, func(datas ...any) {
			req, _ := datas[0].(map[string]any)
			client.Emit(DefaultOnEvent, map[string]any{"branch": req["branch"], "counter": req["counter"]})
		})
	})
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", io.ServeHandler(nil))
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		io.Close(nil)
		ts.Close()
	})

	h := NewHandler(Module{URL: ts.URL, Timeout: 5 * time.Second})
	t.Cleanup(func() { _ = h.Close() })

	_, err := h.Handle(context.Background(), event(1))
	require.NoError(t, err)

	// Drop the transport; the client's manager would reconnect on its own.
	mu.Lock()
	clients[0].Disconnect(true)
	mu.Unlock()
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return !h.io.Connected()
	}, 5*time.Second, 10*time.Millisecond)

	_, err = h.Handle(context.Background(), event(2))
	require.NoError(t, err)

	assert.Never(t, func() bool { return active.Load() > 1 }, 2500*time.Millisecond, 50*time.Millisecond,
		"only the replacement socket should stay connected")
	mu.Lock()
	assert.Len(t, clients, 2)
	mu.Unlock()
}
