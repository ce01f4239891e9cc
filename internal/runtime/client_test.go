package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/chidori/internal/address"
	"github.com/specialistvlad/chidori/internal/node"
	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/specialistvlad/chidori/internal/testutil"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNew_URLValidation(t *testing.T) {
	testCases := []struct {
		name string
		url  string
		ok   bool
	}{
		{name: "plaintext", url: "http://localhost:9800", ok: true},
		{name: "grpc scheme", url: "grpc://runtime:9800", ok: true},
		{name: "tls", url: "https://runtime.example.com", ok: true},
		{name: "missing scheme separator", url: "localhost:9800"},
		{name: "empty", url: ""},
		{name: "unsupported scheme", url: "ftp://runtime:21"},
		{name: "no host", url: "http://"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := runtime.New(tc.url)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.url, c.URL())
				require.NoError(t, c.Close())
				return
			}
			assert.ErrorIs(t, err, runtime.ErrInvalidURL)
			assert.Nil(t, c)
		})
	}
}

func TestClient_PlayPause(t *testing.T) {
	fake := testutil.NewFakeRuntime()
	client := fake.Serve(t)
	ctx := context.Background()

	st, err := client.Play(ctx, "file-1", 2, 7)
	require.NoError(t, err)
	assert.Equal(t, "file-1", st.ID)
	assert.Equal(t, uint64(2), st.Branch)

	_, err = client.Pause(ctx, "file-1", 2, 9)
	require.NoError(t, err)

	fake.Snapshot(func(f *testutil.FakeRuntime) {
		assert.Equal(t, []runtime.RequestAtFrame{{ID: "file-1", Branch: 2, Frame: 7}}, f.Plays)
		assert.Equal(t, []runtime.RequestAtFrame{{ID: "file-1", Branch: 2, Frame: 9}}, f.Pauses)
	})
}

func TestClient_Query(t *testing.T) {
	fake := testutil.NewFakeRuntime()
	fake.QueryValues = []runtime.WrappedChangeValue{
		{MonotonicCounter: 1, ChangeValue: value.NewChangeValue([]string{"A", "text"}, value.String("hi"), 0)},
		{MonotonicCounter: 2, ChangeValue: value.NewChangeValue([]string{"A", "n"}, value.Number(3), 0)},
	}
	client := fake.Serve(t)

	resp, err := client.Query(context.Background(), "f", 2, 5, "query A { A { n text } }")
	require.NoError(t, err)

	m, err := resp.Map(address.DefaultDelimiter)
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.True(t, value.String("hi").Equal(m["A:text"]))
	assert.True(t, value.Number(3).Equal(m["A:n"]))

	fake.Snapshot(func(f *testutil.FakeRuntime) {
		require.Len(t, f.Queries, 1)
		assert.Equal(t, "f", f.Queries[0].ID)
		assert.Equal(t, uint64(2), f.Queries[0].Branch)
		assert.Equal(t, uint64(5), f.Queries[0].Frame)
		assert.Equal(t, "query A { A { n text } }", f.Queries[0].Query.String())
	})
}

func TestQueryAtFrameResponse_MapDuplicate(t *testing.T) {
	resp := &runtime.QueryAtFrameResponse{Values: []runtime.WrappedChangeValue{
		{ChangeValue: value.NewChangeValue([]string{"a", "b"}, value.Number(1), 0)},
		{ChangeValue: value.NewChangeValue([]string{"a:b"}, value.Number(2), 0)},
	}}
	_, err := resp.Map(":")
	assert.ErrorIs(t, err, runtime.ErrDuplicateKey)
	assert.ErrorContains(t, err, `"a:b"`)

	m, err := resp.Map("/")
	require.NoError(t, err)
	assert.Len(t, m, 2)
}

func TestClient_MergeAndFileState(t *testing.T) {
	fake := testutil.NewFakeRuntime()
	client := fake.Serve(t)
	ctx := context.Background()

	it, err := node.NewCustom(node.CustomOpts{Name: "B", TypeName: "t", Queries: []string{"None"}})
	require.NoError(t, err)

	_, err = client.Merge(ctx, "f", runtime.File{ID: "f", Nodes: []*node.Item{it}}, 3)
	require.NoError(t, err)

	file, err := client.CurrentFileState(ctx, "f", 3)
	require.NoError(t, err)
	require.Len(t, file.Nodes, 1)
	got, ok := file.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, node.Custom{TypeName: "t"}, got.Payload)
	require.Len(t, got.Core.Queries, 1)
	assert.True(t, got.Core.Queries[0].IsAbsent())

	fake.Snapshot(func(f *testutil.FakeRuntime) {
		require.Len(t, f.Merges, 1)
		assert.Equal(t, uint64(3), f.Merges[0].Branch)
	})
}

func TestClient_Branches(t *testing.T) {
	fake := testutil.NewFakeRuntime()
	fake.Branches = []runtime.Branch{{ID: 0}}
	client := fake.Serve(t)
	ctx := context.Background()

	st, err := client.NewBranch(ctx, "f", 0, 12)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Branch)

	res, err := client.ListBranches(ctx, "f")
	require.NoError(t, err)
	require.Len(t, res.Branches, 2)
	assert.Equal(t, []uint64{0}, res.Branches[1].SourceBranchIDs)
	assert.Equal(t, uint64(12), res.Branches[1].DivergesAtCounter)
}

func TestClient_RuntimeErrorsPassThrough(t *testing.T) {
	fake := testutil.NewFakeRuntime()
	fake.SetError("Play", status.Error(codes.NotFound, "no such file: f"))
	client := fake.Serve(t)

	_, err := client.Play(context.Background(), "f", 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, runtime.ErrRuntime)

	var rerr *runtime.RuntimeError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, codes.NotFound, rerr.Code)
	assert.Equal(t, "no such file: f", rerr.Message)
	assert.Equal(t, "Play", rerr.Op)
}

func TestClient_CanceledContext(t *testing.T) {
	fake := testutil.NewFakeRuntime()
	client := fake.Serve(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.ListBranches(ctx, "f")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, runtime.ErrRuntime)
}

func TestClient_Compression(t *testing.T) {
	fake := testutil.NewFakeRuntime()
	client := fake.Serve(t, runtime.WithCompression(runtime.CompressorZstd))

	_, err := client.Play(context.Background(), "f", 0, 1)
	require.NoError(t, err)
	fake.Snapshot(func(f *testutil.FakeRuntime) {
		assert.Len(t, f.Plays, 1)
	})
}

func TestClient_WorkerCalls(t *testing.T) {
	fake := testutil.NewFakeRuntime()
	typeName := "summarize"
	fake.Enqueue(runtime.NodeWillExecuteOnBranch{
		Branch:             0,
		Counter:            5,
		CustomNodeTypeName: &typeName,
		Node:               runtime.NodeWillExecute{SourceNode: "B"},
	})
	client := fake.Serve(t)
	ctx := context.Background()

	polled, err := client.PollEvents(ctx, "f")
	require.NoError(t, err)
	require.Len(t, polled.NodeWillExecuteEvents, 1)
	assert.Equal(t, "summarize", *polled.NodeWillExecuteEvents[0].CustomNodeTypeName)

	_, err = client.AckEvent(ctx, "f", 0, 5)
	require.NoError(t, err)

	_, err = client.AckEvent(ctx, "f", 0, 5)
	var rerr *runtime.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, codes.FailedPrecondition, rerr.Code)

	_, err = client.PushWorkerEvent(ctx, &runtime.FileAddressedChangeValueWithCounter{
		ID: "f", NodeName: "B", Branch: 0, Counter: 5,
		Change: value.ChangeValueWithCounter{MonotonicCounter: 5},
	})
	require.NoError(t, err)
	fake.Snapshot(func(f *testutil.FakeRuntime) {
		require.Len(t, f.Pushes, 1)
		assert.Equal(t, "B", f.Pushes[0].NodeName)
	})
}
