package cli

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/specialistvlad/chidori/internal/app"
	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/specialistvlad/chidori/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	fake *testutil.FakeRuntime
	out  *testutil.SafeBuffer
	logs *testutil.SafeBuffer
	opts Options
}

func newHarness(t *testing.T, env map[string]string) *harness {
	t.Helper()
	h := &harness{
		fake: testutil.NewFakeRuntime(),
		out:  &testutil.SafeBuffer{},
		logs: &testutil.SafeBuffer{},
	}
	h.opts = Options{
		Out:     h.out,
		Err:     h.logs,
		Env:     app.MapEnv(env),
		Runtime: []runtime.Option{h.fake.Listen(t)},
	}
	return h
}

func (h *harness) run(args ...string) error {
	return Run(context.Background(), args, h.opts)
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected an ExitError, got %v", err)
	assert.Equal(t, code, exitErr.Code)
}

func TestRootCommand(t *testing.T) {
	t.Parallel()

	root, err := NewRootCommand(Options{})
	require.NoError(t, err)
	assert.Equal(t, "chidori", root.Use)

	want := []string{"branch", "branches", "commit", "events", "graph", "graphs", "pause", "play", "query", "start", "worker"}
	var got []string
	for _, cmd := range root.Commands() {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			continue
		}
		got = append(got, cmd.Name())
	}
	assert.ElementsMatch(t, want, got)
}

func TestRun_Help(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	require.NoError(t, h.run("--help"))
	assert.Contains(t, h.out.String(), "Usage:")
	assert.Contains(t, h.out.String(), "worker")
}

func TestRun_UsageErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "unknown flag", args: []string{"play", "--this-is-not-a-valid-flag"}},
		{name: "unknown command", args: []string{"explode"}},
		{name: "commit without path", args: []string{"commit"}},
		{name: "extra argument", args: []string{"play", "now"}},
		{name: "bad log level", args: []string{"graphs", "--log-level", "trace"}},
		{name: "bad output", args: []string{"graphs", "-o", "xml"}},
		{name: "url without scheme", args: []string{"graphs", "--server", "localhost:9800"}},
		{name: "query without query", args: []string{"query", "--file-id", "f1"}},
		{name: "unknown handler", args: []string{"worker", "--file-id", "f1", "--handler", "carrier-pigeon"}},
		{name: "exec without command", args: []string{"worker", "--file-id", "f1", "--handler", "exec"}},
		{name: "http without url", args: []string{"worker", "--file-id", "f1", "--handler", "http"}},
		{name: "socketio without url", args: []string{"worker", "--file-id", "f1", "--handler", "socketio"}},
		{name: "bad env value", env: map[string]string{"CHIDORI_BRANCH": "main"}, args: []string{"graphs"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.env)
			requireExitCode(t, h.run(tc.args...), 2)
		})
	}
}

func TestRun_RuntimeErrorIsNotUsageError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	err := h.run("play")
	require.ErrorIs(t, err, app.ErrNoFileID)
	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}

func TestRun_FlagsOverrideEnvironment(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]string{
		"CHIDORI_FILE_ID": "from-env",
		"CHIDORI_BRANCH":  "1",
	})

	require.NoError(t, h.run("play", "--frame", "3"))
	require.NoError(t, h.run("pause", "--file-id", "from-flag"))

	h.fake.Snapshot(func(f *testutil.FakeRuntime) {
		require.Len(t, f.Plays, 1)
		assert.Equal(t, runtime.RequestAtFrame{ID: "from-env", Branch: 1, Frame: 3}, f.Plays[0])
		require.Len(t, f.Pauses, 1)
		assert.Equal(t, "from-flag", f.Pauses[0].ID)
		assert.Equal(t, uint64(1), f.Pauses[0].Branch)
	})
}

func TestRun_CommitAndQuery(t *testing.T) {
	t.Parallel()
	h := newHarness(t, map[string]string{"CHIDORI_FILE_ID": "f1"})
	dir := testutil.WriteFiles(t, map[string]string{"graph/main.hcl": `
prompt "A" {
  template = "Hello"
  output   = object({ text = string })
}
`})

	require.NoError(t, h.run("commit", dir+"/graph"))
	var res app.CommitResult
	require.NoError(t, json.Unmarshal([]byte(h.out.String()), &res))
	assert.Equal(t, "f1", res.FileID)
	assert.Equal(t, []string{"A"}, res.Delta.Added)

	require.NoError(t, h.run("query", "--node", "A", "--frame", "2"))
	h.fake.Snapshot(func(f *testutil.FakeRuntime) {
		require.Len(t, f.Merges, 1)
		require.Len(t, f.Queries, 1)
		assert.Equal(t, "query A { A { text } }", f.Queries[0].Query.String())
		assert.Equal(t, uint64(2), f.Queries[0].Frame)
	})
}

func TestRun_BranchNew(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	require.NoError(t, h.run("branch", "new", "--file-id", "f1", "--branch", "2", "--diverges-at", "5"))
	h.fake.Snapshot(func(f *testutil.FakeRuntime) {
		require.Len(t, f.Forks, 1)
		assert.Equal(t, runtime.RequestNewBranch{ID: "f1", SourceBranchID: 2, DivergesAtCounter: 5}, f.Forks[0])
	})
}

func TestRun_GraphShowLocal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	dir := testutil.WriteFiles(t, map[string]string{"main.hcl": `
prompt "A" { template = "Hello" }
custom "B" {
  type_name = "summarize"
  run_when  = ["A"]
}
`})

	require.NoError(t, h.run("graph", "show", dir))
	assert.Contains(t, h.out.String(), "digraph")
	assert.Contains(t, h.out.String(), `"A" -> "B";`)
}
