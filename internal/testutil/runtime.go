package testutil

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// FakeRuntime is an in-memory runtime.Server that records every request.
type FakeRuntime struct {
	mu sync.Mutex

	// Requests, in arrival order.
	Merges  []runtime.RequestFileMerge
	Plays   []runtime.RequestAtFrame
	Pauses  []runtime.RequestAtFrame
	Queries []runtime.QueryAtFrame
	Forks   []runtime.RequestNewBranch
	Polls   int
	Acks    []runtime.RequestAckNodeWillExecuteEvent
	Pushes  []runtime.FileAddressedChangeValueWithCounter

	// Canned state served back to clients.
	Files        map[string]*runtime.File
	Branches     []runtime.Branch
	QueryValues  []runtime.WrappedChangeValue
	Graphs       []string
	ChangeEvents []value.ChangeValueWithCounter
	pending      []runtime.NodeWillExecuteOnBranch
	claimed      map[[2]uint64]bool

	// Errors, keyed by method name, returned instead of a response.
	Errors map[string]error

	counter uint64
	pushed  chan struct{}
}

// NewFakeRuntime returns an empty fake.
func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{
		Files:   make(map[string]*runtime.File),
		claimed: make(map[[2]uint64]bool),
		Errors:  make(map[string]error),
		pushed:  make(chan struct{}, 1024),
	}
}

// Serve starts the fake on an in-memory listener and returns a client
// connected to it. Both are torn down when the test ends.
func (f *FakeRuntime) Serve(t *testing.T, opts ...runtime.Option) *runtime.Client {
	t.Helper()

	client, err := runtime.New("http://bufnet", append([]runtime.Option{f.Listen(t)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// Listen starts the fake on an in-memory listener and returns the option
// that makes a client dial it. The server stops when the test ends.
func (f *FakeRuntime) Listen(t *testing.T) runtime.Option {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	runtime.RegisterServer(srv, f)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return runtime.WithDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

// Enqueue makes events available to the next poll.
func (f *FakeRuntime) Enqueue(events ...runtime.NodeWillExecuteOnBranch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, events...)
}

// Pushed signals once per received worker result.
func (f *FakeRuntime) Pushed() <-chan struct{} { return f.pushed }

// SetError makes a method fail with err until cleared with a nil err.
func (f *FakeRuntime) SetError(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Errors, method)
		return
	}
	f.Errors[method] = err
}

// Snapshot runs fn while holding the fake's lock.
func (f *FakeRuntime) Snapshot(fn func(f *FakeRuntime)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *FakeRuntime) status(fileID string, branch uint64) *runtime.ExecutionStatus {
	f.counter++
	return &runtime.ExecutionStatus{ID: fileID, MonotonicCounter: f.counter, Branch: branch}
}

func (f *FakeRuntime) RunQuery(_ context.Context, req *runtime.QueryAtFrame) (*runtime.QueryAtFrameResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["RunQuery"]; err != nil {
		return nil, err
	}
	f.Queries = append(f.Queries, *req)
	return &runtime.QueryAtFrameResponse{Values: append([]runtime.WrappedChangeValue{}, f.QueryValues...)}, nil
}

func (f *FakeRuntime) ListBranches(_ context.Context, req *runtime.RequestListBranches) (*runtime.ListBranchesRes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["ListBranches"]; err != nil {
		return nil, err
	}
	return &runtime.ListBranchesRes{ID: req.ID, Branches: append([]runtime.Branch{}, f.Branches...)}, nil
}

func (f *FakeRuntime) CreateBranch(_ context.Context, req *runtime.RequestNewBranch) (*runtime.ExecutionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["CreateBranch"]; err != nil {
		return nil, err
	}
	f.Forks = append(f.Forks, *req)
	id := uint64(len(f.Branches))
	f.Branches = append(f.Branches, runtime.Branch{
		ID:                id,
		SourceBranchIDs:   []uint64{req.SourceBranchID},
		DivergesAtCounter: req.DivergesAtCounter,
	})
	return f.status(req.ID, id), nil
}

func (f *FakeRuntime) CurrentFileState(_ context.Context, req *runtime.RequestOnlyID) (*runtime.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["CurrentFileState"]; err != nil {
		return nil, err
	}
	file, ok := f.Files[req.ID]
	if !ok {
		return &runtime.File{ID: req.ID}, nil
	}
	return &runtime.File{ID: file.ID, Nodes: append(file.Nodes[:0:0], file.Nodes...)}, nil
}

// Merge replaces nodes by name and appends new ones, as the runtime does.
func (f *FakeRuntime) Merge(_ context.Context, req *runtime.RequestFileMerge) (*runtime.ExecutionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["Merge"]; err != nil {
		return nil, err
	}
	f.Merges = append(f.Merges, *req)

	file, ok := f.Files[req.ID]
	if !ok {
		file = &runtime.File{ID: req.ID}
		f.Files[req.ID] = file
	}
	for _, incoming := range req.File.Nodes {
		replaced := false
		for i, existing := range file.Nodes {
			if existing.Core.Name == incoming.Core.Name {
				file.Nodes[i] = incoming
				replaced = true
				break
			}
		}
		if !replaced {
			file.Nodes = append(file.Nodes, incoming)
		}
	}
	return f.status(req.ID, req.Branch), nil
}

func (f *FakeRuntime) Play(_ context.Context, req *runtime.RequestAtFrame) (*runtime.ExecutionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["Play"]; err != nil {
		return nil, err
	}
	f.Plays = append(f.Plays, *req)
	return f.status(req.ID, req.Branch), nil
}

func (f *FakeRuntime) Pause(_ context.Context, req *runtime.RequestAtFrame) (*runtime.ExecutionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["Pause"]; err != nil {
		return nil, err
	}
	f.Pauses = append(f.Pauses, *req)
	return f.status(req.ID, req.Branch), nil
}

// PollNodeWillExecuteEvents hands out every pending event once.
func (f *FakeRuntime) PollNodeWillExecuteEvents(_ context.Context, req *runtime.FilteredPollNodeWillExecuteEventsRequest) (*runtime.RespondPollNodeWillExecuteEvents, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["PollNodeWillExecuteEvents"]; err != nil {
		return nil, err
	}
	f.Polls++
	events := f.pending
	f.pending = nil
	return &runtime.RespondPollNodeWillExecuteEvents{NodeWillExecuteEvents: events}, nil
}

// AckNodeWillExecuteEvent rejects a second claim of the same event.
func (f *FakeRuntime) AckNodeWillExecuteEvent(_ context.Context, req *runtime.RequestAckNodeWillExecuteEvent) (*runtime.ExecutionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["AckNodeWillExecuteEvent"]; err != nil {
		return nil, err
	}
	key := [2]uint64{req.Branch, req.Counter}
	if f.claimed[key] {
		return nil, status.Errorf(codes.FailedPrecondition, "event %d on branch %d already acknowledged", req.Counter, req.Branch)
	}
	f.claimed[key] = true
	f.Acks = append(f.Acks, *req)
	return f.status(req.ID, req.Branch), nil
}

func (f *FakeRuntime) PushWorkerEvent(_ context.Context, req *runtime.FileAddressedChangeValueWithCounter) (*runtime.ExecutionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["PushWorkerEvent"]; err != nil {
		return nil, err
	}
	f.Pushes = append(f.Pushes, *req)
	select {
	case f.pushed <- struct{}{}:
	default:
	}
	return f.status(req.ID, req.Branch), nil
}

func (f *FakeRuntime) ListRegisteredGraphs(_ *runtime.Empty, stream runtime.ServerStream[runtime.Empty]) error {
	f.mu.Lock()
	graphs := append([]string{}, f.Graphs...)
	f.mu.Unlock()
	for _, id := range graphs {
		if err := stream.Send(&runtime.Empty{ID: id}); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeRuntime) ListChangeEvents(req *runtime.RequestOnlyID, stream runtime.ServerStream[value.ChangeValueWithCounter]) error {
	f.mu.Lock()
	events := append([]value.ChangeValueWithCounter{}, f.ChangeEvents...)
	f.mu.Unlock()
	for i := range events {
		if events[i].Branch != req.Branch {
			continue
		}
		if err := stream.Send(&events[i]); err != nil {
			return err
		}
	}
	return nil
}
