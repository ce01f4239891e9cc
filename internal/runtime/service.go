package runtime

import (
	"context"

	"github.com/specialistvlad/chidori/internal/value"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service of the runtime.
const ServiceName = "promptgraph.ExecutionRuntime"

const (
	methodRunQuery             = "RunQuery"
	methodListBranches         = "ListBranches"
	methodCreateBranch         = "CreateBranch"
	methodCurrentFileState     = "CurrentFileState"
	methodMerge                = "Merge"
	methodPlay                 = "Play"
	methodPause                = "Pause"
	methodPollEvents           = "PollNodeWillExecuteEvents"
	methodAckEvent             = "AckNodeWillExecuteEvent"
	methodPushWorkerEvent      = "PushWorkerEvent"
	methodListRegisteredGraphs = "ListRegisteredGraphs"
	methodListChangeEvents     = "ListChangeEvents"
)

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// ServerStream is the sending half of a server-streaming call.
type ServerStream[T any] interface {
	Send(*T) error
	Context() context.Context
}

// Server is the runtime side of the contract. It is implemented by the
// runtime itself and by test fakes.
type Server interface {
	RunQuery(context.Context, *QueryAtFrame) (*QueryAtFrameResponse, error)
	ListBranches(context.Context, *RequestListBranches) (*ListBranchesRes, error)
	CreateBranch(context.Context, *RequestNewBranch) (*ExecutionStatus, error)
	CurrentFileState(context.Context, *RequestOnlyID) (*File, error)
	Merge(context.Context, *RequestFileMerge) (*ExecutionStatus, error)
	Play(context.Context, *RequestAtFrame) (*ExecutionStatus, error)
	Pause(context.Context, *RequestAtFrame) (*ExecutionStatus, error)
	PollNodeWillExecuteEvents(context.Context, *FilteredPollNodeWillExecuteEventsRequest) (*RespondPollNodeWillExecuteEvents, error)
	AckNodeWillExecuteEvent(context.Context, *RequestAckNodeWillExecuteEvent) (*ExecutionStatus, error)
	PushWorkerEvent(context.Context, *FileAddressedChangeValueWithCounter) (*ExecutionStatus, error)
	ListRegisteredGraphs(*Empty, ServerStream[Empty]) error
	ListChangeEvents(*RequestOnlyID, ServerStream[value.ChangeValueWithCounter]) error
}

// RegisterServer exposes srv on a gRPC server.
func RegisterServer(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(methodRunQuery, Server.RunQuery),
		unaryMethod(methodListBranches, Server.ListBranches),
		unaryMethod(methodCreateBranch, Server.CreateBranch),
		unaryMethod(methodCurrentFileState, Server.CurrentFileState),
		unaryMethod(methodMerge, Server.Merge),
		unaryMethod(methodPlay, Server.Play),
		unaryMethod(methodPause, Server.Pause),
		unaryMethod(methodPollEvents, Server.PollNodeWillExecuteEvents),
		unaryMethod(methodAckEvent, Server.AckNodeWillExecuteEvent),
		unaryMethod(methodPushWorkerEvent, Server.PushWorkerEvent),
	},
	Streams: []grpc.StreamDesc{
		serverStreamMethod(methodListRegisteredGraphs, Server.ListRegisteredGraphs),
		serverStreamMethod(methodListChangeEvents, Server.ListChangeEvents),
	},
	Metadata: "runtime",
}

func unaryMethod[Req, Resp any](name string, call func(Server, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Server), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(Server), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func serverStreamMethod[Req, Resp any](name string, call func(Server, *Req, ServerStream[Resp]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    name,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(Req)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return call(srv.(Server), in, &sendStream[Resp]{stream})
		},
	}
}

type sendStream[T any] struct {
	grpc.ServerStream
}

func (s *sendStream[T]) Send(m *T) error {
	return s.ServerStream.SendMsg(m)
}
