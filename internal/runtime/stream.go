package runtime

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
)

// Stream is a cancellable iterator over a server stream. Items are
// delivered in the order the runtime sent them.
//
//	for s.Next() {
//		use(s.Value())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream[T any] struct {
	method string
	cs     grpc.ClientStream
	cancel context.CancelFunc
	cur    *T
	err    error
	done   bool
}

func openStream[T any](ctx context.Context, c *Client, method string, req any) (*Stream[T], error) {
	ctx, cancel := context.WithCancel(ctx)
	desc := &grpc.StreamDesc{StreamName: method, ServerStreams: true}
	cs, err := c.conn.NewStream(ctx, desc, fullMethod(method))
	if err != nil {
		cancel()
		return nil, wrapErr(method, err)
	}
	if err := cs.SendMsg(req); err != nil {
		cancel()
		return nil, wrapErr(method, err)
	}
	if err := cs.CloseSend(); err != nil {
		cancel()
		return nil, wrapErr(method, err)
	}
	return &Stream[T]{method: method, cs: cs, cancel: cancel}, nil
}

// Next advances to the next item. It returns false at the end of the
// stream, after Close, or on error.
func (s *Stream[T]) Next() bool {
	if s.done {
		return false
	}
	msg := new(T)
	if err := s.cs.RecvMsg(msg); err != nil {
		s.done = true
		s.cur = nil
		s.cancel()
		if !errors.Is(err, io.EOF) {
			s.err = wrapErr(s.method, err)
		}
		return false
	}
	s.cur = msg
	return true
}

// Value returns the current item.
func (s *Stream[T]) Value() *T { return s.cur }

// Err returns the error that ended the stream, if any.
func (s *Stream[T]) Err() error { return s.err }

// Close cancels the stream. It is safe to call more than once.
func (s *Stream[T]) Close() {
	s.done = true
	s.cancel()
}
