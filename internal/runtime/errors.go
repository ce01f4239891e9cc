package runtime

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrInvalidURL is returned by New for a URL without a scheme separator
	// or with an unsupported scheme.
	ErrInvalidURL = errors.New("invalid runtime url")
	// ErrRuntime is wrapped by every error reported by, or on the way to,
	// the runtime after startup.
	ErrRuntime = errors.New("runtime error")
	// ErrStartupExhausted is returned by Start when its attempt or time
	// budget runs out.
	ErrStartupExhausted = errors.New("runtime did not become reachable")
	// ErrDuplicateKey is returned when two query results join to the same key.
	ErrDuplicateKey = errors.New("duplicate query result key")
)

// RuntimeError carries the status reported for a failed call verbatim.
type RuntimeError struct {
	Op      string
	Code    codes.Code
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *RuntimeError) Unwrap() error { return ErrRuntime }

// Is lets callers match on the context errors a call was aborted with.
func (e *RuntimeError) Is(target error) bool {
	switch target {
	case context.Canceled:
		return e.Code == codes.Canceled
	case context.DeadlineExceeded:
		return e.Code == codes.DeadlineExceeded
	}
	return false
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	st := status.Convert(err)
	return &RuntimeError{Op: op, Code: st.Code(), Message: st.Message()}
}
