package worker

import (
	"context"
	"sync"
	"time"
)

// EventStream is a lazy iterator over repeated polls.
//
//	events := session.Events(ctx)
//	defer events.Close()
//	for events.Next() {
//		handle(events.Event())
//	}
//	if err := events.Err(); err != nil { ... }
//
// The first failed poll ends the stream; open a new one to resume. Close may
// be called from any goroutine; the other methods belong to the consumer.
type EventStream struct {
	s      *Session
	ctx    context.Context
	cancel context.CancelFunc
	cur    Event

	mu     sync.Mutex
	buf    []Event
	err    error
	closed bool
}

// Events opens an event stream. It polls nothing until Next is called.
func (s *Session) Events(ctx context.Context) *EventStream {
	ctx, cancel := context.WithCancel(ctx)
	return &EventStream{s: s, ctx: ctx, cancel: cancel}
}

// Next blocks until an event is available, the stream is closed, ctx is
// done, or a poll fails.
func (es *EventStream) Next() bool {
	for {
		if ev, ok, done := es.take(); done {
			return false
		} else if ok {
			es.cur = ev
			return true
		}

		events, err := es.s.Poll(es.ctx)
		if err != nil {
			es.mu.Lock()
			if es.ctx.Err() == nil {
				es.err = err
			}
			es.mu.Unlock()
			es.Close()
			return false
		}
		if len(events) > 0 {
			es.mu.Lock()
			if es.closed {
				es.release(events)
			} else {
				es.buf = events
			}
			es.mu.Unlock()
			continue
		}

		timer := time.NewTimer(es.s.pollInterval())
		select {
		case <-es.ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (es *EventStream) take() (ev Event, ok, done bool) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.closed || es.err != nil {
		return Event{}, false, true
	}
	if es.ctx.Err() != nil {
		es.closed = true
		es.release(es.buf)
		es.buf = nil
		return Event{}, false, true
	}
	if len(es.buf) > 0 {
		ev, es.buf = es.buf[0], es.buf[1:]
		return ev, true, false
	}
	return Event{}, false, false
}

// Event returns the current event.
func (es *EventStream) Event() Event { return es.cur }

// Err returns the poll error that ended the stream. Closing the stream or
// cancelling its context is not an error.
func (es *EventStream) Err() error {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.err
}

// Close stops the stream. Events polled but not yet returned go back to Idle.
func (es *EventStream) Close() {
	es.cancel()
	es.mu.Lock()
	defer es.mu.Unlock()
	es.closed = true
	es.release(es.buf)
	es.buf = nil
}

func (es *EventStream) release(events []Event) {
	for _, ev := range events {
		es.s.tracker.Release(ev.Branch, ev.Counter)
	}
}
