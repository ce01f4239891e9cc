package worker

import (
	"errors"
	"fmt"
	"sync"
)

// State is the protocol state of one event.
type State int

const (
	Idle State = iota
	Notified
	Acknowledged
	Responded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Notified:
		return "notified"
	case Acknowledged:
		return "acknowledged"
	case Responded:
		return "responded"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrInvalidTransition is returned when an event is moved out of order.
var ErrInvalidTransition = errors.New("invalid event state transition")

type eventKey struct {
	branch  uint64
	counter uint64
}

type tracked struct {
	state State
	node  string
}

// Tracker records the state of in-flight events. Events that are not
// tracked are Idle. It uses sync.Map since every event is an independent
// key written from its own goroutine.
type Tracker struct {
	events sync.Map // eventKey -> tracked
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// State returns the state of an event and the node it belongs to.
func (t *Tracker) State(branch, counter uint64) (State, string) {
	v, ok := t.events.Load(eventKey{branch, counter})
	if !ok {
		return Idle, ""
	}
	e := v.(tracked)
	return e.state, e.node
}

// Notify moves an event from Idle to Notified. Notifying an event that is
// already Notified is a no-op, since a poll may hand out unclaimed work again.
func (t *Tracker) Notify(branch, counter uint64, node string) error {
	key := eventKey{branch, counter}
	v, loaded := t.events.LoadOrStore(key, tracked{state: Notified, node: node})
	if !loaded {
		return nil
	}
	if cur := v.(tracked); cur.state != Notified {
		return transitionErr(branch, counter, cur.state, Notified)
	}
	return nil
}

// Acknowledge moves an event from Notified to Acknowledged.
func (t *Tracker) Acknowledge(branch, counter uint64) error {
	return t.advance(branch, counter, Notified, Acknowledged)
}

// Respond moves an event from Acknowledged through Responded back to Idle.
func (t *Tracker) Respond(branch, counter uint64) error {
	if err := t.advance(branch, counter, Acknowledged, Responded); err != nil {
		return err
	}
	t.events.Delete(eventKey{branch, counter})
	return nil
}

// Release forgets an event, returning it to Idle from any state.
func (t *Tracker) Release(branch, counter uint64) {
	t.events.Delete(eventKey{branch, counter})
}

// Len returns the number of events that are not Idle.
func (t *Tracker) Len() int {
	n := 0
	t.events.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (t *Tracker) advance(branch, counter uint64, from, to State) error {
	key := eventKey{branch, counter}
	v, ok := t.events.Load(key)
	if !ok {
		return transitionErr(branch, counter, Idle, to)
	}
	cur := v.(tracked)
	if cur.state != from {
		return transitionErr(branch, counter, cur.state, to)
	}
	next := tracked{state: to, node: cur.node}
	if !t.events.CompareAndSwap(key, cur, next) {
		state, _ := t.State(branch, counter)
		return transitionErr(branch, counter, state, to)
	}
	return nil
}

func transitionErr(branch, counter uint64, from, to State) error {
	return fmt.Errorf("%w: event %d on branch %d is %s, cannot become %s", ErrInvalidTransition, counter, branch, from, to)
}
