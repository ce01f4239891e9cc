package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/chidori/internal/ctxlog"
	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/specialistvlad/chidori/internal/value"
)

// DefaultPollInterval is how long an event stream waits after an empty poll.
const DefaultPollInterval = time.Second

// Runtime is the part of the runtime client a Session needs.
type Runtime interface {
	PollEvents(ctx context.Context, fileID string) (*runtime.RespondPollNodeWillExecuteEvents, error)
	AckEvent(ctx context.Context, fileID string, branch, counter uint64) (*runtime.ExecutionStatus, error)
	PushWorkerEvent(ctx context.Context, ev *runtime.FileAddressedChangeValueWithCounter) (*runtime.ExecutionStatus, error)
}

// Session runs the worker event protocol for one file.
type Session struct {
	rt      Runtime
	fileID  string
	tracker *Tracker

	// PollInterval is the pause after an empty poll; zero means
	// DefaultPollInterval.
	PollInterval time.Duration
}

// NewSession binds a runtime client to a file.
func NewSession(rt Runtime, fileID string) *Session {
	return &Session{rt: rt, fileID: fileID, tracker: NewTracker()}
}

// FileID returns the file the session is bound to.
func (s *Session) FileID() string { return s.fileID }

// Tracker exposes the per-event state.
func (s *Session) Tracker() *Tracker { return s.tracker }

// Poll pulls the pending events once and marks each Notified. Events this
// session has already claimed are left out.
func (s *Session) Poll(ctx context.Context) ([]Event, error) {
	logger := ctxlog.FromContext(ctx)
	resp, err := s.rt.PollEvents(ctx, s.fileID)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(resp.NodeWillExecuteEvents))
	for _, raw := range resp.NodeWillExecuteEvents {
		ev := Event{NodeWillExecuteOnBranch: raw}
		if err := s.tracker.Notify(ev.Branch, ev.Counter, ev.NodeName()); err != nil {
			logger.Debug("Skipping event already in progress.", "branch", ev.Branch, "counter", ev.Counter, "error", err)
			continue
		}
		events = append(events, ev)
	}
	eventsPolled.Add(float64(len(events)))
	return events, nil
}

// Acknowledge claims a Notified event. A rejection by the runtime, e.g. the
// event was claimed elsewhere or is stale, is returned unchanged and the
// event goes back to Idle.
func (s *Session) Acknowledge(ctx context.Context, branch, counter uint64) error {
	if state, _ := s.tracker.State(branch, counter); state != Notified {
		return transitionErr(branch, counter, state, Acknowledged)
	}
	if _, err := s.rt.AckEvent(ctx, s.fileID, branch, counter); err != nil {
		s.tracker.Release(branch, counter)
		ackFailures.Inc()
		return err
	}
	eventsAcknowledged.Inc()
	return s.tracker.Acknowledge(branch, counter)
}

// Respond pushes the changes computed for an Acknowledged event. Every change
// is stamped with branch. The response fails locally, before any network
// call, when the event is not Acknowledged or when a parent counter is not
// below counter. A failed push leaves the event Acknowledged.
func (s *Session) Respond(ctx context.Context, branch, counter uint64, nodeName string, changes []value.ChangeValue, c Causality) (*runtime.ExecutionStatus, error) {
	logger := ctxlog.FromContext(ctx).With("branch", branch, "counter", counter, "node", nodeName)

	if state, _ := s.tracker.State(branch, counter); state != Acknowledged {
		return nil, transitionErr(branch, counter, state, Responded)
	}

	filled := make([]value.ChangeValue, len(changes))
	for i, ch := range changes {
		ch.Branch = branch
		filled[i] = ch
	}
	change := value.ChangeValueWithCounter{
		FilledValues:            filled,
		ParentMonotonicCounters: c.ParentCounters,
		MonotonicCounter:        counter,
		Branch:                  branch,
		SourceNode:              c.SourceNode,
	}
	if err := change.ValidateCausality(); err != nil {
		return nil, fmt.Errorf("responding to %q: %w", nodeName, err)
	}
	if c.IsZero() {
		logger.Warn("Responding without causal attribution; parent counters and source node are empty.")
	}

	status, err := s.rt.PushWorkerEvent(ctx, &runtime.FileAddressedChangeValueWithCounter{
		ID:       s.fileID,
		NodeName: nodeName,
		Branch:   branch,
		Counter:  counter,
		Change:   change,
	})
	if err != nil {
		responses.WithLabelValues(resultPushError).Inc()
		return nil, err
	}
	if err := s.tracker.Respond(branch, counter); err != nil {
		return nil, err
	}
	responses.WithLabelValues(resultOK).Inc()
	logger.Debug("Response pushed.", "changes", len(filled))
	return status, nil
}

func (s *Session) pollInterval() time.Duration {
	if s.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return s.PollInterval
}
