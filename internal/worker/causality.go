package worker

import "sort"

// Causality is the attribution pushed with a response: the counters of the
// changes the result was computed from and the node that produced it.
type Causality struct {
	ParentCounters []uint64
	SourceNode     string
}

// Unattributed carries no causal information. Responding with it is
// allowed but logged, since the runtime may require attribution.
var Unattributed = Causality{}

// IsZero reports whether c carries no attribution at all.
func (c Causality) IsZero() bool {
	return len(c.ParentCounters) == 0 && c.SourceNode == ""
}

// FromEvent attributes a response to the change values its event was
// computed from, sourced from the executing node.
func FromEvent(ev Event) Causality {
	seen := make(map[uint64]bool)
	var parents []uint64
	for _, in := range ev.Inputs() {
		if !seen[in.MonotonicCounter] {
			seen[in.MonotonicCounter] = true
			parents = append(parents, in.MonotonicCounter)
		}
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })
	return Causality{ParentCounters: parents, SourceNode: ev.NodeName()}
}

// Attribution selects how a Worker attributes its responses.
type Attribution string

const (
	// AttributeEvent derives causality with FromEvent.
	AttributeEvent Attribution = "event"
	// AttributeNone responds Unattributed.
	AttributeNone Attribution = "none"
)

func (a Attribution) causality(ev Event) Causality {
	if a == AttributeNone {
		return Unattributed
	}
	return FromEvent(ev)
}
