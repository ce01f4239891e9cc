package value

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/chidori/internal/address"
)

// ErrCausality reports a change whose counter does not follow its parents.
var ErrCausality = errors.New("causality violation")

// ChangeValue assigns a value to a path on a branch.
type ChangeValue struct {
	Path   address.Path    `json:"path"`
	Value  SerializedValue `json:"value"`
	Branch uint64          `json:"branch"`
}

// NewChangeValue builds a ChangeValue from raw address segments.
func NewChangeValue(addr []string, v SerializedValue, branch uint64) ChangeValue {
	return ChangeValue{Path: address.New(addr...), Value: v, Branch: branch}
}

// ChangeValueWithCounter is a batch of changes stamped with its position in
// the runtime's monotonic ordering and the counters it was derived from.
type ChangeValueWithCounter struct {
	FilledValues            []ChangeValue `json:"filled_values"`
	ParentMonotonicCounters []uint64      `json:"parent_monotonic_counters"`
	MonotonicCounter        uint64        `json:"monotonic_counter"`
	Branch                  uint64        `json:"branch"`
	SourceNode              string        `json:"source_node"`
}

// ValidateCausality checks that the counter is strictly greater than every
// parent counter.
func (c ChangeValueWithCounter) ValidateCausality() error {
	for _, parent := range c.ParentMonotonicCounters {
		if parent >= c.MonotonicCounter {
			return fmt.Errorf("%w: parent counter %d is not below counter %d", ErrCausality, parent, c.MonotonicCounter)
		}
	}
	return nil
}
