package runtime

import (
	"fmt"

	"github.com/specialistvlad/chidori/internal/address"
	"github.com/specialistvlad/chidori/internal/node"
	"github.com/specialistvlad/chidori/internal/value"
)

// File is the unit merged into the runtime: a flat set of node declarations.
type File struct {
	ID    string       `json:"id"`
	Nodes []*node.Item `json:"nodes"`
}

// Lookup returns the node with the given name.
func (f *File) Lookup(name string) (*node.Item, bool) {
	for _, it := range f.Nodes {
		if it.Core.Name == name {
			return it, true
		}
	}
	return nil, false
}

// Empty carries an optional identifier.
type Empty struct {
	ID string `json:"id,omitempty"`
}

// ExecutionStatus acknowledges a state-changing call.
type ExecutionStatus struct {
	ID               string `json:"id"`
	MonotonicCounter uint64 `json:"monotonic_counter"`
	Branch           uint64 `json:"branch"`
}

// RequestAtFrame addresses a frame on a branch of a file.
type RequestAtFrame struct {
	ID     string `json:"id"`
	Frame  uint64 `json:"frame"`
	Branch uint64 `json:"branch"`
}

// QueryAtFrame runs a query against a frame on a branch.
type QueryAtFrame struct {
	ID     string     `json:"id"`
	Query  node.Query `json:"query"`
	Frame  uint64     `json:"frame"`
	Branch uint64     `json:"branch"`
}

// WrappedChangeValue is a query result entry.
type WrappedChangeValue struct {
	MonotonicCounter uint64            `json:"monotonic_counter"`
	ChangeValue      value.ChangeValue `json:"change_value"`
}

// QueryAtFrameResponse lists the values a query resolved to.
type QueryAtFrameResponse struct {
	Values []WrappedChangeValue `json:"values"`
}

// Map keys every value by its path joined with delim. Two values that join
// to the same key fail with ErrDuplicateKey.
func (r *QueryAtFrameResponse) Map(delim string) (map[string]value.SerializedValue, error) {
	if delim == "" {
		delim = address.DefaultDelimiter
	}
	out := make(map[string]value.SerializedValue, len(r.Values))
	for _, v := range r.Values {
		key := v.ChangeValue.Path.Join(delim)
		if _, exists := out[key]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
		}
		out[key] = v.ChangeValue.Value
	}
	return out, nil
}

// RequestListBranches lists the branches of a file.
type RequestListBranches struct {
	ID string `json:"id"`
}

// Branch describes one branch of a file's history.
type Branch struct {
	ID                 uint64   `json:"id"`
	SourceBranchIDs    []uint64 `json:"source_branch_ids"`
	ContainedBranchIDs []uint64 `json:"contained_branch_ids"`
	DivergesAtCounter  uint64   `json:"diverges_at_counter"`
}

// ListBranchesRes is the branch listing of a file.
type ListBranchesRes struct {
	ID       string   `json:"id"`
	Branches []Branch `json:"branches"`
}

// RequestNewBranch forks a branch at a counter.
type RequestNewBranch struct {
	ID                string `json:"id"`
	SourceBranchID    uint64 `json:"source_branch_id"`
	DivergesAtCounter uint64 `json:"diverges_at_counter"`
}

// RequestOnlyID addresses a branch of a file.
type RequestOnlyID struct {
	ID     string `json:"id"`
	Branch uint64 `json:"branch"`
}

// RequestFileMerge merges a File into a branch.
type RequestFileMerge struct {
	ID     string `json:"id"`
	File   File   `json:"file"`
	Branch uint64 `json:"branch"`
}

// FilteredPollNodeWillExecuteEventsRequest pulls pending custom-node work.
type FilteredPollNodeWillExecuteEventsRequest struct {
	ID string `json:"id"`
}

// NodeWillExecute describes why a node is about to run.
type NodeWillExecute struct {
	SourceNode                  string                         `json:"source_node"`
	ChangeValuesUsedInExecution []value.ChangeValueWithCounter `json:"change_values_used_in_execution"`
	MatchedQueryIndex           uint64                         `json:"matched_query_index"`
}

// NodeWillExecuteOnBranch is one unit of work for an external worker.
type NodeWillExecuteOnBranch struct {
	Branch             uint64          `json:"branch"`
	Counter            uint64          `json:"counter"`
	CustomNodeTypeName *string         `json:"custom_node_type_name,omitempty"`
	Node               NodeWillExecute `json:"node"`
}

// RespondPollNodeWillExecuteEvents is the result of one poll.
type RespondPollNodeWillExecuteEvents struct {
	NodeWillExecuteEvents []NodeWillExecuteOnBranch `json:"node_will_execute_events"`
}

// RequestAckNodeWillExecuteEvent claims a unit of work.
type RequestAckNodeWillExecuteEvent struct {
	ID      string `json:"id"`
	Branch  uint64 `json:"branch"`
	Counter uint64 `json:"counter"`
}

// FileAddressedChangeValueWithCounter pushes a worker's result.
type FileAddressedChangeValueWithCounter struct {
	ID       string                       `json:"id"`
	NodeName string                       `json:"node_name"`
	Branch   uint64                       `json:"branch"`
	Counter  uint64                       `json:"counter"`
	Change   value.ChangeValueWithCounter `json:"change"`
}
