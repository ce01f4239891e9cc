package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/specialistvlad/chidori/internal/worker"
)

// Request is what out-of-process handlers receive for an event.
type Request struct {
	Branch  uint64                         `json:"branch"`
	Counter uint64                         `json:"counter"`
	Node    string                         `json:"node"`
	Type    string                         `json:"type,omitempty"`
	Inputs  []value.ChangeValueWithCounter `json:"inputs"`
}

// NewRequest describes ev for an out-of-process handler.
func NewRequest(ev worker.Event) Request {
	inputs := ev.Inputs()
	if inputs == nil {
		inputs = []value.ChangeValueWithCounter{}
	}
	return Request{
		Branch:  ev.Branch,
		Counter: ev.Counter,
		Node:    ev.NodeName(),
		Type:    ev.TypeName(),
		Inputs:  inputs,
	}
}

// Change is one value produced by an out-of-process handler. Path is
// relative to the node's output; an empty path sets the whole output.
type Change struct {
	Path  []string              `json:"path"`
	Value value.SerializedValue `json:"value"`
}

// ChangeValues places changes under nodeName.
func ChangeValues(nodeName string, changes []Change) []value.ChangeValue {
	out := make([]value.ChangeValue, 0, len(changes))
	for _, c := range changes {
		addr := append([]string{nodeName}, c.Path...)
		out = append(out, value.NewChangeValue(addr, c.Value, 0))
	}
	return out
}

// ParseChanges decodes a JSON array of Change. Output that is almost JSON,
// e.g. with single quotes or trailing commas, is repaired before it is
// rejected. Blank output means no changes.
func ParseChanges(out string) ([]Change, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	var changes []Change
	err := json.Unmarshal([]byte(out), &changes)
	if err == nil {
		return changes, nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(out)
	if repairErr != nil {
		return nil, fmt.Errorf("output is not JSON: %w (repair failed: %v)", err, repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), &changes); err != nil {
		return nil, fmt.Errorf("output is not a list of changes: %w", err)
	}
	return changes, nil
}
