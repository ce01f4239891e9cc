// Package node defines graph node declarations and derives the queries that
// make one node react to another's output.
package node

import (
	"encoding/json"
	"fmt"
)

// Query is a dependency query. A nil Text is the explicit "no query"
// marker, distinct from an empty query string.
type Query struct {
	Text *string `json:"query,omitempty"`
}

// NewQuery wraps query text.
func NewQuery(text string) Query {
	return Query{Text: &text}
}

// IsAbsent reports whether the query is the explicit absence marker.
func (q Query) IsAbsent() bool { return q.Text == nil }

// String returns the query text, or "None" for an absent query.
func (q Query) String() string {
	if q.Text == nil {
		return absentQuery
	}
	return *q.Text
}

// Core holds the fields shared by every node flavor.
type Core struct {
	Name         string   `json:"name"`
	Queries      []Query  `json:"queries"`
	Output       string   `json:"output"`
	OutputTables []string `json:"output_tables"`
}

// PayloadKind names a node flavor.
type PayloadKind string

const (
	KindPrompt       PayloadKind = "prompt"
	KindCustom       PayloadKind = "custom"
	KindCode         PayloadKind = "code"
	KindVectorMemory PayloadKind = "vector_memory"
)

// Payload is the flavor-specific part of a node. The set of
// implementations is closed to this package.
type Payload interface {
	Kind() PayloadKind
	isPayload()
}

// Prompt is a templated call to a language model.
type Prompt struct {
	Template string `json:"template"`
	Model    string `json:"model"`
}

// Custom is a node computed by an external worker registered under TypeName.
type Custom struct {
	TypeName string `json:"type_name"`
}

// Code is a script evaluated by the runtime's code engine.
type Code struct {
	Engine     string `json:"engine"`
	Source     string `json:"source"`
	IsTemplate bool   `json:"is_template"`
}

// VectorMemory reads or writes an embedding collection.
type VectorMemory struct {
	Action         string `json:"action"`
	EmbeddingModel string `json:"embedding_model"`
	Template       string `json:"template"`
	DBVendor       string `json:"db_vendor"`
	CollectionName string `json:"collection_name"`
}

func (Prompt) Kind() PayloadKind       { return KindPrompt }
func (Custom) Kind() PayloadKind       { return KindCustom }
func (Code) Kind() PayloadKind         { return KindCode }
func (VectorMemory) Kind() PayloadKind { return KindVectorMemory }

func (Prompt) isPayload()       {}
func (Custom) isPayload()       {}
func (Code) isPayload()         {}
func (VectorMemory) isPayload() {}

// Item is a complete node declaration.
type Item struct {
	Core    Core
	Payload Payload
}

// Name returns the node's unique name.
func (it *Item) Name() string { return it.Core.Name }

// Clone returns a copy whose slices can be mutated independently.
func (it *Item) Clone() *Item {
	out := &Item{Core: it.Core, Payload: it.Payload}
	out.Core.Queries = append([]Query(nil), it.Core.Queries...)
	out.Core.OutputTables = append([]string(nil), it.Core.OutputTables...)
	return out
}

// wireItem mirrors the runtime's item message: the core plus exactly one
// populated payload field.
type wireItem struct {
	Core         Core          `json:"core"`
	Prompt       *Prompt       `json:"prompt,omitempty"`
	Custom       *Custom       `json:"custom,omitempty"`
	Code         *Code         `json:"code,omitempty"`
	VectorMemory *VectorMemory `json:"vector_memory,omitempty"`
}

// MarshalJSON encodes the item with its payload under the flavor's key.
func (it Item) MarshalJSON() ([]byte, error) {
	w := wireItem{Core: it.Core}
	if w.Core.Queries == nil {
		w.Core.Queries = []Query{}
	}
	if w.Core.OutputTables == nil {
		w.Core.OutputTables = []string{}
	}
	switch p := it.Payload.(type) {
	case Prompt:
		w.Prompt = &p
	case Custom:
		w.Custom = &p
	case Code:
		w.Code = &p
	case VectorMemory:
		w.VectorMemory = &p
	default:
		return nil, fmt.Errorf("node %q has no payload", it.Core.Name)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes an item and rejects zero or multiple payloads.
func (it *Item) UnmarshalJSON(data []byte) error {
	var w wireItem
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding node: %w", err)
	}
	var payloads []Payload
	if w.Prompt != nil {
		payloads = append(payloads, *w.Prompt)
	}
	if w.Custom != nil {
		payloads = append(payloads, *w.Custom)
	}
	if w.Code != nil {
		payloads = append(payloads, *w.Code)
	}
	if w.VectorMemory != nil {
		payloads = append(payloads, *w.VectorMemory)
	}
	if len(payloads) != 1 {
		return fmt.Errorf("node %q must carry exactly one payload, found %d", w.Core.Name, len(payloads))
	}
	it.Core = w.Core
	it.Payload = payloads[0]
	return nil
}
