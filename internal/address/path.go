package address

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// DefaultDelimiter joins path segments into query result keys.
const DefaultDelimiter = ":"

// Path is an ordered list of segments addressing a value.
type Path struct {
	segments []string
}

// New builds a Path from segments. The slice is copied.
func New(segments ...string) Path {
	return Path{segments: slices.Clone(segments)}
}

// Parse splits a joined key back into a Path.
func Parse(raw, delim string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("path cannot be empty")
	}
	if delim == "" {
		return Path{}, fmt.Errorf("path delimiter cannot be empty")
	}
	parts := strings.Split(raw, delim)
	for _, p := range parts {
		if p == "" {
			return Path{}, fmt.Errorf("path %q contains an empty segment", raw)
		}
	}
	return Path{segments: parts}, nil
}

// Segments returns a copy of the path's segments.
func (p Path) Segments() []string {
	return slices.Clone(p.segments)
}

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segments) }

// IsEmpty reports whether the path has no segments.
func (p Path) IsEmpty() bool { return len(p.segments) == 0 }

// Child returns a new path with seg appended.
func (p Path) Child(seg string) Path {
	out := make([]string, 0, len(p.segments)+1)
	out = append(out, p.segments...)
	return Path{segments: append(out, seg)}
}

// HasPrefix reports whether prefix is a leading sub-path of p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.segments) > len(p.segments) {
		return false
	}
	return slices.Equal(p.segments[:len(prefix.segments)], prefix.segments)
}

// Join concatenates the segments with delim.
func (p Path) Join(delim string) string {
	return strings.Join(p.segments, delim)
}

// String joins the path with DefaultDelimiter.
func (p Path) String() string {
	return p.Join(DefaultDelimiter)
}

// Equal compares two paths segment by segment.
func (p Path) Equal(other Path) bool {
	return slices.Equal(p.segments, other.segments)
}

type wirePath struct {
	Address []string `json:"address"`
}

// MarshalJSON encodes the path as {"address": [...]}.
func (p Path) MarshalJSON() ([]byte, error) {
	segs := p.segments
	if segs == nil {
		segs = []string{}
	}
	return json.Marshal(wirePath{Address: segs})
}

// UnmarshalJSON decodes {"address": [...]}.
func (p *Path) UnmarshalJSON(data []byte) error {
	var w wirePath
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding path: %w", err)
	}
	p.segments = w.Address
	return nil
}
