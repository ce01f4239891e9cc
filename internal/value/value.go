// Package value defines the serialized value model exchanged with the
// execution runtime and the change records that carry values to paths.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
)

// Kind identifies the variant held by a SerializedValue.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// SerializedValue is a JSON-like tagged union. The zero value is Null.
type SerializedValue struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []SerializedValue
	obj  map[string]SerializedValue
}

func Null() SerializedValue            { return SerializedValue{} }
func Bool(b bool) SerializedValue      { return SerializedValue{kind: KindBool, b: b} }
func Number(n float64) SerializedValue { return SerializedValue{kind: KindNumber, n: n} }
func String(s string) SerializedValue  { return SerializedValue{kind: KindString, s: s} }

// Array builds an array value. The slice is copied.
func Array(items ...SerializedValue) SerializedValue {
	if items == nil {
		items = []SerializedValue{}
	}
	return SerializedValue{kind: KindArray, arr: slices.Clone(items)}
}

// Object builds an object value. The map is copied.
func Object(fields map[string]SerializedValue) SerializedValue {
	if fields == nil {
		fields = map[string]SerializedValue{}
	}
	return SerializedValue{kind: KindObject, obj: maps.Clone(fields)}
}

func (v SerializedValue) Kind() Kind    { return v.kind }
func (v SerializedValue) IsNull() bool  { return v.kind == KindNull }
func (v SerializedValue) AsBool() bool  { return v.b }
func (v SerializedValue) AsNumber() float64 { return v.n }
func (v SerializedValue) AsString() string  { return v.s }

// AsArray returns a copy of the array items, or nil for other kinds.
func (v SerializedValue) AsArray() []SerializedValue {
	return slices.Clone(v.arr)
}

// AsObject returns a copy of the object fields, or nil for other kinds.
func (v SerializedValue) AsObject() map[string]SerializedValue {
	return maps.Clone(v.obj)
}

// Field looks up an object field.
func (v SerializedValue) Field(name string) (SerializedValue, bool) {
	if v.kind != KindObject {
		return SerializedValue{}, false
	}
	f, ok := v.obj[name]
	return f, ok
}

// Equal reports deep equality.
func (v SerializedValue) Equal(other SerializedValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindArray:
		return slices.EqualFunc(v.arr, other.arr, SerializedValue.Equal)
	case KindObject:
		return maps.EqualFunc(v.obj, other.obj, SerializedValue.Equal)
	}
	return false
}

// FromNative converts a decoded JSON-style Go value.
func FromNative(data any) (SerializedValue, error) {
	switch v := data.(type) {
	case nil:
		return Null(), nil
	case SerializedValue:
		return v, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case float64:
		return Number(v), nil
	case float32:
		return Number(float64(v)), nil
	case int:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case uint64:
		return Number(float64(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid number %q: %w", v.String(), err)
		}
		return Number(f), nil
	case []any:
		items := make([]SerializedValue, 0, len(v))
		for i, item := range v {
			sv, err := FromNative(item)
			if err != nil {
				return Null(), fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, sv)
		}
		return SerializedValue{kind: KindArray, arr: items}, nil
	case map[string]any:
		fields := make(map[string]SerializedValue, len(v))
		for key, item := range v {
			sv, err := FromNative(item)
			if err != nil {
				return Null(), fmt.Errorf("field %q: %w", key, err)
			}
			fields[key] = sv
		}
		return SerializedValue{kind: KindObject, obj: fields}, nil
	default:
		return Null(), fmt.Errorf("unsupported type for serialized value: %T", v)
	}
}

// ToNative converts to nil, bool, float64, string, []any or map[string]any.
func (v SerializedValue) ToNative() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.ToNative()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.ToNative()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes the value as plain JSON with sorted object keys.
func (v SerializedValue) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v SerializedValue) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool, KindString:
		b, _ := json.Marshal(v.ToNative())
		buf.Write(b)
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return fmt.Errorf("number %v cannot be encoded as JSON", v.n)
		}
		b, _ := json.Marshal(v.n)
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.obj[k].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON decodes plain JSON.
func (v *SerializedValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decoding serialized value: %w", err)
	}
	sv, err := FromNative(raw)
	if err != nil {
		return err
	}
	*v = sv
	return nil
}
