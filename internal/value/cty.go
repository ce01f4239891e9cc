package value

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ToCty converts the value into a cty.Value. Arrays become tuples and
// objects become object values, so heterogeneous data is preserved.
func (v SerializedValue) ToCty() cty.Value {
	switch v.kind {
	case KindBool:
		return cty.BoolVal(v.b)
	case KindNumber:
		return cty.NumberFloatVal(v.n)
	case KindString:
		return cty.StringVal(v.s)
	case KindArray:
		if len(v.arr) == 0 {
			return cty.EmptyTupleVal
		}
		elems := make([]cty.Value, len(v.arr))
		for i, item := range v.arr {
			elems[i] = item.ToCty()
		}
		return cty.TupleVal(elems)
	case KindObject:
		if len(v.obj) == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, len(v.obj))
		for k, item := range v.obj {
			attrs[k] = item.ToCty()
		}
		return cty.ObjectVal(attrs)
	default:
		return cty.NullVal(cty.DynamicPseudoType)
	}
}

// FromCty converts a known cty.Value into a SerializedValue.
func FromCty(val cty.Value) (SerializedValue, error) {
	if !val.IsKnown() {
		return Null(), fmt.Errorf("cannot serialize an unknown value of type %s", val.Type().FriendlyName())
	}
	if val.IsNull() {
		return Null(), nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return String(val.AsString()), nil
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return Number(f), nil
	case ty == cty.Bool:
		return Bool(val.True()), nil
	case ty.IsObjectType() || ty.IsMapType():
		fields := make(map[string]SerializedValue, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			k, elem := it.Element()
			sv, err := FromCty(elem)
			if err != nil {
				return Null(), fmt.Errorf("attribute %q: %w", k.AsString(), err)
			}
			fields[k.AsString()] = sv
		}
		return SerializedValue{kind: KindObject, obj: fields}, nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		items := make([]SerializedValue, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			sv, err := FromCty(elem)
			if err != nil {
				return Null(), err
			}
			items = append(items, sv)
		}
		return SerializedValue{kind: KindArray, arr: items}, nil
	default:
		return Null(), fmt.Errorf("unsupported cty type for serialization: %s", ty.FriendlyName())
	}
}
