package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestSerializedValue_JSON(t *testing.T) {
	testCases := []struct {
		name  string
		value SerializedValue
		json  string
	}{
		{name: "null", value: Null(), json: `null`},
		{name: "bool", value: Bool(true), json: `true`},
		{name: "number", value: Number(1.5), json: `1.5`},
		{name: "string", value: String("hi"), json: `"hi"`},
		{name: "empty array", value: Array(), json: `[]`},
		{name: "empty object", value: Object(nil), json: `{}`},
		{
			name: "nested",
			value: Object(map[string]SerializedValue{
				"text": String("x"),
				"meta": Object(map[string]SerializedValue{"n": Number(2)}),
				"tags": Array(String("a"), Null()),
			}),
			json: `{"meta":{"n":2},"tags":["a",null],"text":"x"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.json, string(data))

			var decoded SerializedValue
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.True(t, tc.value.Equal(decoded), "decoded %s", string(data))
		})
	}
}

func TestFromNative_Unsupported(t *testing.T) {
	_, err := FromNative(map[string]any{"ch": make(chan int)})
	assert.ErrorContains(t, err, `field "ch"`)
}

func TestSerializedValue_Accessors(t *testing.T) {
	obj := Object(map[string]SerializedValue{"a": Number(1)})
	f, ok := obj.Field("a")
	require.True(t, ok)
	assert.Equal(t, 1.0, f.AsNumber())

	_, ok = String("x").Field("a")
	assert.False(t, ok)

	fields := obj.AsObject()
	fields["b"] = Null()
	_, ok = obj.Field("b")
	assert.False(t, ok, "AsObject must return a copy")

	assert.Equal(t, "object", obj.Kind().String())
	assert.True(t, Null().IsNull())
}

func TestCtyBridge(t *testing.T) {
	original := Object(map[string]SerializedValue{
		"text":  String("x"),
		"count": Number(3),
		"ok":    Bool(false),
		"items": Array(Number(1), String("two")),
		"none":  Null(),
	})

	ctyVal := original.ToCty()
	require.True(t, ctyVal.Type().IsObjectType())

	back, err := FromCty(ctyVal)
	require.NoError(t, err)
	assert.True(t, original.Equal(back))

	t.Run("list and map types", func(t *testing.T) {
		v := cty.ObjectVal(map[string]cty.Value{
			"l": cty.ListVal([]cty.Value{cty.StringVal("a")}),
			"m": cty.MapVal(map[string]cty.Value{"k": cty.NumberIntVal(7)}),
		})
		sv, err := FromCty(v)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"l": []any{"a"},
			"m": map[string]any{"k": 7.0},
		}, sv.ToNative())
	})

	t.Run("unknown values are rejected", func(t *testing.T) {
		_, err := FromCty(cty.UnknownVal(cty.String))
		assert.ErrorContains(t, err, "unknown value")
	})
}

func TestChangeValue(t *testing.T) {
	cv := NewChangeValue([]string{"A", "text"}, String("hi"), 3)
	assert.Equal(t, "A:text", cv.Path.String())
	assert.Equal(t, uint64(3), cv.Branch)

	data, err := json.Marshal(cv)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":{"address":["A","text"]},"value":"hi","branch":3}`, string(data))
}

func TestValidateCausality(t *testing.T) {
	ok := ChangeValueWithCounter{MonotonicCounter: 5, ParentMonotonicCounters: []uint64{1, 4}}
	assert.NoError(t, ok.ValidateCausality())

	empty := ChangeValueWithCounter{MonotonicCounter: 0}
	assert.NoError(t, empty.ValidateCausality())

	bad := ChangeValueWithCounter{MonotonicCounter: 5, ParentMonotonicCounters: []uint64{2, 5}}
	err := bad.ValidateCausality()
	assert.ErrorIs(t, err, ErrCausality)
	assert.ErrorContains(t, err, "parent counter 5")
}
