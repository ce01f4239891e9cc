package node

import (
	"testing"

	"github.com/specialistvlad/chidori/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCustom(t *testing.T, name, output string) *Item {
	t.Helper()
	it, err := NewCustom(CustomOpts{Name: name, TypeName: "t", Output: output})
	require.NoError(t, err)
	return it
}

func TestDerive(t *testing.T) {
	it := mustCustom(t, "A", "object({ text = string, meta = object({ n = number }) })")

	ind, err := Derive(it)
	require.NoError(t, err)
	assert.Equal(t, "A", ind.OutputPath.String())

	var paths []string
	for _, p := range ind.OutputPaths {
		paths = append(paths, p.String())
	}
	assert.Equal(t, []string{"A:meta:n", "A:text"}, paths)

	again, err := Derive(it)
	require.NoError(t, err)
	assert.Equal(t, len(ind.OutputPaths), len(again.OutputPaths))
	for i := range ind.OutputPaths {
		assert.True(t, ind.OutputPaths[i].Equal(again.OutputPaths[i]))
	}
}

func TestDerive_InvalidSchema(t *testing.T) {
	it := mustCustom(t, "A", "list(string)")
	_, err := Derive(it)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrSchema)
	assert.ErrorContains(t, err, `node "A"`)
}

func TestQueryFor(t *testing.T) {
	testCases := []struct {
		name     string
		output   string
		expected string
	}{
		{name: "empty schema", output: "", expected: "query A { A }"},
		{name: "flat", output: "object({ text = string, n = number })", expected: "query A { A { n text } }"},
		{
			name:     "nested",
			output:   "object({ text = string, meta = object({ n = number }) })",
			expected: "query A { A { meta { n } text } }",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ind, err := Derive(mustCustom(t, "A", tc.output))
			require.NoError(t, err)
			q := QueryFor(ind)
			assert.Equal(t, tc.expected, q)
			assert.Equal(t, []string{"A"}, References(q))
		})
	}
}

func TestReferences(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, References("query X { A { text } B }"))
	assert.Nil(t, References("not a query"))
	assert.Nil(t, References("query X { A"))
	assert.Nil(t, References(""))
}

func TestDigest(t *testing.T) {
	a := mustCustom(t, "A", "")
	b := mustCustom(t, "A", "")
	c := mustCustom(t, "A", "object({ x = string })")

	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)
	dc, err := Digest(c)
	require.NoError(t, err)

	assert.Len(t, da, 64)
	assert.Equal(t, da, db)
	assert.NotEqual(t, da, dc)
}
