package graph

import (
	"strings"
	"testing"

	"github.com/specialistvlad/chidori/internal/node"
	"github.com/specialistvlad/chidori/internal/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(t *testing.T, name, typeName string) *node.Item {
	t.Helper()
	it, err := node.NewCustom(node.CustomOpts{Name: name, TypeName: typeName})
	require.NoError(t, err)
	return it
}

func TestDiff(t *testing.T) {
	remote := runtime.File{Nodes: []*node.Item{item(t, "A", "t"), item(t, "B", "t"), item(t, "R", "t")}}
	local := runtime.File{Nodes: []*node.Item{item(t, "A", "t"), item(t, "B", "changed"), item(t, "N", "t")}}

	d, err := Diff(remote, local)
	require.NoError(t, err)
	assert.Equal(t, Delta{
		Added:      []string{"N"},
		Modified:   []string{"B"},
		Unchanged:  []string{"A"},
		RemoteOnly: []string{"R"},
	}, d)
	assert.False(t, d.IsEmpty())
}

func TestFileDigest(t *testing.T) {
	f1 := runtime.File{Nodes: []*node.Item{item(t, "A", "t"), item(t, "B", "t")}}
	f2 := runtime.File{Nodes: []*node.Item{item(t, "A", "t"), item(t, "B", "t")}}
	f3 := runtime.File{Nodes: []*node.Item{item(t, "B", "t"), item(t, "A", "t")}}

	d1, err := FileDigest(f1)
	require.NoError(t, err)
	d2, err := FileDigest(f2)
	require.NoError(t, err)
	d3, err := FileDigest(f3)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.NotEqual(t, d1, d3)
	assert.Len(t, d1, 64)
}

func TestDot(t *testing.T) {
	b := NewBuilder()
	a, err := b.PromptNode(node.PromptOpts{Name: "A", Template: "hi"})
	require.NoError(t, err)
	c, err := b.CustomNode(node.CustomOpts{Name: "B", TypeName: "summarize", Queries: []string{"None", "query Z { Z }"}})
	require.NoError(t, err)
	require.NoError(t, c.RunWhen(a))

	file := b.File()
	file.ID = "demo"
	out := Dot(file)

	assert.True(t, strings.HasPrefix(out, `digraph "demo" {`))
	assert.Contains(t, out, `"A" [label="A\nprompt"];`)
	assert.Contains(t, out, `"B" [label="B\ncustom: summarize"];`)
	assert.Contains(t, out, `"A" -> "B";`)
	assert.NotContains(t, out, `"Z"`, "selections outside the file are ignored")
}
