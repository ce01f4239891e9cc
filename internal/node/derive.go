package node

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/specialistvlad/chidori/internal/address"
	"github.com/specialistvlad/chidori/internal/schema"
	"github.com/zclconf/go-cty/cty"
	"lukechampine.com/blake3"
)

// Individual is the derived, addressable view of a node.
type Individual struct {
	Name        string
	OutputType  cty.Type
	OutputPath  address.Path
	OutputPaths []address.Path
}

// Derive parses the node's output schema and computes its paths. The node's
// own output lives at [name]; every schema leaf is addressed below it.
func Derive(it *Item) (*Individual, error) {
	ty, err := schema.Parse(it.Core.Output)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", it.Core.Name, err)
	}
	root := address.New(it.Core.Name)
	return &Individual{
		Name:        it.Core.Name,
		OutputType:  ty,
		OutputPath:  root,
		OutputPaths: schema.Leaves(root, ty),
	}, nil
}

// QueryFor builds a query that selects every field of the node's output:
//
//	query A { A { text meta { n } } }
//
// A node with an empty output schema yields `query A { A }`.
func QueryFor(ind *Individual) string {
	var sb strings.Builder
	sb.WriteString("query ")
	sb.WriteString(ind.Name)
	sb.WriteString(" { ")
	sb.WriteString(ind.Name)
	writeSelection(&sb, ind.OutputType)
	sb.WriteString(" }")
	return sb.String()
}

func writeSelection(sb *strings.Builder, ty cty.Type) {
	if !ty.IsObjectType() || len(ty.AttributeTypes()) == 0 {
		return
	}
	attrs := ty.AttributeTypes()
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	sb.WriteString(" {")
	for _, name := range names {
		sb.WriteByte(' ')
		sb.WriteString(name)
		writeSelection(sb, attrs[name])
	}
	sb.WriteString(" }")
}

// References returns the top-level selections of a query in the form
// produced by QueryFor, in order of appearance. Text that does not follow
// that form yields nil.
func References(query string) []string {
	tokens := tokenize(query)
	if len(tokens) < 4 || tokens[0] != "query" || tokens[2] != "{" {
		return nil
	}
	var refs []string
	depth := 0
	for _, tok := range tokens[2:] {
		switch tok {
		case "{":
			depth++
		case "}":
			depth--
			if depth < 0 {
				return nil
			}
		default:
			if depth == 1 {
				refs = append(refs, tok)
			}
		}
	}
	if depth != 0 {
		return nil
	}
	return refs
}

func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '{' || r == '}':
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// Digest fingerprints an item's canonical JSON encoding with BLAKE3.
func Digest(it *Item) (string, error) {
	data, err := json.Marshal(it)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
