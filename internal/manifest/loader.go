package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/chidori/internal/ctxlog"
	"github.com/specialistvlad/chidori/internal/graph"
	"github.com/specialistvlad/chidori/internal/node"
	"github.com/zclconf/go-cty/cty"
)

var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "prompt", LabelNames: []string{"name"}},
		{Type: "custom", LabelNames: []string{"name"}},
		{Type: "code", LabelNames: []string{"name"}},
		{Type: "vector_memory", LabelNames: []string{"name"}},
	},
}

// commonBody holds the attributes every block accepts; the rest is decoded
// per block type.
type commonBody struct {
	Queries      []string       `hcl:"queries,optional"`
	Output       hcl.Expression `hcl:"output,optional"`
	OutputTables []string       `hcl:"output_tables,optional"`
	RunWhen      hcl.Expression `hcl:"run_when,optional"`
	Remain       hcl.Body       `hcl:",remain"`
}

type promptBody struct {
	Template string `hcl:"template"`
	Model    string `hcl:"model,optional"`
}

type customBody struct {
	TypeName string `hcl:"type_name"`
}

type codeBody struct {
	Source     string `hcl:"source"`
	Engine     string `hcl:"engine,optional"`
	IsTemplate bool   `hcl:"is_template,optional"`
}

type vectorMemoryBody struct {
	CollectionName string `hcl:"collection_name"`
	Action         string `hcl:"action,optional"`
	EmbeddingModel string `hcl:"embedding_model,optional"`
	Template       string `hcl:"template,optional"`
	DBVendor       string `hcl:"db_vendor,optional"`
}

// pendingWire is a run_when entry waiting for every block to be declared.
type pendingWire struct {
	dependent  string
	dependency string
	rng        hcl.Range
}

// Load reads every .hcl file under paths and declares its blocks on a new
// Builder. A path may be a file or a directory; files are read in sorted
// order.
func Load(ctx context.Context, paths ...string) (*graph.Builder, error) {
	b := graph.NewBuilder()
	if err := LoadInto(ctx, b, paths...); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadInto declares the blocks found under paths on b.
func LoadInto(ctx context.Context, b *graph.Builder, paths ...string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Manifest loader started.", "path_count", len(paths))

	files, err := findAllHCLFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	var wires []pendingWire
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		content, diags := hclFile.Body.Content(rootSchema)
		if diags.HasErrors() {
			return fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		for _, block := range content.Blocks {
			w, err := declare(ctx, b, block, hclFile.Bytes)
			if err != nil {
				return err
			}
			wires = append(wires, w...)
		}
	}

	for _, w := range wires {
		if err := b.Wire(w.dependent, w.dependency); err != nil {
			return fmt.Errorf("%s: run_when %q: %w", w.rng, w.dependency, err)
		}
	}

	logger.Debug("Manifest loading complete.", "files", len(files), "nodes", b.Len(), "edges", len(wires))
	return nil
}

func declare(ctx context.Context, b *graph.Builder, block *hcl.Block, src []byte) ([]pendingWire, error) {
	name := block.Labels[0]

	var common commonBody
	if diags := gohcl.DecodeBody(block.Body, nil, &common); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s %q: %w", block.Type, name, diags)
	}
	output, err := outputText(ctx, common.Output, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %s %q: %w", block.DefRange, block.Type, name, err)
	}

	var it *node.Item
	switch block.Type {
	case "prompt":
		var body promptBody
		if diags := gohcl.DecodeBody(common.Remain, nil, &body); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s %q: %w", block.Type, name, diags)
		}
		it, err = node.NewPrompt(node.PromptOpts{
			Name: name, Template: body.Template, Model: body.Model,
			Queries: common.Queries, Output: output, OutputTables: common.OutputTables,
		})
	case "custom":
		var body customBody
		if diags := gohcl.DecodeBody(common.Remain, nil, &body); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s %q: %w", block.Type, name, diags)
		}
		it, err = node.NewCustom(node.CustomOpts{
			Name: name, TypeName: body.TypeName,
			Queries: common.Queries, Output: output, OutputTables: common.OutputTables,
		})
	case "code":
		var body codeBody
		if diags := gohcl.DecodeBody(common.Remain, nil, &body); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s %q: %w", block.Type, name, diags)
		}
		it, err = node.NewCode(node.CodeOpts{
			Name: name, Source: body.Source, Engine: body.Engine, IsTemplate: body.IsTemplate,
			Queries: common.Queries, Output: output, OutputTables: common.OutputTables,
		})
	case "vector_memory":
		var body vectorMemoryBody
		if diags := gohcl.DecodeBody(common.Remain, nil, &body); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s %q: %w", block.Type, name, diags)
		}
		it, err = node.NewVectorMemory(node.VectorMemoryOpts{
			Name: name, CollectionName: body.CollectionName, Action: body.Action,
			EmbeddingModel: body.EmbeddingModel, Template: body.Template, DBVendor: body.DBVendor,
			Queries: common.Queries, Output: output, OutputTables: common.OutputTables,
		})
	default:
		return nil, fmt.Errorf("%s: unsupported block type %q", block.DefRange, block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", block.DefRange, err)
	}
	if _, err := node.Derive(it); err != nil {
		return nil, fmt.Errorf("%s: %w", block.DefRange, err)
	}
	if _, err := b.Declare(it); err != nil {
		return nil, fmt.Errorf("%s: %w", block.DefRange, err)
	}

	deps, err := runWhen(ctx, common.RunWhen)
	if err != nil {
		return nil, fmt.Errorf("%s: %s %q: %w", block.DefRange, block.Type, name, err)
	}
	wires := make([]pendingWire, 0, len(deps))
	for _, dep := range deps {
		wires = append(wires, pendingWire{dependent: name, dependency: dep, rng: common.RunWhen.Range()})
	}
	return wires, nil
}

// outputText returns the schema text of an output attribute. A string value
// is used as is; any other expression is taken verbatim from the source.
func outputText(ctx context.Context, expr hcl.Expression, src []byte) (string, error) {
	if !isExprDefined(ctx, expr, "output") {
		return "", nil
	}
	if len(expr.Variables()) == 0 {
		if val, diags := expr.Value(nil); !diags.HasErrors() && val.Type() == cty.String && val.IsKnown() && !val.IsNull() {
			return val.AsString(), nil
		}
	}
	return string(expr.Range().SliceBytes(src)), nil
}

// runWhen lists the node names of a run_when attribute. Entries may be bare
// names or strings.
func runWhen(ctx context.Context, expr hcl.Expression) ([]string, error) {
	if !isExprDefined(ctx, expr, "run_when") {
		return nil, nil
	}
	items, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, fmt.Errorf("run_when must be a list: %w", diags)
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		if trav, diags := hcl.AbsTraversalForExpr(item); !diags.HasErrors() && len(trav) == 1 {
			names = append(names, trav.RootName())
			continue
		}
		val, diags := item.Value(nil)
		if diags.HasErrors() || val.Type() != cty.String || val.IsNull() {
			return nil, fmt.Errorf("%s: run_when entries must be node names", item.Range())
		}
		names = append(names, val.AsString())
	}
	return names, nil
}

// isExprDefined reports whether an optional attribute was written in the
// source. gohcl fills omitted optional expressions with a zero-width
// placeholder, so a nil check is not enough.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	rng := expr.Range()
	defined := rng.End.Byte > rng.Start.Byte
	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.", "attribute", attrName, "hcl_range", rng.String(), "is_defined", defined)
	return defined
}

// findAllHCLFiles walks all given paths and returns a sorted list of the
// .hcl files found.
func findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			if filepath.Ext(path) != ".hcl" {
				return nil, fmt.Errorf("%s is not an .hcl file", path)
			}
			add(path)
			continue
		}
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(allFiles)
	return allFiles, nil
}
