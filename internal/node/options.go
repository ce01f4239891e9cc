package node

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator"
	"github.com/specialistvlad/chidori/internal/schema"
)

// Defaults applied when an option record leaves a field empty.
const (
	DefaultModel          = "GPT_3_5_TURBO"
	DefaultEngine         = "DENO"
	DefaultVectorAction   = "READ"
	DefaultEmbeddingModel = "TEXT_EMBEDDING_ADA_002"
	DefaultDBVendor       = "QDRANT"
)

const absentQuery = "None"

// ErrInvalidOptions reports an option record that failed validation.
var ErrInvalidOptions = errors.New("invalid node options")

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Names appear verbatim as query selections, so they must be identifiers.
	if err := v.RegisterValidation("nodename", func(fl validator.FieldLevel) bool {
		return nameRe.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// PromptOpts declares a prompt node.
type PromptOpts struct {
	Name         string `validate:"required,nodename"`
	Template     string `validate:"required"`
	Model        string
	Queries      []string
	Output       string
	OutputTables []string
}

// CustomOpts declares a node computed by an external worker.
type CustomOpts struct {
	Name         string `validate:"required,nodename"`
	TypeName     string `validate:"required"`
	Queries      []string
	Output       string
	OutputTables []string
}

// CodeOpts declares a code node.
type CodeOpts struct {
	Name         string `validate:"required,nodename"`
	Source       string `validate:"required"`
	Engine       string `validate:"omitempty,oneof=DENO STARLARK"`
	IsTemplate   bool
	Queries      []string
	Output       string
	OutputTables []string
}

// VectorMemoryOpts declares a vector memory node.
type VectorMemoryOpts struct {
	Name           string `validate:"required,nodename"`
	CollectionName string `validate:"required"`
	Action         string `validate:"omitempty,oneof=READ WRITE"`
	EmbeddingModel string
	Template       string
	DBVendor       string
	Queries        []string
	Output         string
	OutputTables   []string
}

// NewPrompt validates opts and builds a prompt Item.
func NewPrompt(opts PromptOpts) (*Item, error) {
	if err := check(opts, opts.Name); err != nil {
		return nil, err
	}
	return &Item{
		Core: newCore(opts.Name, opts.Queries, opts.Output, opts.OutputTables),
		Payload: Prompt{
			Template: opts.Template,
			Model:    orDefault(opts.Model, DefaultModel),
		},
	}, nil
}

// NewCustom validates opts and builds a custom Item.
func NewCustom(opts CustomOpts) (*Item, error) {
	if err := check(opts, opts.Name); err != nil {
		return nil, err
	}
	return &Item{
		Core:    newCore(opts.Name, opts.Queries, opts.Output, opts.OutputTables),
		Payload: Custom{TypeName: opts.TypeName},
	}, nil
}

// NewCode validates opts and builds a code Item.
func NewCode(opts CodeOpts) (*Item, error) {
	if err := check(opts, opts.Name); err != nil {
		return nil, err
	}
	return &Item{
		Core: newCore(opts.Name, opts.Queries, opts.Output, opts.OutputTables),
		Payload: Code{
			Engine:     orDefault(opts.Engine, DefaultEngine),
			Source:     opts.Source,
			IsTemplate: opts.IsTemplate,
		},
	}, nil
}

// NewVectorMemory validates opts and builds a vector memory Item.
func NewVectorMemory(opts VectorMemoryOpts) (*Item, error) {
	if err := check(opts, opts.Name); err != nil {
		return nil, err
	}
	return &Item{
		Core: newCore(opts.Name, opts.Queries, opts.Output, opts.OutputTables),
		Payload: VectorMemory{
			Action:         orDefault(opts.Action, DefaultVectorAction),
			EmbeddingModel: orDefault(opts.EmbeddingModel, DefaultEmbeddingModel),
			Template:       opts.Template,
			DBVendor:       orDefault(opts.DBVendor, DefaultDBVendor),
			CollectionName: opts.CollectionName,
		},
	}, nil
}

// RemapQueries turns the literal "None" into an absent query and keeps
// every other string, including "", as query text.
func RemapQueries(raw []string) []Query {
	out := make([]Query, 0, len(raw))
	for _, q := range raw {
		if q == absentQuery {
			out = append(out, Query{})
			continue
		}
		out = append(out, NewQuery(q))
	}
	return out
}

func newCore(name string, queries []string, output string, tables []string) Core {
	return Core{
		Name:         name,
		Queries:      RemapQueries(queries),
		Output:       orDefault(output, schema.DefaultOutput),
		OutputTables: append([]string{}, tables...),
	}
}

func check(opts any, name string) error {
	err := validate.Struct(opts)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w for %q: %s", ErrInvalidOptions, name, strings.Join(msgs, ", "))
	}
	return fmt.Errorf("%w for %q: %v", ErrInvalidOptions, name, err)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
