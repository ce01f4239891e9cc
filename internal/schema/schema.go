// Package schema parses node output schemas and derives the value paths
// they expose.
//
// An output schema is an HCL type expression whose top level is an object:
//
//	object({ text = string, meta = object({ n = number }) })
//
// Attribute names must be identifiers so that every leaf is addressable as
// a path segment and selectable in a derived query.
package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/chidori/internal/address"
	"github.com/specialistvlad/chidori/internal/value"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// DefaultOutput is used when a node declares no output schema.
const DefaultOutput = "object({})"

// ErrSchema reports an output schema that cannot be turned into paths.
var ErrSchema = errors.New("schema-derivation error")

// Parse converts schema text into a cty object type.
func Parse(text string) (cty.Type, error) {
	if text == "" {
		text = DefaultOutput
	}
	expr, diags := hclsyntax.ParseExpression([]byte(text), "output", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.NilType, fmt.Errorf("%w: %s", ErrSchema, diags.Error())
	}
	ty, err := typeExprToCtyType(expr)
	if err != nil {
		return cty.NilType, fmt.Errorf("%w: %s", ErrSchema, err)
	}
	if !ty.IsObjectType() {
		return cty.NilType, fmt.Errorf("%w: output schema must be an object type, got %s", ErrSchema, ty.FriendlyName())
	}
	return ty, nil
}

// Leaves returns every addressable leaf under root in sorted order. Nested
// objects are descended into; any other type, and an empty object, is a leaf.
func Leaves(root address.Path, ty cty.Type) []address.Path {
	if !ty.IsObjectType() || len(ty.AttributeTypes()) == 0 {
		return []address.Path{root}
	}
	attrs := ty.AttributeTypes()
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []address.Path
	for _, name := range names {
		out = append(out, Leaves(root.Child(name), attrs[name])...)
	}
	return out
}

// Conform checks that v can be represented by ty.
func Conform(ty cty.Type, v value.SerializedValue) error {
	if _, err := convert.Convert(v.ToCty(), ty); err != nil {
		return fmt.Errorf("value does not match output schema %s: %w", ty.FriendlyName(), err)
	}
	return nil
}

// typeExprToCtyType converts an HCL type expression into its cty.Type equivalent.
func typeExprToCtyType(expr hcl.Expression) (cty.Type, error) {
	switch v := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		if v.Name == "object" {
			return objectTypeFromCall(v)
		}

		if len(v.Args) != 1 {
			return cty.DynamicPseudoType, fmt.Errorf("type constructors (list, map, set) require exactly one argument, got %d", len(v.Args))
		}
		elementType, err := typeExprToCtyType(v.Args[0])
		if err != nil {
			return cty.DynamicPseudoType, err
		}
		if elementType == cty.DynamicPseudoType {
			return cty.DynamicPseudoType, fmt.Errorf("collection types cannot contain type 'any'")
		}

		switch v.Name {
		case "list":
			return cty.List(elementType), nil
		case "map":
			return cty.Map(elementType), nil
		case "set":
			return cty.Set(elementType), nil
		default:
			return cty.DynamicPseudoType, fmt.Errorf("unknown type constructor function %q", v.Name)
		}

	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return cty.DynamicPseudoType, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		switch name := v.Traversal.RootName(); name {
		case "string":
			return cty.String, nil
		case "number":
			return cty.Number, nil
		case "bool":
			return cty.Bool, nil
		case "any":
			return cty.DynamicPseudoType, nil
		default:
			return cty.DynamicPseudoType, fmt.Errorf("unknown primitive type %q", name)
		}

	default:
		return cty.DynamicPseudoType, fmt.Errorf("unsupported expression for type definition: %T", v)
	}
}

func objectTypeFromCall(call *hclsyntax.FunctionCallExpr) (cty.Type, error) {
	if len(call.Args) != 1 {
		return cty.DynamicPseudoType, fmt.Errorf("the object() type constructor requires exactly one argument, got %d", len(call.Args))
	}
	objExpr, ok := call.Args[0].(*hclsyntax.ObjectConsExpr)
	if !ok {
		return cty.DynamicPseudoType, fmt.Errorf("the argument to object() must be an object literal like { key = type, ... }, got %T", call.Args[0])
	}

	attrTypes := make(map[string]cty.Type, len(objExpr.Items))
	for _, item := range objExpr.Items {
		key, err := objectKey(item.KeyExpr)
		if err != nil {
			return cty.DynamicPseudoType, err
		}
		if _, dup := attrTypes[key]; dup {
			return cty.DynamicPseudoType, fmt.Errorf("duplicate attribute %q in object type", key)
		}
		valueType, err := typeExprToCtyType(item.ValueExpr)
		if err != nil {
			return cty.DynamicPseudoType, fmt.Errorf("in object attribute '%s': %w", key, err)
		}
		attrTypes[key] = valueType
	}
	return cty.Object(attrTypes), nil
}

// objectKey extracts an attribute name. Quoted keys are accepted only when
// they are also valid identifiers.
func objectKey(expr hclsyntax.Expression) (string, error) {
	var key string
	if keyExpr, ok := expr.(*hclsyntax.ObjectConsKeyExpr); ok {
		switch kexpr := keyExpr.Wrapped.(type) {
		case *hclsyntax.ScopeTraversalExpr:
			if len(kexpr.Traversal) == 1 {
				key = kexpr.Traversal.RootName()
			}
		case *hclsyntax.TemplateExpr:
			if len(kexpr.Parts) == 1 {
				if lit, isLit := kexpr.Parts[0].(*hclsyntax.LiteralValueExpr); isLit && lit.Val.Type().Equals(cty.String) {
					key = lit.Val.AsString()
				}
			}
		}
	}
	if key == "" {
		return "", fmt.Errorf("invalid key in object type definition: keys must be simple identifiers")
	}
	if !hclsyntax.ValidIdentifier(key) {
		return "", fmt.Errorf("attribute name %q is not addressable: names must be identifiers", key)
	}
	return key, nil
}

// TypeAt returns the type found by descending ty through object attributes
// named by segs.
func TypeAt(ty cty.Type, segs []string) (cty.Type, bool) {
	for _, seg := range segs {
		if !ty.IsObjectType() || !ty.HasAttribute(seg) {
			return cty.NilType, false
		}
		ty = ty.AttributeType(seg)
	}
	return ty, true
}
