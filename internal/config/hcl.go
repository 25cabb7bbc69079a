package config

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/ir"
)

// hclRoot decodes the top-level action blocks of a setup file:
//
//	action "readme" {
//	  action  = "dump"
//	  file    = "README.md"
//	  content = "# {$name}"
//	}
type hclRoot struct {
	Actions []*hclAction `hcl:"action,block"`
}

type hclAction struct {
	Key  string   `hcl:"key,label"`
	Body hcl.Body `hcl:",remain"`
}

// loadHCL reads action blocks in file order. Attribute expressions are
// evaluated without variables or functions.
func loadHCL(path string, data []byte) (*Source, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, parseError(path, diags)
	}

	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, shapeError(path, "%s", diags.Error())
	}

	entries := make(engine.Entries, 0, len(root.Actions))
	for _, block := range root.Actions {
		attrs, diags := block.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, shapeError(path, "action %q: %s", block.Key, diags.Error())
		}

		obj := make(ir.IRObject, len(attrs))
		for _, attr := range sortedAttributes(attrs) {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, shapeError(path, "action %q: %s", block.Key, diags.Error())
			}
			v, err := ctyValue(val)
			if err != nil {
				return nil, shapeError(path, "action %q: %s: %v", block.Key, attr.Name, err)
			}
			obj[attr.Name] = v
		}
		entries = append(entries, engine.Entry{Key: block.Key, Value: obj})
	}
	return &Source{Path: path, Entries: entries}, nil
}

// sortedAttributes orders attributes by source position so errors are
// reported top to bottom.
func sortedAttributes(attrs hcl.Attributes) []*hcl.Attribute {
	out := make([]*hcl.Attribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Range.Start.Byte < out[j].Range.Start.Byte
	})
	return out
}

// ctyValue converts an evaluated HCL value to IR.
func ctyValue(val cty.Value) (ir.IRValue, error) {
	if val.IsNull() {
		return ir.IRNull{}, nil
	}
	if !val.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return ir.IRString(val.AsString()), nil
	case ty == cty.Bool:
		return ir.IRBool(val.True()), nil
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if !bf.IsInt() {
			return nil, fmt.Errorf("floats are not supported: %s", bf.String())
		}
		n, acc := bf.Int64()
		if acc != big.Exact {
			return nil, fmt.Errorf("number out of int64 range: %s", bf.String())
		}
		return ir.IRInt(n), nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		arr := make(ir.IRArray, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			v, err := ctyValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", len(arr), err)
			}
			arr = append(arr, v)
		}
		return arr, nil
	case ty.IsObjectType() || ty.IsMapType():
		obj := make(ir.IRObject, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			k, elem := it.Element()
			v, err := ctyValue(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k.AsString(), err)
			}
			obj[k.AsString()] = v
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported type %s", ty.FriendlyName())
}
