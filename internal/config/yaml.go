package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/ir"
)

// ParseYAML reads a YAML setup mapping from data. name is used as the
// source path in errors and journal runs.
func ParseYAML(name string, data []byte) (*Source, error) {
	return loadYAML(name, data)
}

// loadYAML reads a setup mapping, either the document itself or its
// top-level setup key.
func loadYAML(path string, data []byte) (*Source, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, parseError(path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return &Source{Path: path}, nil
	}

	root := resolveAlias(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, shapeError(path, "setup must be a mapping, got %s", nodeKind(root))
	}
	if setup, ok := mappingValue(root, "setup"); ok {
		root = resolveAlias(setup)
		if root.Kind != yaml.MappingNode {
			return nil, shapeError(path, "setup must be a mapping, got %s", nodeKind(root))
		}
	}

	entries := make(engine.Entries, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		v, err := nodeValue(root.Content[i+1])
		if err != nil {
			return nil, shapeError(path, "entry %q: %v", key, err)
		}
		entries = append(entries, engine.Entry{Key: key, Value: v})
	}
	return &Source{Path: path, Entries: entries}, nil
}

func mappingValue(m *yaml.Node, key string) (*yaml.Node, bool) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1], true
		}
	}
	return nil, false
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// nodeValue converts a YAML node to an IR value.
func nodeValue(n *yaml.Node) (ir.IRValue, error) {
	n = resolveAlias(n)
	switch n.Kind {
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		out, err := ir.FromNative(v)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return out, nil
	case yaml.SequenceNode:
		arr := make(ir.IRArray, 0, len(n.Content))
		for i, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.MappingNode:
		obj := make(ir.IRObject, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Kind == yaml.ScalarNode && n.Content[i].Tag == "!!merge" {
				merged, err := nodeValue(n.Content[i+1])
				if err != nil {
					return nil, err
				}
				if m, ok := merged.(ir.IRObject); ok {
					for k, v := range m {
						if _, exists := obj[k]; !exists {
							obj[k] = v
						}
					}
				}
				continue
			}
			key := n.Content[i].Value
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			obj[key] = v
		}
		return obj, nil
	}
	return nil, fmt.Errorf("line %d: unsupported node %s", n.Line, nodeKind(n))
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.DocumentNode:
		return "document"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
