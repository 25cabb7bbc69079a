package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/ir"
)

// rawMember is one object member with its value left undecoded.
type rawMember struct {
	Key   string
	Value json.RawMessage
}

// loadJSON reads a bare setup object or a composer.json whose extra.setup
// holds it.
func loadJSON(path string, data []byte) (*Source, error) {
	members, err := orderedMembers(data)
	if err != nil {
		return nil, parseError(path, err)
	}

	if extra, ok := member(members, "extra"); ok {
		extraMembers, err := orderedMembers(extra)
		if err == nil {
			if setup, ok := member(extraMembers, "setup"); ok {
				if members, err = orderedMembers(setup); err != nil {
					return nil, shapeError(path, "extra.setup: %v", err)
				}
			}
		}
	}

	entries := make(engine.Entries, 0, len(members))
	for _, m := range members {
		v, err := ir.UnmarshalIRValue(m.Value)
		if err != nil {
			return nil, shapeError(path, "entry %q: %v", m.Key, err)
		}
		entries = append(entries, engine.Entry{Key: m.Key, Value: v})
	}
	return &Source{Path: path, Entries: entries}, nil
}

func member(members []rawMember, key string) (json.RawMessage, bool) {
	for _, m := range members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// orderedMembers decodes a JSON object's members in document order.
func orderedMembers(data []byte) ([]rawMember, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected an object")
	}

	var members []rawMember
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		members = append(members, rawMember{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return members, nil
}
