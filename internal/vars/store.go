// Package vars holds the flat variable store shared by one pipeline run.
//
// The store is written by prompt and set handlers and read by the value
// resolver. It has no scoping: every write is visible to every later read,
// last write wins. A Store is not safe for concurrent use; the engine runs
// handlers one at a time.
package vars

import (
	"github.com/roach88/setuper/internal/ir"
)

// Store is a mutable name -> value mapping.
type Store struct {
	vals ir.IRObject
}

// New creates a store seeded with a copy of seed (nil is allowed).
func New(seed ir.IRObject) *Store {
	s := &Store{vals: make(ir.IRObject, len(seed))}
	for k, v := range seed {
		s.vals[k] = v
	}
	return s
}

// Get returns the value stored under name.
func (s *Store) Get(name string) (ir.IRValue, bool) {
	v, ok := s.vals[name]
	return v, ok
}

// Set stores v under name, replacing any previous value.
func (s *Store) Set(name string, v ir.IRValue) {
	if v == nil {
		v = ir.IRNull{}
	}
	s.vals[name] = v
}

// Append adds v to the list stored under name.
// A missing or non-list value is replaced by a fresh list.
func (s *Store) Append(name string, v ir.IRValue) {
	existing, _ := s.vals[name].(ir.IRArray)
	next := make(ir.IRArray, 0, len(existing)+1)
	next = append(next, existing...)
	s.vals[name] = append(next, v)
}

// Snapshot returns a shallow copy of the current values.
func (s *Store) Snapshot() ir.IRObject {
	return s.vals.Clone()
}

// Len returns the number of stored variables.
func (s *Store) Len() int {
	return len(s.vals)
}
