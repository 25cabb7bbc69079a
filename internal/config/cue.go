package config

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/ir"
)

// loadCUE reads the setup struct of a CUE file, or the whole file when it
// has no setup field. Fields come back in declaration order.
func loadCUE(path string, data []byte) (*Source, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, parseError(path, err)
	}

	setup := v.LookupPath(cue.ParsePath("setup"))
	if !setup.Exists() {
		setup = v
	}
	if setup.IncompleteKind() != cue.StructKind {
		return nil, shapeError(path, "setup must be a struct, got %s", setup.IncompleteKind())
	}

	iter, err := setup.Fields()
	if err != nil {
		return nil, shapeError(path, "setup: %v", err)
	}

	var entries engine.Entries
	for iter.Next() {
		key := iter.Selector().Unquoted()
		data, err := iter.Value().MarshalJSON()
		if err != nil {
			return nil, shapeError(path, "entry %q: %v", key, err)
		}
		value, err := ir.UnmarshalIRValue(data)
		if err != nil {
			return nil, shapeError(path, "entry %q: %v", key, err)
		}
		entries = append(entries, engine.Entry{Key: key, Value: value})
	}
	return &Source{Path: path, Entries: entries}, nil
}
