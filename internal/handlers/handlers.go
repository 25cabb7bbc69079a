// Package handlers implements the built-in action table: console prompts,
// variable assignment and filesystem operations.
//
// Handlers receive fully resolved arguments. Arguments that name files
// accept a string or a list; paired arguments are zipped element-wise, with
// a single value broadcast to every key.
package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/roach88/setuper/internal/console"
	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/validator"
	"github.com/roach88/setuper/internal/vars"
)

// Options configures a Table.
type Options struct {
	// IO receives writes and answers prompts. Required for prompt actions.
	IO console.IO

	// Vars is the store prompts and set write to. Usually the engine's.
	Vars *vars.Store

	// Validators resolves insert validator names.
	// Default: validator.NewTable().
	Validators *validator.Table

	// Dir is the base for relative paths. Empty means the process
	// working directory.
	Dir string
}

// Table maps action names to handlers. It implements engine.HandlerTable.
type Table struct {
	io         console.IO
	vars       *vars.Store
	validators *validator.Table
	dir        string
	handlers   map[string]engine.Handler
}

// New builds the table of built-in actions.
func New(opts Options) *Table {
	t := &Table{
		io:         opts.IO,
		vars:       opts.Vars,
		validators: opts.Validators,
		dir:        opts.Dir,
	}
	if t.vars == nil {
		t.vars = vars.New(nil)
	}
	if t.validators == nil {
		t.validators = validator.NewTable()
	}

	t.handlers = map[string]engine.Handler{
		"write":     engine.HandlerFunc(t.write),
		"set":       engine.HandlerFunc(t.set),
		"insert":    engine.HandlerFunc(t.insert),
		"secret":    engine.HandlerFunc(t.secret),
		"select":    engine.HandlerFunc(t.selectChoice),
		"confirm":   engine.HandlerFunc(t.confirm),
		"directory": engine.HandlerFunc(t.directory),
		"symlink":   engine.HandlerFunc(t.symlink),
		"rename":    engine.HandlerFunc(t.rename),
		"copy":      engine.HandlerFunc(t.copy),
		"move":      engine.HandlerFunc(t.move),
		"remove":    engine.HandlerFunc(t.remove),
		"owner":     engine.HandlerFunc(t.owner),
		"group":     engine.HandlerFunc(t.group),
		"mode":      engine.HandlerFunc(t.mode),
		"dump":      engine.HandlerFunc(t.dump),
		"append":    engine.HandlerFunc(t.appendFile),
		"replace":   engine.HandlerFunc(t.replace),
	}
	return t
}

// Lookup implements engine.HandlerTable.
func (t *Table) Lookup(action string) (engine.Handler, bool) {
	h, ok := t.handlers[action]
	return h, ok
}

// Register adds or replaces a handler.
func (t *Table) Register(action string, h engine.Handler) {
	t.handlers[action] = h
}

// Names returns the action names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.handlers))
	for n := range t.handlers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (t *Table) path(p string) string {
	if t.dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(t.dir, p)
}

func (t *Table) paths(args ir.IRObject, key string) ([]string, error) {
	list, err := ir.StringList(args[key])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = t.path(p)
	}
	return out, nil
}

// text returns a required string argument.
func text(args ir.IRObject, key string) (string, error) {
	s, ok := ir.Text(args[key])
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %s", key, ir.KindOf(args[key]))
	}
	return s, nil
}

// values spreads a scalar or list argument into its elements.
func values(v ir.IRValue) []ir.IRValue {
	switch val := v.(type) {
	case nil:
		return nil
	case ir.IRArray:
		return val
	}
	return []ir.IRValue{v}
}

type pair struct {
	key   string
	value ir.IRValue
}

// zip pairs keys with vals element-wise. A single value is broadcast to
// every key.
func zip(keys []string, vals []ir.IRValue) ([]pair, error) {
	if len(vals) == 1 {
		out := make([]pair, len(keys))
		for i, k := range keys {
			out[i] = pair{k, vals[0]}
		}
		return out, nil
	}
	if len(keys) != len(vals) {
		return nil, fmt.Errorf("cannot pair %d entries with %d values", len(keys), len(vals))
	}
	out := make([]pair, len(keys))
	for i, k := range keys {
		out[i] = pair{k, vals[i]}
	}
	return out, nil
}

// pairPaths zips the paths under keyArg with the values under valArg.
func (t *Table) pairPaths(args ir.IRObject, keyArg, valArg string) ([]pair, error) {
	keys, err := t.paths(args, keyArg)
	if err != nil {
		return nil, err
	}
	return zip(keys, values(args[valArg]))
}

func (t *Table) needIO() error {
	if t.io == nil {
		return fmt.Errorf("no console attached")
	}
	return nil
}

var _ engine.HandlerTable = (*Table)(nil)

// ctxErr lets long filesystem loops stop on cancellation.
func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
