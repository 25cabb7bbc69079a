package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/setuper/internal/ir"
)

// Callable computes a value from its context. key is the argument key the
// reference was found under, args the entry's unresolved arguments and vars a
// snapshot of the variable store.
type Callable func(key string, args ir.IRObject, vars ir.IRObject) (ir.IRValue, error)

// Callables is the capability table consulted for callable references.
// Names use the form namespace::function.
type Callables struct {
	fns map[string]Callable
}

// NewCallables returns an empty table.
func NewCallables() *Callables {
	return &Callables{fns: make(map[string]Callable)}
}

// Register adds fn under name. Names must be unique and well formed.
func (c *Callables) Register(name string, fn Callable) error {
	if !validName(name) {
		return fmt.Errorf("invalid callable name %q: want namespace::function", name)
	}
	if fn == nil {
		return fmt.Errorf("callable %q: nil function", name)
	}
	if _, exists := c.fns[name]; exists {
		return fmt.Errorf("callable %q already registered", name)
	}
	c.fns[name] = fn
	return nil
}

// Lookup returns the callable registered under name.
func (c *Callables) Lookup(name string) (Callable, bool) {
	fn, ok := c.fns[name]
	return fn, ok
}

// Names returns the registered names in sorted order.
func (c *Callables) Names() []string {
	names := make([]string, 0, len(c.fns))
	for n := range c.fns {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func validName(name string) bool {
	ns, fn, ok := strings.Cut(name, "::")
	return ok && ns != "" && fn != "" && !strings.ContainsAny(name, " \t\r\n")
}

// Builtins returns a table with the callables every run provides.
func Builtins() *Callables {
	c := NewCallables()
	_ = c.Register("setup::cwd", cwd)
	_ = c.Register("setup::dirname", dirname)
	_ = c.Register("setup::env", env)
	_ = c.Register("setup::uuid", newUUID)
	return c
}

func cwd(string, ir.IRObject, ir.IRObject) (ir.IRValue, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return ir.IRString(dir), nil
}

func dirname(string, ir.IRObject, ir.IRObject) (ir.IRValue, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return ir.IRString(filepath.Base(dir)), nil
}

// env reads the environment variable named after the upper-cased key.
// An unset variable resolves to null.
func env(key string, _ ir.IRObject, _ ir.IRObject) (ir.IRValue, error) {
	v, ok := os.LookupEnv(strings.ToUpper(key))
	if !ok {
		return ir.IRNull{}, nil
	}
	return ir.IRString(v), nil
}

func newUUID(string, ir.IRObject, ir.IRObject) (ir.IRValue, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return ir.IRString(id.String()), nil
}
