// Package validator provides prompt answer validators and their name table.
//
// A validator receives a value and returns the (possibly transformed) value
// or a *Failure. Chains run left to right, each validator receiving the
// previous output.
package validator

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/setuper/internal/ir"
)

// Func validates and optionally transforms a value.
type Func func(ir.IRValue) (ir.IRValue, error)

// Failure is a validation rejection. Prompts re-ask on Failure; any other
// error aborts the prompt.
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// Failf creates a Failure with a formatted message.
func Failf(format string, args ...any) *Failure {
	return &Failure{Message: fmt.Sprintf(format, args...)}
}

// IsFailure reports whether err is or wraps a *Failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// Builtin validator names.
const (
	Required = "setup::required"
	Trim     = "setup::trim"
	Lower    = "setup::lower"
	Upper    = "setup::upper"
	Integer  = "setup::integer"
)

// RequireValue rejects null.
func RequireValue(v ir.IRValue) (ir.IRValue, error) {
	if ir.IsNull(v) {
		return nil, &Failure{Message: "Value is required"}
	}
	return v, nil
}

func stringFunc(fn func(string) string) Func {
	return func(v ir.IRValue) (ir.IRValue, error) {
		s, ok := v.(ir.IRString)
		if !ok {
			return v, nil
		}
		return ir.IRString(fn(string(s))), nil
	}
}

func integer(v ir.IRValue) (ir.IRValue, error) {
	switch val := v.(type) {
	case ir.IRInt:
		return val, nil
	case ir.IRString:
		n, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64)
		if err != nil {
			return nil, Failf("%q is not an integer", string(val))
		}
		return ir.IRInt(n), nil
	}
	return nil, Failf("expected an integer, got %s", ir.KindOf(v))
}

// Chain composes fns left to right.
func Chain(fns ...Func) Func {
	return func(v ir.IRValue) (ir.IRValue, error) {
		var err error
		for _, fn := range fns {
			if v, err = fn(v); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
}

// Table maps validator names to functions.
// Not safe for concurrent registration.
type Table struct {
	fns map[string]Func
}

// NewTable returns a table holding the builtin validators.
func NewTable() *Table {
	return &Table{fns: map[string]Func{
		Required: RequireValue,
		Trim:     stringFunc(strings.TrimSpace),
		Lower:    stringFunc(strings.ToLower),
		Upper:    stringFunc(strings.ToUpper),
		Integer:  integer,
	}}
}

// Register adds fn under name.
func (t *Table) Register(name string, fn Func) error {
	if name == "" || fn == nil {
		return fmt.Errorf("validator: empty name or nil function")
	}
	if _, exists := t.fns[name]; exists {
		return fmt.Errorf("validator %q already registered", name)
	}
	t.fns[name] = fn
	return nil
}

// Lookup returns the function for name. A leading "@" is ignored so
// validators can be written like callable references.
func (t *Table) Lookup(name string) (Func, bool) {
	fn, ok := t.fns[strings.TrimPrefix(name, "@")]
	return fn, ok
}

// Names returns registered names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.fns))
	for n := range t.fns {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Build resolves names into one chained function.
func (t *Table) Build(names []string) (Func, error) {
	fns := make([]Func, 0, len(names))
	for _, n := range names {
		fn, ok := t.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("undefined validator %s()", n)
		}
		fns = append(fns, fn)
	}
	return Chain(fns...), nil
}

// NamesOf extracts validator names from an argument value (string or list).
func NamesOf(v ir.IRValue) ([]string, error) {
	names, err := ir.StringList(v)
	if err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}
	return names, nil
}
