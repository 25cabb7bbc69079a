// Package resolve rewrites setup arguments against the variable store.
//
// Only scalar string leaves change. In order of precedence a leaf may be:
//
//	@namespace::function  callable reference, replaced by the call result
//	$name                 direct reference, replaced by the raw stored value when truthy
//	...{$name}...         interpolation, each placeholder replaced by a scalar's text
//
// Interpolated booleans read "1" for true and "" for false. Callable
// references under a key named "validator" are kept as written so validator
// names survive until a prompt needs them; variables there still resolve.
// Resolution is single pass: text produced by a substitution is never
// resolved again.
package resolve

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/vars"
)

// CallableSigil marks a string leaf as a callable reference.
const CallableSigil = "@"

var placeholderPattern = regexp.MustCompile(`\{\$([A-Za-z_\x{80}-\x{10FFFF}][A-Za-z0-9_\x{80}-\x{10FFFF}]*)\}`)

// ErrUnknownCallable is wrapped by Error when a reference names nothing in
// the capability table.
var ErrUnknownCallable = errors.New("unknown callable")

// Error reports a callable reference that could not be resolved.
type Error struct {
	// Reference is the callable name without its sigil.
	Reference string

	// Path locates the leaf inside the argument tree ("default", "files.1").
	Path string

	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolve %s at %q: %v", e.Reference, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Resolver applies the rewrite rules using one store and one capability table.
type Resolver struct {
	vars      *vars.Store
	callables *Callables
}

// New creates a resolver. A nil table resolves no callables.
func New(store *vars.Store, callables *Callables) *Resolver {
	if callables == nil {
		callables = NewCallables()
	}
	return &Resolver{vars: store, callables: callables}
}

// Resolve returns a rewritten copy of args. args itself is not modified.
func (r *Resolver) Resolve(args ir.IRObject) (ir.IRObject, error) {
	w := walker{r: r, args: args, snapshot: r.vars.Snapshot()}
	out, err := w.object(args, "", false)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsCallableReference reports whether s has the shape of a callable
// reference. Strings with whitespace are plain text.
func IsCallableReference(s string) bool {
	name, ok := strings.CutPrefix(s, CallableSigil)
	return ok && validName(name)
}

// walker carries the per-call state: the original arguments handed to
// callables and one store snapshot shared by every leaf.
type walker struct {
	r        *Resolver
	args     ir.IRObject
	snapshot ir.IRObject
}

func (w walker) object(obj ir.IRObject, path string, exempt bool) (ir.IRObject, error) {
	out := make(ir.IRObject, len(obj))
	for _, k := range obj.SortedKeys() {
		v, err := w.value(obj[k], k, join(path, k), exempt || k == ir.KeyValidator)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (w walker) value(v ir.IRValue, key, path string, exempt bool) (ir.IRValue, error) {
	switch val := v.(type) {
	case ir.IRObject:
		return w.object(val, path, exempt)
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			idx := strconv.Itoa(i)
			resolved, err := w.value(elem, idx, join(path, idx), exempt)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case ir.IRString:
		return w.leaf(string(val), key, path, exempt)
	default:
		return v, nil
	}
}

func (w walker) leaf(s, key, path string, exempt bool) (ir.IRValue, error) {
	if !exempt && IsCallableReference(s) {
		name := strings.TrimPrefix(s, CallableSigil)
		fn, ok := w.r.callables.Lookup(name)
		if !ok {
			return nil, &Error{Reference: name, Path: path, Err: ErrUnknownCallable}
		}
		out, err := fn(key, w.args, w.snapshot)
		if err != nil {
			return nil, &Error{Reference: name, Path: path, Err: err}
		}
		if out == nil {
			out = ir.IRNull{}
		}
		return out, nil
	}

	if name, ok := strings.CutPrefix(s, "$"); ok && name != "" {
		if stored, found := w.snapshot[name]; found && ir.Truthy(stored) {
			return stored, nil
		}
	}

	if !strings.Contains(s, "{$") {
		return ir.IRString(s), nil
	}
	return ir.IRString(w.interpolate(s)), nil
}

func (w walker) interpolate(s string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if text, ok := interpolationText(w.snapshot[name]); ok {
			return text
		}
		return match
	})
}

func interpolationText(v ir.IRValue) (string, bool) {
	if b, ok := v.(ir.IRBool); ok {
		if b {
			return "1", true
		}
		return "", true
	}
	return ir.Text(v)
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
