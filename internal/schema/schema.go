// Package schema validates action descriptors against the embedded CUE
// contract (schema.cue).
//
// The contract is compiled once per Validator. Validation runs on the final,
// resolved and defaulted argument set of a descriptor; raw templates are
// never validated.
package schema

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/setuper/internal/ir"
)

//go:embed schema.cue
var source string

// Source returns the embedded CUE contract.
func Source() string {
	return source
}

// Violation describes why a descriptor does not satisfy the contract.
type Violation struct {
	// Action is the action name, empty when it could not be determined.
	Action string

	// Path is the dotted argument path, empty for whole-descriptor problems.
	Path string

	Message string
}

func (v *Violation) Error() string {
	switch {
	case v.Action != "" && v.Path != "":
		return fmt.Sprintf("%s: %s: %s", v.Action, v.Path, v.Message)
	case v.Path != "":
		return fmt.Sprintf("%s: %s", v.Path, v.Message)
	}
	return v.Message
}

// Validator holds the compiled contract.
// A Validator is safe for sequential use only; cue.Context is not
// goroutine-safe.
type Validator struct {
	ctx     *cue.Context
	actions cue.Value
	version string
	names   []string
}

// Load compiles the embedded contract.
func Load() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(source, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", firstError(err))
	}

	version, err := root.LookupPath(cue.ParsePath("version")).String()
	if err != nil {
		return nil, fmt.Errorf("schema version: %w", err)
	}

	actions := root.LookupPath(cue.ParsePath("#Actions"))
	if !actions.Exists() {
		return nil, fmt.Errorf("schema: #Actions not defined")
	}

	iter, err := actions.Fields()
	if err != nil {
		return nil, fmt.Errorf("schema actions: %w", err)
	}
	var names []string
	for iter.Next() {
		names = append(names, iter.Selector().String())
	}
	slices.Sort(names)

	return &Validator{ctx: ctx, actions: actions, version: version, names: names}, nil
}

// MustLoad is like Load but panics on error. The contract is embedded, so a
// failure is a build defect.
func MustLoad() *Validator {
	v, err := Load()
	if err != nil {
		panic(err)
	}
	return v
}

// Version returns the contract version.
func (v *Validator) Version() string {
	return v.version
}

// Actions returns the action names the contract defines, sorted.
func (v *Validator) Actions() []string {
	return slices.Clone(v.names)
}

// Validate checks a defaulted descriptor. It returns a *Violation on failure.
func (v *Validator) Validate(desc ir.IRObject) error {
	action, ok := desc[ir.KeyAction].(ir.IRString)
	if !ok || action == "" {
		return &Violation{Path: ir.KeyAction, Message: "action must be a non-empty string"}
	}
	name := string(action)

	def := v.actions.LookupPath(cue.MakePath(cue.Str(name)))
	if !def.Exists() {
		return &Violation{Action: name, Path: ir.KeyAction, Message: fmt.Sprintf("unknown action %q", name)}
	}

	data, err := ir.MarshalIRValue(desc)
	if err != nil {
		return &Violation{Action: name, Message: err.Error()}
	}
	value := v.ctx.CompileBytes(data, cue.Filename("descriptor.json"))
	if err := value.Err(); err != nil {
		return &Violation{Action: name, Message: err.Error()}
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return violationFrom(name, err)
	}
	return nil
}

// violationFrom converts the first CUE error, ordered by path, into a
// Violation with the path relative to the descriptor.
func violationFrom(action string, err error) *Violation {
	e := firstError(err)
	ce, ok := e.(errors.Error)
	if !ok {
		return &Violation{Action: action, Message: e.Error()}
	}

	path := ce.Path()
	if len(path) > 0 && path[0] == "#Actions" {
		path = path[1:]
	}
	if len(path) > 0 && path[0] == action {
		path = path[1:]
	}

	format, args := ce.Msg()
	return &Violation{
		Action:  action,
		Path:    strings.Join(path, "."),
		Message: fmt.Sprintf(format, args...),
	}
}

// firstError returns the CUE error with the lexically smallest path.
func firstError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	slices.SortStableFunc(errs, func(a, b errors.Error) int {
		return strings.Compare(strings.Join(a.Path(), "."), strings.Join(b.Path(), "."))
	})
	return errs[0]
}
