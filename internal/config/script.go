package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/resolve"
	"github.com/roach88/setuper/internal/validator"
)

// Functions a setup script may define. Only Setup is required.
const (
	scriptSetup      = "Setup"      // func() []map[string]any
	scriptProducers  = "Producers"  // func() map[string]ScriptProducer
	scriptCallables  = "Callables"  // func() map[string]ScriptCallable
	scriptValidators = "Validators" // func() map[string]ScriptValidator
)

// Reserved script entry fields, removed before registration. "key" names
// the entry (default: its index); "producer" names a Producers() function
// that computes the entry at registration.
const (
	scriptKeyField      = "key"
	scriptProducerField = "producer"
)

// Function shapes a script exposes through its maps.
type (
	ScriptProducer  = func(key string, entries []any, vars map[string]any) map[string]any
	ScriptCallable  = func(key string, args map[string]any, vars map[string]any) any
	ScriptValidator = func(value any) (any, error)
)

// loadScript interprets a Go setup script. Callables and validators are
// registered under the file's base name, so helpers in project.go are
// referenced as "@project::Name".
func loadScript(path string, data []byte) (*Source, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, shapeError(path, "script is empty")
	}
	namespace := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	i := interp.New(interp.Options{})
	i.Use(stdlib.Symbols)
	if _, err := i.EvalPath(path); err != nil {
		return nil, scriptError(path, "cannot interpret script", err)
	}

	src := &Source{Path: path}

	var producers map[string]ScriptProducer
	if err := callOptional(i, scriptProducers, &producers); err != nil {
		return nil, scriptError(path, scriptProducers+"()", err)
	}

	var setup []map[string]any
	found, err := callScript(i, scriptSetup, &setup)
	if err != nil {
		return nil, scriptError(path, scriptSetup+"()", err)
	}
	if !found {
		return nil, shapeError(path, "script must define func %s() []map[string]any", scriptSetup)
	}
	for idx, raw := range setup {
		entry, err := scriptEntry(idx, raw, producers)
		if err != nil {
			return nil, shapeError(path, "%s()[%d]: %v", scriptSetup, idx, err)
		}
		src.Entries = append(src.Entries, entry)
	}

	var callables map[string]ScriptCallable
	if err := callOptional(i, scriptCallables, &callables); err != nil {
		return nil, scriptError(path, scriptCallables+"()", err)
	}
	if len(callables) > 0 {
		src.Callables = make(map[string]resolve.Callable, len(callables))
		for name, fn := range callables {
			src.Callables[namespace+"::"+name] = adaptCallable(fn)
		}
	}

	var validators map[string]ScriptValidator
	if err := callOptional(i, scriptValidators, &validators); err != nil {
		return nil, scriptError(path, scriptValidators+"()", err)
	}
	if len(validators) > 0 {
		src.Validators = make(map[string]validator.Func, len(validators))
		for name, fn := range validators {
			src.Validators[namespace+"::"+name] = adaptValidator(fn)
		}
	}
	return src, nil
}

func scriptError(path, message string, err error) error {
	return &LoadError{Code: ErrCodeScript, Path: path, Message: message, Err: err}
}

func scriptEntry(idx int, raw map[string]any, producers map[string]ScriptProducer) (engine.Entry, error) {
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[k] = v
	}

	key := strconv.Itoa(idx)
	if k, ok := fields[scriptKeyField]; ok {
		s, isString := k.(string)
		if !isString || s == "" {
			return engine.Entry{}, fmt.Errorf("%s must be a non-empty string", scriptKeyField)
		}
		key = s
		delete(fields, scriptKeyField)
	}

	if p, ok := fields[scriptProducerField]; ok {
		name, _ := p.(string)
		fn, exists := producers[name]
		if !exists {
			return engine.Entry{}, fmt.Errorf("unknown producer %q", name)
		}
		return engine.Entry{Key: key, Producer: adaptProducer(fn)}, nil
	}

	value, err := ir.FromNative(fields)
	if err != nil {
		return engine.Entry{}, err
	}
	return engine.Entry{Key: key, Value: value}, nil
}

// callScript calls the script function name and stores its single result
// in out. found is false when the script does not define name.
func callScript(i *interp.Interpreter, name string, out any) (found bool, err error) {
	fn, err := i.Eval(name)
	if err != nil || !fn.IsValid() {
		return false, nil
	}
	if fn.Kind() != reflect.Func {
		return true, fmt.Errorf("%s is not a function", name)
	}
	if fn.Type().NumIn() != 0 || fn.Type().NumOut() != 1 {
		return true, fmt.Errorf("%s must take no arguments and return one value", name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	result := fn.Call(nil)[0]

	target := reflect.ValueOf(out).Elem()
	if !result.Type().AssignableTo(target.Type()) {
		return true, fmt.Errorf("%s returns %s, want %s", name, result.Type(), target.Type())
	}
	target.Set(result)
	return true, nil
}

func callOptional(i *interp.Interpreter, name string, out any) error {
	_, err := callScript(i, name, out)
	return err
}

func adaptProducer(fn ScriptProducer) engine.EntryProducer {
	return func(key string, entries engine.Entries, vars ir.IRObject) (value ir.IRValue, err error) {
		defer recoverScript(key, &err)

		native := make([]any, len(entries))
		for i, e := range entries {
			native[i] = ir.ToNative(e.Value)
		}
		return ir.FromNative(fn(key, native, nativeObject(vars)))
	}
}

func adaptCallable(fn ScriptCallable) resolve.Callable {
	return func(key string, args, vars ir.IRObject) (value ir.IRValue, err error) {
		defer recoverScript(key, &err)
		return ir.FromNative(fn(key, nativeObject(args), nativeObject(vars)))
	}
}

// adaptValidator turns script errors into validation failures, so prompts
// ask again.
func adaptValidator(fn ScriptValidator) validator.Func {
	return func(v ir.IRValue) (value ir.IRValue, err error) {
		defer recoverScript("validator", &err)
		out, verr := fn(ir.ToNative(v))
		if verr != nil {
			return nil, &validator.Failure{Message: verr.Error()}
		}
		return ir.FromNative(out)
	}
}

func nativeObject(obj ir.IRObject) map[string]any {
	out, _ := ir.ToNative(obj).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

func recoverScript(where string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("script %s panicked: %v", where, r)
	}
}
