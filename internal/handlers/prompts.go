package handlers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/setuper/internal/console"
	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/validator"
)

func (t *Table) write(_ context.Context, args ir.IRObject) error {
	if err := t.needIO(); err != nil {
		return err
	}
	message, err := text(args, "message")
	if err != nil {
		return err
	}
	level := ""
	if v, ok := ir.Text(args["verbose"]); ok {
		level = v
	}
	verbosity, err := console.ParseVerbosity(level)
	if err != nil {
		return err
	}
	t.io.Write(message, verbosity)
	return nil
}

func (t *Table) set(_ context.Context, args ir.IRObject) error {
	name, err := text(args, "variable")
	if err != nil {
		return err
	}
	t.vars.Set(name, args["value"])
	return nil
}

func (t *Table) insert(ctx context.Context, args ir.IRObject) error {
	if err := t.needIO(); err != nil {
		return err
	}
	name, message, err := promptArgs(args)
	if err != nil {
		return err
	}

	names, err := validator.NamesOf(args[ir.KeyValidator])
	if err != nil {
		return err
	}
	if ir.Truthy(args["required"]) {
		names = append([]string{validator.Required}, names...)
	}

	def := args["default"]
	var answer ir.IRValue
	if len(names) == 0 {
		answer, err = t.io.Ask(ctx, message, def)
	} else {
		var validate validator.Func
		if validate, err = t.validators.Build(names); err != nil {
			return err
		}
		answer, err = t.io.AskAndValidate(ctx, message, validate, def)
	}
	if err != nil {
		return err
	}
	t.vars.Set(name, answer)
	return nil
}

func (t *Table) secret(ctx context.Context, args ir.IRObject) error {
	if err := t.needIO(); err != nil {
		return err
	}
	name, message, err := promptArgs(args)
	if err != nil {
		return err
	}
	answer, err := t.io.AskHidden(ctx, message)
	if err != nil {
		return err
	}
	t.vars.Set(name, answer)
	return nil
}

// selectChoice asks for one or more choices and stores the chosen values,
// not their keys. Multiple selections append to the variable.
func (t *Table) selectChoice(ctx context.Context, args ir.IRObject) error {
	if err := t.needIO(); err != nil {
		return err
	}
	name, message, err := promptArgs(args)
	if err != nil {
		return err
	}

	choices, values, err := choicesOf(args["choices"])
	if err != nil {
		return err
	}
	def, _ := ir.Text(args["default"])
	errorMessage, _ := ir.Text(args["error"])
	multiple := ir.Truthy(args["multiple"])

	keys, err := t.io.Select(ctx, message, choices, def, errorMessage, multiple)
	if err != nil {
		return err
	}

	if !multiple {
		if len(keys) != 1 {
			return fmt.Errorf("select: expected one choice, got %d", len(keys))
		}
		t.vars.Set(name, values[keys[0]])
		return nil
	}
	for _, k := range keys {
		t.vars.Append(name, values[k])
	}
	return nil
}

func (t *Table) confirm(ctx context.Context, args ir.IRObject) error {
	if err := t.needIO(); err != nil {
		return err
	}
	name, message, err := promptArgs(args)
	if err != nil {
		return err
	}
	def := true
	if b, ok := args["default"].(ir.IRBool); ok {
		def = bool(b)
	}
	answer, err := t.io.Confirm(ctx, message, def)
	if err != nil {
		return err
	}
	t.vars.Set(name, ir.IRBool(answer))
	return nil
}

func promptArgs(args ir.IRObject) (variable, message string, err error) {
	if variable, err = text(args, "variable"); err != nil {
		return "", "", err
	}
	if message, err = text(args, "message"); err != nil {
		return "", "", err
	}
	return variable, message, nil
}

// choicesOf lists select choices. Lists are keyed by index, mappings by
// their keys in sorted order.
func choicesOf(v ir.IRValue) ([]console.Choice, map[string]ir.IRValue, error) {
	values := map[string]ir.IRValue{}
	var keys []string

	switch c := v.(type) {
	case ir.IRArray:
		for i, elem := range c {
			k := strconv.Itoa(i)
			keys = append(keys, k)
			values[k] = elem
		}
	case ir.IRObject:
		keys = c.SortedKeys()
		for _, k := range keys {
			values[k] = c[k]
		}
	default:
		return nil, nil, fmt.Errorf("choices: expected list or mapping, got %s", ir.KindOf(v))
	}
	if len(keys) == 0 {
		return nil, nil, fmt.Errorf("choices: empty")
	}

	choices := make([]console.Choice, 0, len(keys))
	for _, k := range keys {
		label, ok := ir.Text(values[k])
		if !ok {
			return nil, nil, fmt.Errorf("choices[%s]: expected scalar, got %s", k, ir.KindOf(values[k]))
		}
		choices = append(choices, console.Choice{Key: k, Label: label})
	}
	return choices, values, nil
}
