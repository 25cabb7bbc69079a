// Package console implements the user-facing side of prompt and write
// actions: an IO abstraction, an interactive terminal implementation built
// on bubbletea, and a scripted implementation for tests and
// non-interactive runs.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/validator"
)

// Verbosity orders output levels. A message is printed when its level is
// at most the IO's configured level.
type Verbosity int

const (
	Quiet Verbosity = iota
	Normal
	Verbose
	VeryVerbose
	Debug
)

var verbosityNames = map[string]Verbosity{
	"quiet":        Quiet,
	"normal":       Normal,
	"verbose":      Verbose,
	"very_verbose": VeryVerbose,
	"debug":        Debug,
}

// ParseVerbosity maps a verbosity name ("" means normal).
func ParseVerbosity(name string) (Verbosity, error) {
	if name == "" {
		return Normal, nil
	}
	v, ok := verbosityNames[strings.ToLower(name)]
	if !ok {
		return Normal, fmt.Errorf("unknown verbosity %q", name)
	}
	return v, nil
}

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("prompt aborted")

// ErrNoAnswer is returned by a scripted IO that ran out of answers.
var ErrNoAnswer = errors.New("no scripted answer left")

// Choice is one option of a select prompt.
type Choice struct {
	Key   string
	Label string
}

// IO is everything handlers need from the console.
type IO interface {
	// Write prints message when v is within the configured verbosity.
	Write(message string, v Verbosity)

	// Ask returns the answer, or def when the answer is empty.
	Ask(ctx context.Context, question string, def ir.IRValue) (ir.IRValue, error)

	// AskAndValidate re-asks until validate accepts the answer. Any error
	// other than a *validator.Failure ends the prompt.
	AskAndValidate(ctx context.Context, question string, validate validator.Func, def ir.IRValue) (ir.IRValue, error)

	// AskHidden reads an answer without echoing it.
	AskHidden(ctx context.Context, question string) (ir.IRValue, error)

	// Select returns the selected choice keys. errorMessage may contain %s
	// for the rejected value.
	Select(ctx context.Context, question string, choices []Choice, def string, errorMessage string, multiple bool) ([]string, error)

	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, question string, def bool) (bool, error)
}

// DefaultSelectError is used when a select action sets no error message.
const DefaultSelectError = `Value "%s" is invalid`

// answerOrDefault maps an empty answer to def (null when def is nil).
func answerOrDefault(answer string, def ir.IRValue) ir.IRValue {
	if answer == "" {
		if def == nil {
			return ir.IRNull{}
		}
		return def
	}
	return ir.IRString(answer)
}

// parseSelection maps a typed answer to choice keys. Values may be given by
// key or by label; multiple selections are comma separated.
func parseSelection(answer string, choices []Choice, def string, errorMessage string, multiple bool) ([]string, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = def
	}
	if errorMessage == "" {
		errorMessage = DefaultSelectError
	}

	parts := []string{answer}
	if multiple {
		parts = strings.Split(answer, ",")
	}

	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		key, ok := matchChoice(part, choices)
		if !ok {
			return nil, validator.Failf(errorMessage, part)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func matchChoice(value string, choices []Choice) (string, bool) {
	for _, c := range choices {
		if c.Key == value {
			return c.Key, true
		}
	}
	for _, c := range choices {
		if c.Label == value {
			return c.Key, true
		}
	}
	return "", false
}

// parseConfirmation interprets a yes/no answer. With a false default only
// answers starting with y are yes; with a true default only answers
// starting with n are no.
func parseConfirmation(answer string, def bool) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return def
	}
	if !def {
		return answer[0] == 'y'
	}
	return answer[0] != 'n'
}

// formatChoices renders the options listing shown above a select prompt.
func formatChoices(choices []Choice) string {
	var b strings.Builder
	for _, c := range choices {
		fmt.Fprintf(&b, "  [%s] %s\n", keyStyle.Render(c.Key), c.Label)
	}
	return b.String()
}
