package harness

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/setuper/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s/%d %s %s (%s)\n", event.Seq, event.Event, event.Priority, event.Action, event.Key, event.Status)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result. File
// assertions are resolved against dir. Returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion, dir string) []string {
	var failures []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertVariable:
			err = assertVariable(result.Vars, assertion)
		case AssertFile:
			err = assertFile(dir, assertion)
		case AssertOutput:
			err = assertOutput(result.Output, assertion)
		case AssertProgress:
			err = assertProgress(result.Progress, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// assertTraceContains looks for an execution of the action whose args
// include every expected arg.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	expected, err := ir.FromNative(assertion.Args)
	if err != nil {
		return fmt.Errorf("trace_contains: args: %w", err)
	}
	want, _ := expected.(ir.IRObject)

	for _, event := range trace {
		if event.Action == assertion.Action && matchArgs(event.Args, want) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that actions first appear in the given order.
// Other executions may come in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Actions {
		found := false
		for pos < len(trace) {
			pos++
			if trace[pos-1].Action == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual:   fmt.Sprintf("%s not found after position %d", want, pos),
				Trace:    trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertVariable(vars ir.IRObject, assertion Assertion) error {
	want, err := ir.FromNative(assertion.Value)
	if err != nil {
		return fmt.Errorf("variable %s: %w", assertion.Variable, err)
	}
	got, ok := vars[assertion.Variable]
	if !ok {
		got = ir.IRNull{}
	}
	if !reflect.DeepEqual(got, want) {
		return &AssertionError{
			Type:     AssertVariable,
			Expected: fmt.Sprintf("%s = %s", assertion.Variable, render(want)),
			Actual:   fmt.Sprintf("%s = %s", assertion.Variable, render(got)),
		}
	}
	return nil
}

func assertFile(dir string, assertion Assertion) error {
	path := filepath.Join(dir, assertion.Path)
	wantExists := assertion.Exists == nil || *assertion.Exists

	fail := func(expected, actual string) error {
		return &AssertionError{Type: AssertFile, Expected: expected, Actual: actual}
	}

	info, err := os.Lstat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if wantExists {
			return fail(fmt.Sprintf("%s to exist", assertion.Path), "missing")
		}
		return nil
	case err != nil:
		return fail(fmt.Sprintf("%s to be readable", assertion.Path), err.Error())
	case !wantExists:
		return fail(fmt.Sprintf("%s not to exist", assertion.Path), "exists")
	}

	if assertion.Link != "" {
		if info.Mode()&os.ModeSymlink == 0 {
			return fail(fmt.Sprintf("%s to be a symlink", assertion.Path), info.Mode().String())
		}
		target, err := os.Readlink(path)
		if err != nil {
			return fail(fmt.Sprintf("%s -> %s", assertion.Path, assertion.Link), err.Error())
		}
		if target != assertion.Link {
			return fail(fmt.Sprintf("%s -> %s", assertion.Path, assertion.Link), fmt.Sprintf("%s -> %s", assertion.Path, target))
		}
	}

	if assertion.Content == nil && assertion.Contains == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(fmt.Sprintf("%s to be readable", assertion.Path), err.Error())
	}
	if assertion.Content != nil && string(data) != *assertion.Content {
		return fail(fmt.Sprintf("%s content %q", assertion.Path, *assertion.Content), fmt.Sprintf("%q", data))
	}
	if assertion.Contains != "" && !strings.Contains(string(data), assertion.Contains) {
		return fail(fmt.Sprintf("%s containing %q", assertion.Path, assertion.Contains), fmt.Sprintf("%q", data))
	}
	return nil
}

func assertOutput(output string, assertion Assertion) error {
	if !strings.Contains(output, assertion.Text) {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("output containing %q", assertion.Text),
			Actual:   fmt.Sprintf("%q", output),
		}
	}
	return nil
}

func assertProgress(progress []string, assertion Assertion) error {
	if !slices.Equal(progress, assertion.Lines) {
		return &AssertionError{
			Type:     AssertProgress,
			Expected: strings.Join(assertion.Lines, "; "),
			Actual:   strings.Join(progress, "; "),
		}
	}
	return nil
}

// matchArgs reports whether actual holds every expected key with an equal
// value. Extra keys in actual are ignored.
func matchArgs(actual, expected ir.IRObject) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func render(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
