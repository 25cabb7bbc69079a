package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/setuper/internal/ir"
)

// LoadAnswers reads a YAML list of prompt answers, consumed in order by
// the scripted console. Scalars are used in their text form; null is an
// empty answer, which selects a prompt's default.
func LoadAnswers(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Path: path, Message: "cannot read answers", Err: err}
	}

	var raw []any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, parseError(path, err)
	}

	answers, err := AnswerStrings(raw)
	if err != nil {
		return nil, shapeError(path, "%v", err)
	}
	return answers, nil
}

// AnswerStrings converts decoded answers to their text form. Null becomes
// an empty answer; collections are rejected.
func AnswerStrings(raw []any) ([]string, error) {
	answers := make([]string, 0, len(raw))
	for i, r := range raw {
		v, err := ir.FromNative(r)
		if err != nil {
			return nil, fmt.Errorf("answer %d: %w", i, err)
		}
		if ir.IsNull(v) {
			answers = append(answers, "")
			continue
		}
		s, ok := ir.Text(v)
		if !ok {
			return nil, fmt.Errorf("answer %d: expected a scalar, got %s", i, ir.KindOf(v))
		}
		answers = append(answers, s)
	}
	return answers, nil
}

// ParseVars parses key=value assignments used to seed the variable store.
// Values stay strings.
func ParseVars(assignments []string) (ir.IRObject, error) {
	out := make(ir.IRObject, len(assignments))
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q, want key=value", a)
		}
		out[key] = ir.IRString(value)
	}
	return out, nil
}
