package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/setuper/internal/engine"
)

// Scenario is one end-to-end setup test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// RunID fixes the run id. Default: testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Config is a setup source file, relative to the scenario file.
	// Exactly one of Config and Setup must be given.
	Config string `yaml:"config,omitempty"`

	// Setup is an inline YAML setup mapping. Entry order is kept.
	Setup yaml.Node `yaml:"setup,omitempty"`

	// Answers are consumed in order by prompts. A null answer takes the
	// prompt's default.
	Answers []any `yaml:"answers,omitempty"`

	// NoInteraction answers prompts past the end of Answers with their
	// defaults instead of failing.
	NoInteraction bool `yaml:"no_interaction,omitempty"`

	// Vars seeds the variable store.
	Vars map[string]any `yaml:"vars,omitempty"`

	// Events are emitted in order. Default: [setup].
	Events []string `yaml:"events,omitempty"`

	// Files are created in the working directory before the run.
	Files map[string]string `yaml:"files,omitempty"`

	// KeepGoing continues past failed dispatches.
	KeepGoing bool `yaml:"keep_going,omitempty"`

	// Expect describes an expected failure. Without it the run must
	// succeed.
	Expect *Expectation `yaml:"expect,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// Expectation matches a failed run.
type Expectation struct {
	// Code is the engine error code: CONFIGURATION, RESOLUTION,
	// VALIDATION or HANDLER.
	Code string `yaml:"code,omitempty"`

	// Error is a substring of the error message.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace, the variables, the files or the output.
type Assertion struct {
	Type string `yaml:"type"`

	// Action is used by trace_contains and trace_count.
	Action string `yaml:"action,omitempty"`

	// Args are matched as a subset by trace_contains.
	Args map[string]any `yaml:"args,omitempty"`

	// Count is used by trace_count.
	Count int `yaml:"count,omitempty"`

	// Actions is the expected order for trace_order.
	Actions []string `yaml:"actions,omitempty"`

	// Variable and Value are used by variable.
	Variable string `yaml:"variable,omitempty"`
	Value    any    `yaml:"value,omitempty"`

	// Path, Exists, Content, Contains and Link are used by file. Path is
	// relative to the working directory; Exists defaults to true.
	Path     string  `yaml:"path,omitempty"`
	Exists   *bool   `yaml:"exists,omitempty"`
	Content  *string `yaml:"content,omitempty"`
	Contains string  `yaml:"contains,omitempty"`
	Link     string  `yaml:"link,omitempty"`

	// Text is used by output.
	Text string `yaml:"text,omitempty"`

	// Lines is used by progress.
	Lines []string `yaml:"lines,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertVariable      = "variable"
	AssertFile          = "file"
	AssertOutput        = "output"
	AssertProgress      = "progress"
)

var errorCodes = map[string]bool{
	string(engine.ErrCodeConfiguration): true,
	string(engine.ErrCodeResolution):    true,
	string(engine.ErrCodeValidation):    true,
	string(engine.ErrCodeHandler):       true,
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly. Config is resolved against the scenario's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(filepath.Dir(path), scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func hasSetup(s *Scenario) bool {
	return s.Setup.Kind != 0
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	switch {
	case s.Config == "" && !hasSetup(s):
		return fmt.Errorf("one of config or setup is required")
	case s.Config != "" && hasSetup(s):
		return fmt.Errorf("config and setup are mutually exclusive")
	}
	if s.Config != "" {
		if _, err := os.Stat(s.Config); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", s.Config)
		}
	}

	for name := range s.Files {
		if filepath.IsAbs(name) || !filepath.IsLocal(name) {
			return fmt.Errorf("files: %q must be a relative path inside the working directory", name)
		}
	}

	if s.Expect != nil && s.Expect.Code != "" && !errorCodes[s.Expect.Code] {
		return fmt.Errorf("expect: unknown code %q", s.Expect.Code)
	}

	if len(s.Assertions) == 0 && s.Expect == nil {
		return fmt.Errorf("assertions list is required unless a failure is expected")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertVariable:
		if a.Variable == "" {
			return fmt.Errorf("assertions[%d]: variable is required for variable", index)
		}
	case AssertFile:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for file", index)
		}
	case AssertOutput:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output", index)
		}
	case AssertProgress:
		if a.Lines == nil {
			return fmt.Errorf("assertions[%d]: lines is required for progress", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
