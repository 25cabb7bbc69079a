package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/setuper/internal/config"
	"github.com/roach88/setuper/internal/console"
	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/journal"
	"github.com/roach88/setuper/internal/pipeline"
	"github.com/roach88/setuper/internal/testutil"
)

// DefaultEvents are emitted when a scenario names none.
var DefaultEvents = []string{ir.DefaultEvent}

// Run executes a scenario and returns its result.
//
// Each scenario runs in its own temporary directory and in-memory journal,
// both discarded afterwards. A returned error means the scenario itself
// could not be set up (bad fixtures, unreadable config); a run that fails
// or misses an assertion is reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "setuper-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := writeFiles(dir, scenario.Files); err != nil {
		return nil, err
	}

	src, err := loadSource(scenario)
	if err != nil {
		return nil, err
	}

	answers, err := config.AnswerStrings(scenario.Answers)
	if err != nil {
		return nil, fmt.Errorf("answers: %w", err)
	}
	seed, err := seedVars(scenario.Vars)
	if err != nil {
		return nil, err
	}

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	var out bytes.Buffer
	io := console.NewScripted(&out, answers...)
	io.UseDefaults = scenario.NoInteraction
	progress := &testutil.RecordingNotifier{}

	result := NewResult()
	result.RunID = scenario.RunID
	if result.RunID == "" {
		result.RunID = testutil.DefaultRunID
	}

	events := scenario.Events
	if len(events) == 0 {
		events = DefaultEvents
	}

	p, err := pipeline.Build(ctx, pipeline.Options{
		Source:    src,
		IO:        io,
		Dir:       dir,
		Vars:      seed,
		Journal:   j,
		RunIDs:    testutil.NewFixedRunGenerator(result.RunID),
		KeepGoing: scenario.KeepGoing,
		Quiet:     true,
		Notifiers: []engine.Notifier{progress},
	})
	if err == nil {
		err = p.Run(ctx, events)
		result.Vars = p.Engine.Vars().Snapshot()
	}
	result.RunErr = err
	checkExpectation(result, scenario.Expect, err)

	execs, err := j.Executions(ctx, result.RunID)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	for _, x := range execs {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:      x.Seq,
			Event:    x.Event,
			Priority: x.Priority,
			Action:   x.Action,
			Key:      x.Key,
			Args:     x.Args,
			Status:   x.Status,
			Error:    x.Error,
		})
	}
	result.Output = out.String()
	result.Progress = progress.Lines()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, dir) {
		result.AddError(msg)
	}

	slog.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"executions", len(result.Trace),
	)
	return result, nil
}

func loadSource(s *Scenario) (*config.Source, error) {
	if s.Config != "" {
		return config.Load(s.Config)
	}
	data, err := yaml.Marshal(&s.Setup)
	if err != nil {
		return nil, fmt.Errorf("encode inline setup: %w", err)
	}
	return config.ParseYAML(s.Name+".yaml", data)
}

func writeFiles(dir string, files map[string]string) error {
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("fixture %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("fixture %s: %w", name, err)
		}
	}
	return nil
}

func seedVars(raw map[string]any) (ir.IRObject, error) {
	seed := make(ir.IRObject, len(raw))
	for k, v := range raw {
		val, err := ir.FromNative(v)
		if err != nil {
			return nil, fmt.Errorf("vars.%s: %w", k, err)
		}
		seed[k] = val
	}
	return seed, nil
}

// checkExpectation compares the run error with the expected failure.
func checkExpectation(result *Result, expect *Expectation, err error) {
	if expect == nil {
		if err != nil {
			result.AddError(fmt.Sprintf("run failed: %v", err))
		}
		return
	}
	if err == nil {
		result.AddError(fmt.Sprintf("expected failure (code %q, error %q), run succeeded", expect.Code, expect.Error))
		return
	}

	if expect.Code != "" {
		var re *engine.RuntimeError
		if !errors.As(err, &re) {
			result.AddError(fmt.Sprintf("expected %s error, got %v", expect.Code, err))
		} else if string(re.Code) != expect.Code {
			result.AddError(fmt.Sprintf("expected %s error, got %s: %v", expect.Code, re.Code, err))
		}
	}
	if expect.Error != "" && !strings.Contains(err.Error(), expect.Error) {
		result.AddError(fmt.Sprintf("expected error containing %q, got %v", expect.Error, err))
	}
}
