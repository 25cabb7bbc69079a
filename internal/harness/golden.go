package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/setuper/internal/ir"
)

// TraceSnapshot captures what a scenario did, serialized as canonical JSON
// for golden comparison.
type TraceSnapshot struct {
	ScenarioName string
	RunID        string
	Trace        []TraceEvent
	Vars         ir.IRObject
	Output       string
}

// toIR converts the snapshot for ir.MarshalCanonical.
func (s *TraceSnapshot) toIR() ir.IRObject {
	trace := make(ir.IRArray, len(s.Trace))
	for i, event := range s.Trace {
		obj := ir.IRObject{
			"seq":      ir.IRInt(event.Seq),
			"event":    ir.IRString(event.Event),
			"priority": ir.IRInt(event.Priority),
			"action":   ir.IRString(event.Action),
			"key":      ir.IRString(event.Key),
			"args":     event.Args,
			"status":   ir.IRString(event.Status),
		}
		if event.Error != "" {
			obj["error"] = ir.IRString(event.Error)
		}
		trace[i] = obj
	}

	out := ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"run_id":        ir.IRString(s.RunID),
		"trace":         trace,
	}
	if len(s.Vars) > 0 {
		out["vars"] = s.Vars
	}
	if s.Output != "" {
		out["output"] = ir.IRString(s.Output)
	}
	return out
}

// Snapshot returns the golden representation of a result.
func Snapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		RunID:        result.RunID,
		Trace:        result.Trace,
		Vars:         result.Vars,
		Output:       result.Output,
	}
	return ir.MarshalCanonical(snapshot.toIR())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
