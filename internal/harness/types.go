package harness

import "github.com/roach88/setuper/internal/ir"

// TraceEvent is one recorded execution.
type TraceEvent struct {
	Seq      int64       `json:"seq"`
	Event    string      `json:"event"`
	Priority int64       `json:"priority"`
	Action   string      `json:"action"`
	Key      string      `json:"key"`
	Args     ir.IRObject `json:"args"`
	Status   string      `json:"status"`
	Error    string      `json:"error,omitempty"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when the run matched its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	RunID string       `json:"run_id"`
	Trace []TraceEvent `json:"trace"`

	// Errors lists every mismatch. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Vars is the variable store after the run.
	Vars ir.IRObject `json:"vars,omitempty"`

	// Output is the console transcript.
	Output string `json:"output,omitempty"`

	// Progress holds the progress lines in order.
	Progress []string `json:"progress,omitempty"`

	// RunErr is the error the run returned, if any.
	RunErr error `json:"-"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a mismatch and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
