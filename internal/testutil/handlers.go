package testutil

import (
	"context"
	"sync"

	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/ir"
)

// Call is one handler invocation seen by a RecordingTable.
type Call struct {
	Action string
	Args   ir.IRObject
}

// RecordingTable is an engine.HandlerTable that accepts every action and
// records the calls. Failures makes the named actions return an error
// after being recorded.
type RecordingTable struct {
	mu       sync.Mutex
	calls    []Call
	Failures map[string]error
}

// NewRecordingTable creates an empty table.
func NewRecordingTable() *RecordingTable {
	return &RecordingTable{Failures: map[string]error{}}
}

// Lookup returns a recording handler for any action.
func (r *RecordingTable) Lookup(action string) (engine.Handler, bool) {
	return engine.HandlerFunc(func(_ context.Context, args ir.IRObject) error {
		r.mu.Lock()
		r.calls = append(r.calls, Call{Action: action, Args: args})
		err := r.Failures[action]
		r.mu.Unlock()
		return err
	}), true
}

// Calls returns a copy of the recorded calls in order.
func (r *RecordingTable) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Actions returns the recorded action names in order.
func (r *RecordingTable) Actions() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Action
	}
	return out
}
