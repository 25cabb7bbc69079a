package engine

import (
	"context"

	"github.com/roach88/setuper/internal/ir"
)

// Progress announces an action about to run.
// Index is 1-based within the current event round; Total counts every
// action registered under the event, across all priorities.
type Progress struct {
	Index    int
	Total    int
	Event    string
	Action   string
	Priority int64
	Key      string
}

// Notifier receives progress announcements. Delivery is best effort:
// notifiers cannot fail the pipeline.
type Notifier interface {
	Notify(p Progress)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(p Progress)

// Notify calls f.
func (f NotifierFunc) Notify(p Progress) {
	f(p)
}

// Execution is one finished (or failed) handler invocation.
type Execution struct {
	RunID        string
	Seq          int64
	Progress     Progress
	DescriptorID string

	// Args are the arguments the handler received, or the stored
	// arguments when resolution failed.
	Args ir.IRObject

	// Err is nil on success.
	Err error
}

// Status returns "ok" or "failed".
func (x Execution) Status() string {
	if x.Err != nil {
		return "failed"
	}
	return "ok"
}

// Recorder persists executions. Recording errors are logged and ignored.
type Recorder interface {
	Record(ctx context.Context, x Execution) error
}
