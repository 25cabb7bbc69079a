package journal

import "github.com/roach88/setuper/internal/ir"

// Execution statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one pipeline run.
type Run struct {
	ID string

	// Config is the setup source the run was built from.
	Config string

	// StartedSeq is the clock value before the run's first execution.
	StartedSeq    int64
	EngineVersion string
}

// Execution is one recorded handler invocation.
type Execution struct {
	// ID is ir.ExecutionID(RunID, DescriptorID, Args, Seq).
	ID           string
	RunID        string
	Seq          int64
	Event        string
	Priority     int64
	Action       string
	Key          string
	DescriptorID string
	Args         ir.IRObject
	Status       string
	Error        string
}
