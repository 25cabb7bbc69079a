package journal

import (
	"context"
	"fmt"

	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/ir"
)

// Recorder writes engine executions to a journal. It implements
// engine.Recorder.
type Recorder struct {
	journal *Journal
}

// NewRecorder creates a recorder writing to j.
func NewRecorder(j *Journal) *Recorder {
	return &Recorder{journal: j}
}

// Begin records the start of a run. Call it before the first dispatch,
// with startedSeq taken from the clock handed to the engine.
func (r *Recorder) Begin(ctx context.Context, runID, config string, startedSeq int64) error {
	return r.journal.WriteRun(ctx, Run{
		ID:            runID,
		Config:        config,
		StartedSeq:    startedSeq,
		EngineVersion: ir.EngineVersion,
	})
}

// Record stores one execution.
func (r *Recorder) Record(ctx context.Context, x engine.Execution) error {
	id, err := ir.ExecutionID(x.RunID, x.DescriptorID, x.Args, x.Seq)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}

	var msg string
	if x.Err != nil {
		msg = x.Err.Error()
	}

	return r.journal.WriteExecution(ctx, Execution{
		ID:           id,
		RunID:        x.RunID,
		Seq:          x.Seq,
		Event:        x.Progress.Event,
		Priority:     x.Progress.Priority,
		Action:       x.Progress.Action,
		Key:          x.Progress.Key,
		DescriptorID: x.DescriptorID,
		Args:         x.Args,
		Status:       x.Status(),
		Error:        msg,
	})
}

var _ engine.Recorder = (*Recorder)(nil)
