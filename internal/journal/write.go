package journal

import (
	"context"
	"fmt"
)

// WriteRun inserts a run. Writing an existing run id is a no-op.
func (j *Journal) WriteRun(ctx context.Context, run Run) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, config, started_seq, engine_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Config, run.StartedSeq, run.EngineVersion)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteExecution inserts an execution. Duplicate ids are silently
// ignored; the referenced run must exist.
func (j *Journal) WriteExecution(ctx context.Context, x Execution) error {
	argsJSON, err := marshalArgs(x.Args)
	if err != nil {
		return fmt.Errorf("write execution: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO executions
		(id, run_id, seq, event, priority, action, key, descriptor_id, args, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		x.ID,
		x.RunID,
		x.Seq,
		x.Event,
		x.Priority,
		x.Action,
		x.Key,
		x.DescriptorID,
		argsJSON,
		x.Status,
		x.Error,
	)
	if err != nil {
		return fmt.Errorf("write execution: %w", err)
	}
	return nil
}
