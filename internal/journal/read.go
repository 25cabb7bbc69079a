package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Runs returns every run, oldest first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, config, started_seq, engine_version
		FROM runs
		ORDER BY started_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Config, &r.StartedSeq, &r.EngineVersion); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns the run with id, or ErrNotFound.
func (j *Journal) ReadRun(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, config, started_seq, engine_version
		FROM runs
		WHERE id = ?
	`, id)
	return scanRun(row, id)
}

// LatestRun returns the most recently started run, or ErrNotFound when the
// journal is empty.
func (j *Journal) LatestRun(ctx context.Context) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, config, started_seq, engine_version
		FROM runs
		ORDER BY started_seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)
	return scanRun(row, "latest")
}

func scanRun(row *sql.Row, what string) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Config, &r.StartedSeq, &r.EngineVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", what, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// Executions returns the executions of a run in seq order. The result is
// empty, not nil, for unknown runs.
func (j *Journal) Executions(ctx context.Context, runID string) ([]Execution, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, run_id, seq, event, priority, action, key, descriptor_id, args, status, error
		FROM executions
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	execs := []Execution{}
	for rows.Next() {
		var (
			x    Execution
			args string
		)
		if err := rows.Scan(&x.ID, &x.RunID, &x.Seq, &x.Event, &x.Priority, &x.Action, &x.Key, &x.DescriptorID, &args, &x.Status, &x.Error); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		if x.Args, err = unmarshalArgs(args); err != nil {
			return nil, fmt.Errorf("execution %s: %w", x.ID, err)
		}
		execs = append(execs, x)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return execs, nil
}

// LastSeq returns the highest seq in the journal, 0 when empty. A new run
// continues the clock from here so seq stays unique across runs.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := j.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM executions), 0),
			COALESCE((SELECT MAX(started_seq) FROM runs), 0)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}
