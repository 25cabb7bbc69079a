package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Action   string // optional - filter to one action name
	Failed   bool   // only failed executions
}

// TraceEvent is one recorded execution in the trace output.
type TraceEvent struct {
	Seq          int64          `json:"seq"`
	ID           string         `json:"id"`
	Event        string         `json:"event"`
	Priority     int64          `json:"priority"`
	Action       string         `json:"action"`
	Key          string         `json:"key"`
	DescriptorID string         `json:"descriptor_id"`
	Args         map[string]any `json:"args,omitempty"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID      string       `json:"run_id"`
	Config     string       `json:"config"`
	StartedSeq int64        `json:"started_seq"`
	Timeline   []TraceEvent `json:"timeline"`
	Stats      TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Executions int `json:"executions"`
	Failed     int `json:"failed"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the executions recorded for a run",
		Long: `Print the executions a run recorded in its journal, in sequence order.

Without --run, the most recently started run is shown.

Examples:
  setuper trace --db ./setuper.db
  setuper trace --db ./setuper.db --run run-0190... --action replace
  setuper trace --db ./setuper.db --failed --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Settings.Journal, "path to the SQLite journal")
	if rootOpts.Settings.Journal == "" {
		_ = cmd.MarkFlagRequired("db")
	}
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default: latest run)")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to one action")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only show failed executions")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	var run journal.Run
	if opts.RunID != "" {
		run, err = j.ReadRun(ctx, opts.RunID)
	} else {
		run, err = j.LatestRun(ctx)
	}
	if errors.Is(err, journal.ErrNotFound) {
		if opts.RunID != "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		return NewExitError(ExitCommandError, "journal has no runs")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	execs, err := j.Executions(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read executions", err)
	}

	result := TraceResult{
		RunID:      run.ID,
		Config:     run.Config,
		StartedSeq: run.StartedSeq,
		Timeline:   buildTimeline(execs, opts.Action, opts.Failed),
	}
	result.Stats.Executions = len(execs)
	for _, x := range execs {
		if x.Status == journal.StatusFailed {
			result.Stats.Failed++
		}
	}

	if opts.Format == "json" {
		f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return f.Success(result)
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// buildTimeline converts executions to trace events, applying filters.
func buildTimeline(execs []journal.Execution, action string, failedOnly bool) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(execs))
	for _, x := range execs {
		if action != "" && x.Action != action {
			continue
		}
		if failedOnly && x.Status != journal.StatusFailed {
			continue
		}
		args, _ := ir.ToNative(x.Args).(map[string]any)
		timeline = append(timeline, TraceEvent{
			Seq:          x.Seq,
			ID:           x.ID,
			Event:        x.Event,
			Priority:     x.Priority,
			Action:       x.Action,
			Key:          x.Key,
			DescriptorID: x.DescriptorID,
			Args:         args,
			Status:       x.Status,
			Error:        x.Error,
		})
	}
	return timeline
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Config: %s\n", result.Config)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Timeline:")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no executions)")
	}
	for _, event := range result.Timeline {
		mark := "✓"
		if event.Status == journal.StatusFailed {
			mark = "✗"
		}
		fmt.Fprintf(w, "  [%d] %s %s/%d %s (%s)\n", event.Seq, mark, event.Event, event.Priority, event.Action, event.Key)
		if verbose {
			fmt.Fprintf(w, "       Args: %s\n", formatArgs(event.Args))
			fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
		}
		if event.Error != "" {
			fmt.Fprintf(w, "       Error: %s\n", event.Error)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Stats:")
	fmt.Fprintf(w, "  Executions: %d\n", result.Stats.Executions)
	fmt.Fprintf(w, "  Failed:     %d\n", result.Stats.Failed)
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
