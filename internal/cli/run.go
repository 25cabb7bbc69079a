package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/setuper/internal/config"
	"github.com/roach88/setuper/internal/console"
	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/host"
	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/journal"
	"github.com/roach88/setuper/internal/pipeline"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Events        []string
	Dir           string
	Answers       string
	NoInteraction bool
	Journal       string
	Vars          []string
	KeepGoing     bool

	// RunIDs overrides the run id generator (for testing).
	// If nil, the engine's UUIDv7 generator is used.
	RunIDs engine.RunIDGenerator
}

// RunSummary is printed after a successful run.
type RunSummary struct {
	RunID   string   `json:"run_id"`
	Config  string   `json:"config"`
	Events  []string `json:"events"`
	Actions int      `json:"actions"`
}

func (s RunSummary) String() string {
	return fmt.Sprintf("✓ %s: %d actions on %s (run %s)", s.Config, s.Actions, strings.Join(s.Events, ", "), s.RunID)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [setup-file]",
		Short: "Run a setup",
		Long: `Register the entries of a setup file and emit events to run them.

Each --event is emitted in order; its priority tiers run highest first.
The run stops at the first failing action unless --keep-going is set.

Without a setup file argument, SETUPER_CONFIG is used, then the first of
setup.{yaml,yml,json,cue,hcl,go} or composer.json found in --dir.

Examples:
  setuper run setup.yaml
  setuper run setup.yaml --event setup --event post-setup
  setuper run --answers answers.yaml --journal setuper.db
  setuper run --no-interaction --var name=acme`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Events, "event", "e", nil, "event to emit (repeatable, default setup)")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "base directory for relative paths")
	cmd.Flags().StringVar(&opts.Answers, "answers", "", "YAML list of prompt answers")
	cmd.Flags().BoolVarP(&opts.NoInteraction, "no-interaction", "n", rootOpts.Settings.NoInteraction, "take defaults instead of prompting")
	cmd.Flags().StringVar(&opts.Journal, "journal", rootOpts.Settings.Journal, "SQLite journal recording executions")
	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "seed a variable (key=value, repeatable)")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "continue after a failing dispatch")

	return cmd
}

func runSetup(opts *RunOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	dir := workDir(opts.RootOptions, opts.Dir)
	path, err := setupPath(opts.RootOptions, args, dir)
	if err != nil {
		return err
	}
	src, err := loadSetup(f, path)
	if err != nil {
		return err
	}

	seed, err := config.ParseVars(opts.Vars)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --var", err)
	}

	// Prompts and progress share stdout in text mode; JSON output keeps
	// stdout for the response.
	promptOut := cmd.OutOrStdout()
	if opts.Format == "json" {
		promptOut = cmd.ErrOrStderr()
	}
	prompts, err := runIO(opts, cmd.InOrStdin(), promptOut)
	if err != nil {
		return err
	}

	var j *journal.Journal
	if opts.Journal != "" {
		slog.Info("opening journal", "path", opts.Journal)
		j, err = journal.Open(opts.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.Build(ctx, pipeline.Options{
		Source:    src,
		IO:        prompts,
		Dir:       dir,
		Vars:      seed,
		Journal:   j,
		RunIDs:    opts.RunIDs,
		KeepGoing: opts.KeepGoing,
		OnDispatch: func(tr host.Trigger, err error) {
			if err != nil {
				f.VerboseLog("%s/%d failed: %v", tr.Event, tr.Priority, err)
			}
		},
	})
	if err != nil {
		if engine.IsConfigurationError(err) {
			return f.Fail(ExitFailure, "invalid setup", err)
		}
		return f.Fail(ExitCommandError, "failed to build setup", err)
	}

	events := opts.Events
	if len(events) == 0 {
		events = opts.Settings.Events
	}
	if len(events) == 0 {
		events = []string{ir.DefaultEvent}
	}

	slog.Info("setup starting", "config", path, "run_id", p.Engine.RunID(), "events", events)
	if err := p.Run(ctx, events); err != nil {
		return f.Fail(ExitFailure, "setup failed", err)
	}

	return f.Success(RunSummary{
		RunID:   p.Engine.RunID(),
		Config:  path,
		Events:  events,
		Actions: p.Engine.Registry().Len(),
	})
}

// runIO picks the console: scripted when answers are given or prompting
// is disabled, the interactive terminal otherwise.
func runIO(opts *RunOptions, in io.Reader, out io.Writer) (console.IO, error) {
	level := console.Normal
	if opts.Verbose {
		level = console.Verbose
	}

	if opts.Answers == "" && !opts.NoInteraction {
		return console.NewTerminal(in, out, level), nil
	}

	var answers []string
	if opts.Answers != "" {
		var err error
		answers, err = config.LoadAnswers(opts.Answers)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load answers", err)
		}
	}
	s := console.NewScripted(out, answers...)
	s.SetVerbosity(level)
	s.UseDefaults = opts.NoInteraction
	return s, nil
}
