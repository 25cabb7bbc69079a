// Package pipeline assembles a runnable setup from a loaded source: the
// callable and validator tables, the variable store, the handler table,
// the engine, an optional journal recorder and the host that fires events.
//
// The CLI and the scenario harness both build runs through here, so a
// scenario exercises exactly what `setuper run` does.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/setuper/internal/config"
	"github.com/roach88/setuper/internal/console"
	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/handlers"
	"github.com/roach88/setuper/internal/host"
	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/journal"
	"github.com/roach88/setuper/internal/resolve"
	"github.com/roach88/setuper/internal/validator"
	"github.com/roach88/setuper/internal/vars"
)

// Options configures Build.
type Options struct {
	// Source provides the entries and any script callables or validators.
	Source *config.Source

	// IO answers prompts and receives writes and progress lines.
	IO console.IO

	// Dir is the base for relative paths in filesystem actions.
	Dir string

	// Vars seeds the variable store.
	Vars ir.IRObject

	// Journal records executions when set.
	Journal *journal.Journal

	// RunIDs overrides the run id generator (tests use a fixed one).
	RunIDs engine.RunIDGenerator

	// KeepGoing continues past failed dispatches.
	KeepGoing bool

	// Quiet disables progress lines.
	Quiet bool

	// Notifiers receive progress in addition to the console.
	Notifiers []engine.Notifier

	// OnDispatch is called after every dispatch.
	OnDispatch func(host.Trigger, error)
}

// Pipeline is a registered setup ready to receive events.
type Pipeline struct {
	Engine *engine.Engine
	Host   *host.Host

	recorder   *journal.Recorder
	config     string
	startedSeq int64
	keepGoing  bool
}

// Build installs the source's functions, registers its entries and wires
// the host. Registration failures are engine CONFIGURATION errors.
func Build(ctx context.Context, opts Options) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("build pipeline: no setup source")
	}

	callables := resolve.Builtins()
	validators := validator.NewTable()
	if err := opts.Source.Install(callables, validators); err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	store := vars.New(opts.Vars)
	table := handlers.New(handlers.Options{
		IO:         opts.IO,
		Vars:       store,
		Validators: validators,
		Dir:        opts.Dir,
	})

	engineOpts := []engine.Option{
		engine.WithVars(store),
		engine.WithCallables(callables),
		engine.WithValidators(validators),
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	if opts.IO != nil && !opts.Quiet {
		engineOpts = append(engineOpts, engine.WithNotifier(console.ProgressNotifier{IO: opts.IO}))
	}
	for _, n := range opts.Notifiers {
		engineOpts = append(engineOpts, engine.WithNotifier(n))
	}

	p := &Pipeline{config: opts.Source.Path, keepGoing: opts.KeepGoing}
	if opts.Journal != nil {
		last, err := opts.Journal.LastSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("build pipeline: %w", err)
		}
		p.recorder = journal.NewRecorder(opts.Journal)
		p.startedSeq = last
		engineOpts = append(engineOpts,
			engine.WithRecorder(p.recorder),
			engine.WithClock(engine.NewClockAt(last)),
		)
	}

	p.Engine = engine.New(table, engineOpts...)
	if err := p.Engine.Register(opts.Source.Entries); err != nil {
		return nil, err
	}

	hostOpts := []host.Option{host.WithKeepGoing(opts.KeepGoing)}
	if opts.OnDispatch != nil {
		hostOpts = append(hostOpts, host.WithDispatchHook(opts.OnDispatch))
	}
	p.Host = host.New(p.Engine, hostOpts...)

	slog.Debug("pipeline built",
		"config", p.config,
		"run_id", p.Engine.RunID(),
		"actions", p.Engine.Registry().Len(),
	)
	return p, nil
}

// Run emits events in order and drains the host after each one, so the
// tiers of one event finish before the next event starts.
func (p *Pipeline) Run(ctx context.Context, events []string) error {
	if p.recorder != nil {
		if err := p.recorder.Begin(ctx, p.Engine.RunID(), p.config, p.startedSeq); err != nil {
			slog.Warn("cannot record run", "run_id", p.Engine.RunID(), "error", err)
		}
	}

	var errs []error
	for _, event := range events {
		n := p.Host.Emit(event)
		slog.Info("event emitted", "event", event, "triggers", n)
		if err := p.Host.Run(ctx); err != nil {
			errs = append(errs, err)
			if !p.keepGoing {
				break
			}
		}
	}
	p.Host.Close()
	return errors.Join(errs...)
}
