package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/resolve"
	"github.com/roach88/setuper/internal/schema"
	"github.com/roach88/setuper/internal/validator"
	"github.com/roach88/setuper/internal/vars"
)

// Handler executes one action with its freshly resolved arguments.
type Handler interface {
	Execute(ctx context.Context, args ir.IRObject) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, args ir.IRObject) error

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, args ir.IRObject) error {
	return f(ctx, args)
}

// HandlerTable resolves action names to handlers.
type HandlerTable interface {
	Lookup(action string) (Handler, bool)
}

// ValidatorTable resolves validator names. Registration rejects entries
// whose validator argument names something the table lacks.
type ValidatorTable interface {
	Lookup(name string) (validator.Func, bool)
}

// RunIDGenerator generates run identifiers.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}

// Entry is one raw setup entry. When Producer is set it is invoked at
// registration to compute the value; Value is ignored.
type Entry struct {
	Key      string
	Value    ir.IRValue
	Producer EntryProducer
}

// Entries is an ordered setup mapping.
type Entries []Entry

// EntryProducer computes an entry's value from its key, the whole setup and
// a snapshot of the variable store.
type EntryProducer func(key string, entries Entries, vars ir.IRObject) (ir.IRValue, error)

// SetupProducer produces the whole setup mapping lazily.
type SetupProducer func() (Entries, error)

// Engine owns the registry, the dispatch cursor and the variable store of
// one pipeline run.
//
// Engine is not safe for concurrent use. Hosts that receive triggers from
// several goroutines serialise them (see package host).
type Engine struct {
	handlers   HandlerTable
	validators ValidatorTable
	schema     *schema.Validator
	vars       *vars.Store
	resolver   *resolve.Resolver
	callables  *resolve.Callables
	registry   *Registry
	cursor     Cursor
	notifiers  []Notifier
	recorder   Recorder
	clock      *Clock
	runGen     RunIDGenerator
	runID      string
}

// Option configures an Engine.
type Option func(*Engine)

// WithVars uses store as the variable store.
func WithVars(store *vars.Store) Option {
	return func(e *Engine) { e.vars = store }
}

// WithCallables sets the callable capability table.
// Default: resolve.Builtins().
func WithCallables(c *resolve.Callables) Option {
	return func(e *Engine) { e.callables = c }
}

// WithValidators sets the validator table consulted at registration.
// Default: validator.NewTable().
func WithValidators(t ValidatorTable) Option {
	return func(e *Engine) { e.validators = t }
}

// WithSchema sets the compiled action contract.
// Default: schema.MustLoad().
func WithSchema(v *schema.Validator) Option {
	return func(e *Engine) { e.schema = v }
}

// WithNotifier adds a progress sink. May be given more than once.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifiers = append(e.notifiers, n) }
}

// WithRecorder sets the execution recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithRunIDGenerator sets the run id generator. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) { e.runGen = g }
}

// WithClock sets the sequence clock used for recorded executions.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an Engine dispatching to handlers.
func New(handlers HandlerTable, opts ...Option) *Engine {
	e := &Engine{
		handlers: handlers,
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.vars == nil {
		e.vars = vars.New(nil)
	}
	if e.callables == nil {
		e.callables = resolve.Builtins()
	}
	if e.validators == nil {
		e.validators = validator.NewTable()
	}
	if e.schema == nil {
		e.schema = schema.MustLoad()
	}
	if e.clock == nil {
		e.clock = NewClock()
	}
	if e.runGen == nil {
		e.runGen = UUIDv7Generator{}
	}

	e.resolver = resolve.New(e.vars, e.callables)
	e.runID = e.runGen.Generate()
	return e
}

// RunID identifies this pipeline run in recorded executions.
func (e *Engine) RunID() string {
	return e.runID
}

// Vars returns the variable store.
func (e *Engine) Vars() *vars.Store {
	return e.vars
}

// Registry returns the action registry. Callers must not Add to it.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// State returns the dispatch cursor state.
func (e *Engine) State() CursorState {
	return e.cursor.State()
}

// Subscriptions lists every registered event with its priorities, highest
// first. A host dispatches an event once per listed priority.
func (e *Engine) Subscriptions() map[string][]int64 {
	subs := make(map[string][]int64)
	for _, event := range e.registry.Events() {
		subs[event] = e.registry.Priorities(event)
	}
	return subs
}

// RegisterFunc registers the entries produced by p.
func (e *Engine) RegisterFunc(p SetupProducer) error {
	entries, err := p()
	if err != nil {
		return configurationError("", "setup producer failed", err)
	}
	return e.Register(entries)
}

// Register resolves, defaults and validates every entry, then adds them to
// the registry. Registration is all or nothing: on the first failure a
// CONFIGURATION RuntimeError is returned and the registry is unchanged.
func (e *Engine) Register(entries Entries) error {
	staged := make([]ir.ActionDescriptor, 0, len(entries))

	for _, entry := range entries {
		d, err := e.prepare(entry, entries)
		if err != nil {
			return err
		}
		staged = append(staged, d)
	}

	for _, d := range staged {
		e.registry.Add(d)
	}

	slog.Debug("actions registered", "count", len(staged), "total", e.registry.Len())
	return nil
}

func (e *Engine) prepare(entry Entry, all Entries) (ir.ActionDescriptor, error) {
	raw := entry.Value
	if entry.Producer != nil {
		v, err := entry.Producer(entry.Key, all, e.vars.Snapshot())
		if err != nil {
			return ir.ActionDescriptor{}, configurationError(entry.Key, "entry producer failed", err)
		}
		raw = v
	}

	resolved, err := e.resolver.Resolve(coerce(raw))
	if err != nil {
		return ir.ActionDescriptor{}, configurationError(entry.Key, "cannot resolve entry", err)
	}

	args := ir.ApplyDefaults(resolved)
	if err := e.schema.Validate(args); err != nil {
		return ir.ActionDescriptor{}, configurationError(entry.Key, "invalid entry", err)
	}

	// The schema guarantees these shapes.
	action := string(args[ir.KeyAction].(ir.IRString))
	event := string(args[ir.KeyEvent].(ir.IRString))
	priority := int64(args[ir.KeyPriority].(ir.IRInt))

	if _, ok := e.handlers.Lookup(action); !ok {
		return ir.ActionDescriptor{}, configurationError(entry.Key, fmt.Sprintf("no handler for action %q", action), nil)
	}
	if err := e.checkValidators(args); err != nil {
		return ir.ActionDescriptor{}, configurationError(entry.Key, "invalid validator", err)
	}

	return ir.ActionDescriptor{
		Key:      entry.Key,
		Event:    event,
		Priority: priority,
		Action:   action,
		Args:     args,
	}, nil
}

func (e *Engine) checkValidators(args ir.IRObject) error {
	v, ok := args[ir.KeyValidator]
	if !ok || ir.IsNull(v) {
		return nil
	}
	names, err := validator.NamesOf(v)
	if err != nil {
		return err
	}
	for _, n := range names {
		if _, ok := e.validators.Lookup(n); !ok {
			return fmt.Errorf("undefined validator %s()", n)
		}
	}
	return nil
}

// coerce turns a non-mapping raw value into a mapping keyed by position.
func coerce(v ir.IRValue) ir.IRObject {
	switch val := v.(type) {
	case ir.IRObject:
		return val
	case nil, ir.IRNull:
		return ir.IRObject{}
	case ir.IRArray:
		obj := make(ir.IRObject, len(val))
		for i, elem := range val {
			obj[strconv.Itoa(i)] = elem
		}
		return obj
	default:
		return ir.IRObject{"0": val}
	}
}

// Dispatch runs exactly one priority tier of event.
//
// A different event than the previous call starts a new round at the
// highest priority. Each call then moves one tier down; a call past the
// last tier does nothing. The cursor advances before any action runs, so a
// failing call never blocks the next tier.
//
// Every action in the tier is announced to the notifiers, re-resolved
// against the current variable store and executed in registration order.
// The first failure aborts the rest of the tier.
func (e *Engine) Dispatch(ctx context.Context, event string) error {
	index := e.cursor.Advance(event)

	batch, priority, ok := e.registry.Batch(event, index)
	if !ok {
		slog.Debug("no tier to dispatch", "event", event, "offset", index)
		return nil
	}

	total := e.registry.Total(event)
	slog.Debug("dispatching tier",
		"event", event,
		"priority", priority,
		"actions", len(batch),
	)

	for _, d := range batch {
		progress := Progress{
			Index:    e.cursor.Step(),
			Total:    total,
			Event:    event,
			Action:   d.Action,
			Priority: priority,
			Key:      d.Key,
		}
		if err := e.execute(ctx, d, progress); err != nil {
			slog.Error("action failed",
				"event", event,
				"action", d.Action,
				"key", d.Key,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, d ir.ActionDescriptor, progress Progress) error {
	e.notify(progress)

	args, err := e.resolver.Resolve(d.Args)
	if err != nil {
		rerr := &RuntimeError{
			Code:    ErrCodeResolution,
			Message: "cannot resolve arguments",
			Key:     d.Key,
			Event:   d.Event,
			Action:  d.Action,
			Err:     err,
		}
		e.record(ctx, d, progress, d.Args, rerr)
		return rerr
	}

	handler, ok := e.handlers.Lookup(d.Action)
	if !ok {
		// Registration checked this; the table changed underneath us.
		rerr := &RuntimeError{Code: ErrCodeHandler, Message: "handler disappeared", Key: d.Key, Event: d.Event, Action: d.Action}
		e.record(ctx, d, progress, args, rerr)
		return rerr
	}

	if err := handler.Execute(ctx, args); err != nil {
		rerr := &RuntimeError{
			Code:    classify(err),
			Message: "action failed",
			Key:     d.Key,
			Event:   d.Event,
			Action:  d.Action,
			Err:     err,
		}
		e.record(ctx, d, progress, args, rerr)
		return rerr
	}

	e.record(ctx, d, progress, args, nil)
	return nil
}

func classify(err error) RuntimeErrorCode {
	var re *resolve.Error
	switch {
	case validator.IsFailure(err):
		return ErrCodeValidation
	case errors.As(err, &re):
		return ErrCodeResolution
	}
	return ErrCodeHandler
}

func (e *Engine) notify(p Progress) {
	for _, n := range e.notifiers {
		n.Notify(p)
	}
}

func (e *Engine) record(ctx context.Context, d ir.ActionDescriptor, p Progress, args ir.IRObject, failure error) {
	if e.recorder == nil {
		return
	}
	descID, err := ir.DescriptorID(d)
	if err != nil {
		slog.Warn("cannot hash descriptor", "key", d.Key, "error", err)
		return
	}
	exec := Execution{
		RunID:        e.runID,
		Progress:     p,
		DescriptorID: descID,
		Args:         args,
		Err:          failure,
	}
	e.clock.Stamp(&exec)
	if err := e.recorder.Record(ctx, exec); err != nil {
		slog.Warn("cannot record execution", "run_id", e.runID, "seq", exec.Seq, "error", err)
	}
}
