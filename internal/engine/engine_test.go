package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/resolve"
	"github.com/roach88/setuper/internal/schema"
	"github.com/roach88/setuper/internal/validator"
	"github.com/roach88/setuper/internal/vars"
)

var testSchema = schema.MustLoad()

// handlerMap is a minimal HandlerTable for tests.
type handlerMap map[string]Handler

func (m handlerMap) Lookup(action string) (Handler, bool) {
	h, ok := m[action]
	return h, ok
}

// call is one handler invocation observed by a recordingTable.
type call struct {
	Action string
	Key    string
	Args   ir.IRObject
}

// recordingTable answers every schema action with a handler that records
// the call. Handlers in overrides replace the recording one.
type recordingTable struct {
	calls     []call
	overrides map[string]HandlerFunc
}

func (r *recordingTable) Lookup(action string) (Handler, bool) {
	if h, ok := r.overrides[action]; ok {
		return HandlerFunc(func(ctx context.Context, args ir.IRObject) error {
			r.calls = append(r.calls, call{Action: action, Args: args})
			return h(ctx, args)
		}), true
	}
	return HandlerFunc(func(_ context.Context, args ir.IRObject) error {
		r.calls = append(r.calls, call{Action: action, Args: args})
		return nil
	}), true
}

func (r *recordingTable) actions() []string {
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Action
	}
	return out
}

func entry(key string, pairs ...ir.IRPair) Entry {
	return Entry{Key: key, Value: ir.NewIRObjectFromPairs(pairs...)}
}

func write(key, message string, priority int64) Entry {
	return entry(key,
		ir.O("action", ir.IRString("write")),
		ir.O("message", ir.IRString(message)),
		ir.O("priority", ir.IRInt(priority)),
	)
}

func newTestEngine(t *testing.T, table HandlerTable, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{
		WithSchema(testSchema),
		WithRunIDGenerator(NewFixedGenerator("run-test")),
	}, opts...)
	return New(table, opts...)
}

func messages(calls []call) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		if m, ok := c.Args["message"].(ir.IRString); ok {
			out = append(out, string(m))
		}
	}
	return out
}

func TestDispatch_OneTierPerCallDescending(t *testing.T) {
	table := &recordingTable{}
	e := newTestEngine(t, table)
	ctx := context.Background()

	require.NoError(t, e.Register(Entries{
		write("low", "low", 0),
		write("high", "high", 10),
		write("mid", "mid", 5),
	}))

	require.NoError(t, e.Dispatch(ctx, "setup"))
	assert.Equal(t, []string{"high"}, messages(table.calls))

	require.NoError(t, e.Dispatch(ctx, "setup"))
	require.NoError(t, e.Dispatch(ctx, "setup"))
	assert.Equal(t, []string{"high", "mid", "low"}, messages(table.calls))

	// A fourth call has no tier left.
	require.NoError(t, e.Dispatch(ctx, "setup"))
	assert.Len(t, table.calls, 3)
	assert.Equal(t, CursorState{Event: "setup", Offset: 4, Counter: 3}, e.State())
}

func TestDispatch_EventChangeResetsRound(t *testing.T) {
	table := &recordingTable{}
	e := newTestEngine(t, table)
	ctx := context.Background()

	install := write("install", "install", 0)
	install.Value.(ir.IRObject)["event"] = ir.IRString("post-install")

	require.NoError(t, e.Register(Entries{
		write("first", "setup-high", 3),
		write("second", "setup-low", 1),
		install,
	}))

	require.NoError(t, e.Dispatch(ctx, "setup"))
	require.NoError(t, e.Dispatch(ctx, "post-install"))
	assert.Equal(t, CursorState{Event: "post-install", Offset: 1, Counter: 1}, e.State())

	// Back to setup: the round restarts at the highest tier.
	require.NoError(t, e.Dispatch(ctx, "setup"))
	assert.Equal(t, []string{"setup-high", "install", "setup-high"}, messages(table.calls))
}

func TestDispatch_SamePriorityKeepsRegistrationOrder(t *testing.T) {
	table := &recordingTable{}
	e := newTestEngine(t, table)

	require.NoError(t, e.Register(Entries{write("a", "A", 0), write("b", "B", 0)}))
	require.NoError(t, e.Register(Entries{write("c", "C", 0)}))

	require.NoError(t, e.Dispatch(context.Background(), "setup"))
	assert.Equal(t, []string{"A", "B", "C"}, messages(table.calls))
}

func TestDispatch_UnknownEventIsNoop(t *testing.T) {
	table := &recordingTable{}
	e := newTestEngine(t, table)
	require.NoError(t, e.Register(Entries{write("a", "A", 0)}))

	require.NoError(t, e.Dispatch(context.Background(), "nothing"))
	assert.Empty(t, table.calls)
}

func TestDispatch_SetThenWriteSeesNewValue(t *testing.T) {
	store := vars.New(nil)
	table := &recordingTable{overrides: map[string]HandlerFunc{
		"set": func(_ context.Context, args ir.IRObject) error {
			store.Set(string(args["variable"].(ir.IRString)), args["value"])
			return nil
		},
	}}

	var progress []Progress
	e := newTestEngine(t, table,
		WithVars(store),
		WithNotifier(NotifierFunc(func(p Progress) { progress = append(progress, p) })),
	)

	require.NoError(t, e.Register(Entries{
		entry("set-var",
			ir.O("action", ir.IRString("set")),
			ir.O("variable", ir.IRString("var")),
			ir.O("value", ir.IRInt(1))),
		write("show", "{$var}", 0),
	}))

	// Registration left the placeholder alone: var did not exist yet.
	descs := e.Registry().Descriptors()
	assert.Equal(t, ir.IRString("{$var}"), descs[1].Args["message"])

	require.NoError(t, e.Dispatch(context.Background(), "setup"))

	assert.Equal(t, []string{"1"}, messages(table.calls))
	require.Len(t, progress, 2)
	assert.Equal(t, Progress{Index: 1, Total: 2, Event: "setup", Action: "set", Key: "set-var"}, progress[0])
	assert.Equal(t, Progress{Index: 2, Total: 2, Event: "setup", Action: "write", Key: "show"}, progress[1])
}

func TestDispatch_TwoTiersNeedTwoCalls(t *testing.T) {
	table := &recordingTable{}
	var progress []Progress
	e := newTestEngine(t, table, WithNotifier(NotifierFunc(func(p Progress) { progress = append(progress, p) })))

	require.NoError(t, e.Register(Entries{
		entry("mkdir",
			ir.O("action", ir.IRString("directory")),
			ir.O("path", ir.IRString("build")),
			ir.O("priority", ir.IRInt(5))),
		entry("link",
			ir.O("action", ir.IRString("symlink")),
			ir.O("source", ir.IRString("build")),
			ir.O("target", ir.IRString("current")),
			ir.O("priority", ir.IRInt(1))),
	}))

	require.NoError(t, e.Dispatch(context.Background(), "setup"))
	assert.Equal(t, []string{"directory"}, table.actions())

	require.NoError(t, e.Dispatch(context.Background(), "setup"))
	assert.Equal(t, []string{"directory", "symlink"}, table.actions())

	require.Len(t, progress, 2)
	assert.Equal(t, 1, progress[0].Index)
	assert.Equal(t, 2, progress[1].Index)
	assert.Equal(t, 2, progress[1].Total)
}

func TestDispatch_HandlerFailureAbortsTierOnly(t *testing.T) {
	boom := errors.New("disk full")
	table := &recordingTable{overrides: map[string]HandlerFunc{
		"directory": func(context.Context, ir.IRObject) error { return boom },
	}}
	e := newTestEngine(t, table)
	ctx := context.Background()

	require.NoError(t, e.Register(Entries{
		entry("mkdir", ir.O("action", ir.IRString("directory")), ir.O("path", ir.IRString("x")), ir.O("priority", ir.IRInt(5))),
		write("after-mkdir", "skipped", 5),
		write("next-tier", "runs", 0),
	}))

	err := e.Dispatch(ctx, "setup")
	require.Error(t, err)
	assert.True(t, IsHandlerError(err))
	assert.ErrorIs(t, err, boom)

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "mkdir", re.Key)
	assert.Equal(t, "directory", re.Action)

	// The cursor advanced anyway; the next call runs the next tier.
	require.NoError(t, e.Dispatch(ctx, "setup"))
	assert.Equal(t, []string{"directory", "write"}, table.actions())
	assert.Equal(t, []string{"runs"}, messages(table.calls))
}

func TestDispatch_ValidationFailureClassified(t *testing.T) {
	table := &recordingTable{overrides: map[string]HandlerFunc{
		"write": func(context.Context, ir.IRObject) error { return validator.Failf("nope") },
	}}
	e := newTestEngine(t, table)
	require.NoError(t, e.Register(Entries{write("w", "x", 0)}))

	err := e.Dispatch(context.Background(), "setup")
	assert.True(t, IsValidationError(err))
}

func TestDispatch_DeferredCallableIsResolutionError(t *testing.T) {
	callables := resolve.NewCallables()
	require.NoError(t, callables.Register("app::later", func(string, ir.IRObject, ir.IRObject) (ir.IRValue, error) {
		// Resolution is single pass, so this reference is stored as text
		// and only resolved when the descriptor is dispatched.
		return ir.IRString("@app::gone"), nil
	}))

	table := &recordingTable{}
	e := newTestEngine(t, table, WithCallables(callables))

	require.NoError(t, e.Register(Entries{entry("deferred",
		ir.O("action", ir.IRString("write")),
		ir.O("message", ir.IRString("@app::later")))}))
	assert.Equal(t, ir.IRString("@app::gone"), e.Registry().Descriptors()[0].Args["message"])

	err := e.Dispatch(context.Background(), "setup")
	require.Error(t, err)
	assert.True(t, IsResolutionError(err))
	assert.ErrorIs(t, err, resolve.ErrUnknownCallable)
	assert.Empty(t, table.calls, "the handler never runs")
}

func TestRegister_Defaults(t *testing.T) {
	e := newTestEngine(t, &recordingTable{})

	require.NoError(t, e.Register(Entries{entry("w",
		ir.O("action", ir.IRString("write")),
		ir.O("message", ir.IRString("hi")),
		ir.O("event", ir.IRNull{}))}))

	d := e.Registry().Descriptors()[0]
	assert.Equal(t, "setup", d.Event)
	assert.Equal(t, int64(0), d.Priority)
	assert.Equal(t, "write", d.Action)
	assert.Equal(t, "w", d.Key)
	assert.Equal(t, ir.IRString("setup"), d.Args["event"])
}

func TestRegister_ResolvesAgainstCurrentStore(t *testing.T) {
	store := vars.New(ir.IRObject{"level": ir.IRString("debug"), "n": ir.IRInt(7)})
	e := newTestEngine(t, &recordingTable{}, WithVars(store))

	require.NoError(t, e.Register(Entries{entry("w",
		ir.O("action", ir.IRString("write")),
		ir.O("message", ir.IRString("n={$n}")),
		ir.O("verbose", ir.IRString("$level")),
		ir.O("priority", ir.IRString("$n")))}))

	d := e.Registry().Descriptors()[0]
	assert.Equal(t, ir.IRString("n=7"), d.Args["message"])
	assert.Equal(t, ir.IRString("debug"), d.Args["verbose"])
	assert.Equal(t, int64(7), d.Priority, "direct references keep the stored type")
}

func TestRegister_UnknownCallableLeavesRegistryUnchanged(t *testing.T) {
	e := newTestEngine(t, &recordingTable{}, WithCallables(resolve.NewCallables()))
	require.NoError(t, e.Register(Entries{write("ok", "first", 0)}))

	err := e.Register(Entries{
		write("fine", "fine", 0),
		entry("bad",
			ir.O("action", ir.IRString("write")),
			ir.O("message", ir.IRString("@nope::missing"))),
	})
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.ErrorIs(t, err, resolve.ErrUnknownCallable)

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "bad", re.Key)

	assert.Equal(t, 1, e.Registry().Len(), "no entry of the failed call is registered")
}

func TestRegister_SchemaViolation(t *testing.T) {
	e := newTestEngine(t, &recordingTable{})

	err := e.Register(Entries{entry("broken", ir.O("action", ir.IRString("write")))})
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))

	var viol *schema.Violation
	require.True(t, errors.As(err, &viol))
	assert.Contains(t, viol.Path, "message")
	assert.Equal(t, 0, e.Registry().Len())
}

func TestRegister_ValidatesAfterSubstitution(t *testing.T) {
	store := vars.New(ir.IRObject{"count": ir.IRInt(3)})
	e := newTestEngine(t, &recordingTable{}, WithVars(store))

	// "$count" resolves to an int, which is not a valid message.
	err := e.Register(Entries{entry("w", ir.O("action", ir.IRString("write")), ir.O("message", ir.IRString("$count")))})
	assert.True(t, IsConfigurationError(err))
}

func TestRegister_UnknownHandler(t *testing.T) {
	e := newTestEngine(t, handlerMap{})

	err := e.Register(Entries{write("w", "x", 0)})
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), `no handler for action "write"`)
}

func TestRegister_UnknownValidator(t *testing.T) {
	e := newTestEngine(t, &recordingTable{})

	err := e.Register(Entries{entry("ask",
		ir.O("action", ir.IRString("insert")),
		ir.O("message", ir.IRString("Name?")),
		ir.O("variable", ir.IRString("name")),
		ir.O("validator", ir.Strings(validator.Trim, "app::missing")))})
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "app::missing")
}

func TestRegister_CoercesNonMappings(t *testing.T) {
	e := newTestEngine(t, &recordingTable{})

	// A list becomes {"0": ..., "1": ...}, which has no action.
	err := e.Register(Entries{{Key: "list", Value: ir.Strings("write", "hi")}})
	assert.True(t, IsConfigurationError(err))

	err = e.Register(Entries{{Key: "scalar", Value: ir.IRString("write")}})
	assert.True(t, IsConfigurationError(err))
}

func TestRegister_Producers(t *testing.T) {
	store := vars.New(ir.IRObject{"who": ir.IRString("world")})
	e := newTestEngine(t, &recordingTable{}, WithVars(store))

	var seenKey string
	var seenEntries int
	err := e.RegisterFunc(func() (Entries, error) {
		return Entries{
			write("static", "static", 0),
			{Key: "dynamic", Producer: func(key string, all Entries, vars ir.IRObject) (ir.IRValue, error) {
				seenKey, seenEntries = key, len(all)
				return ir.IRObject{
					"action":  ir.IRString("write"),
					"message": ir.IRString("hello " + string(vars["who"].(ir.IRString))),
				}, nil
			}},
		}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, "dynamic", seenKey)
	assert.Equal(t, 2, seenEntries)
	assert.Equal(t, ir.IRString("hello world"), e.Registry().Descriptors()[1].Args["message"])
}

func TestRegister_ProducerFailure(t *testing.T) {
	e := newTestEngine(t, &recordingTable{})

	err := e.RegisterFunc(func() (Entries, error) { return nil, errors.New("no setup") })
	assert.True(t, IsConfigurationError(err))

	err = e.Register(Entries{{Key: "p", Producer: func(string, Entries, ir.IRObject) (ir.IRValue, error) {
		return nil, errors.New("bad producer")
	}}})
	assert.True(t, IsConfigurationError(err))
}

func TestSubscriptions(t *testing.T) {
	e := newTestEngine(t, &recordingTable{})
	install := write("install", "i", 2)
	install.Value.(ir.IRObject)["event"] = ir.IRString("post-install")

	require.NoError(t, e.Register(Entries{write("a", "a", 0), write("b", "b", 9), install, write("c", "c", 9)}))

	assert.Equal(t, map[string][]int64{
		"setup":        {9, 0},
		"post-install": {2},
	}, e.Subscriptions())
}

type memoryRecorder struct {
	executions []Execution
	err        error
}

func (m *memoryRecorder) Record(_ context.Context, x Execution) error {
	m.executions = append(m.executions, x)
	return m.err
}

func TestDispatch_RecordsExecutions(t *testing.T) {
	boom := errors.New("boom")
	table := &recordingTable{overrides: map[string]HandlerFunc{
		"remove": func(context.Context, ir.IRObject) error { return boom },
	}}
	rec := &memoryRecorder{err: errors.New("journal offline")}
	e := newTestEngine(t, table, WithRecorder(rec), WithClock(NewClockAt(10)))

	require.NoError(t, e.Register(Entries{
		write("w", "hi", 0),
		entry("rm", ir.O("action", ir.IRString("remove")), ir.O("path", ir.IRString("tmp"))),
	}))

	err := e.Dispatch(context.Background(), "setup")
	require.Error(t, err, "recording failures never hide handler failures")

	require.Len(t, rec.executions, 2)
	first, second := rec.executions[0], rec.executions[1]

	assert.Equal(t, "run-test", first.RunID)
	assert.Equal(t, int64(11), first.Seq)
	assert.Equal(t, "ok", first.Status())
	assert.Equal(t, ir.MustDescriptorID(e.Registry().Descriptors()[0]), first.DescriptorID)

	assert.Equal(t, int64(12), second.Seq)
	assert.Equal(t, "failed", second.Status())
	assert.ErrorIs(t, second.Err, boom)
	assert.Equal(t, 2, second.Progress.Index)
}
