package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/setuper/internal/config"
	"github.com/roach88/setuper/internal/console"
	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/host"
	"github.com/roach88/setuper/internal/ir"
	"github.com/roach88/setuper/internal/journal"
	"github.com/roach88/setuper/internal/testutil"
)

func source(entries ...engine.Entry) *config.Source {
	return &config.Source{Path: "inline", Entries: entries}
}

func obj(pairs ...ir.IRPair) ir.IRValue {
	return ir.NewIRObjectFromPairs(pairs...)
}

func TestBuild_SetThenWrite(t *testing.T) {
	var out bytes.Buffer
	io := console.NewScripted(&out)
	progress := &testutil.RecordingNotifier{}

	p, err := Build(context.Background(), Options{
		Source: source(
			engine.Entry{Key: "count", Value: obj(
				ir.O("action", ir.IRString("set")),
				ir.O("variable", ir.IRString("count")),
				ir.O("value", ir.IRInt(1)),
				ir.O("priority", ir.IRInt(1)),
			)},
			engine.Entry{Key: "show", Value: obj(
				ir.O("action", ir.IRString("write")),
				ir.O("message", ir.IRString("$count")),
			)},
		),
		IO:        io,
		Quiet:     true,
		Notifiers: []engine.Notifier{progress},
	})
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background(), []string{"setup"}))

	assert.Equal(t, "1\n", out.String())
	assert.Equal(t, []string{"(1/2) setup set", "(2/2) setup write"}, progress.Lines())
}

func TestBuild_RegistrationFailure(t *testing.T) {
	_, err := Build(context.Background(), Options{
		Source: source(engine.Entry{Key: "bad", Value: obj(ir.O("action", ir.IRString("nope")))}),
	})
	require.Error(t, err)
	assert.True(t, engine.IsConfigurationError(err))

	_, err = Build(context.Background(), Options{})
	assert.Error(t, err)
}

func TestPipeline_Plan(t *testing.T) {
	p, err := Build(context.Background(), Options{
		Source: source(
			engine.Entry{Key: "dir", Value: obj(
				ir.O("action", ir.IRString("directory")),
				ir.O("path", ir.IRString("src")),
				ir.O("priority", ir.IRInt(5)),
			)},
			engine.Entry{Key: "link", Value: obj(
				ir.O("action", ir.IRString("symlink")),
				ir.O("source", ir.IRString("src")),
				ir.O("target", ir.IRString("current")),
				ir.O("priority", ir.IRInt(1)),
			)},
			engine.Entry{Key: "done", Value: obj(
				ir.O("action", ir.IRString("write")),
				ir.O("message", ir.IRString("done")),
				ir.O("event", ir.IRString("post-setup")),
			)},
		),
	})
	require.NoError(t, err)

	tiers := p.Plan()
	require.Len(t, tiers, 3)
	assert.Equal(t, "setup", tiers[0].Event)
	assert.Equal(t, int64(5), tiers[0].Priority)
	assert.Equal(t, "dir", tiers[0].Actions[0].Key)
	assert.Equal(t, int64(1), tiers[1].Priority)
	assert.Equal(t, "post-setup", tiers[2].Event)
}

func TestPipeline_DirectoryThenSymlink(t *testing.T) {
	dir := t.TempDir()
	var dispatches []host.Trigger

	p, err := Build(context.Background(), Options{
		Source: source(
			engine.Entry{Key: "dir", Value: obj(
				ir.O("action", ir.IRString("directory")),
				ir.O("path", ir.IRString("src")),
				ir.O("priority", ir.IRInt(5)),
			)},
			engine.Entry{Key: "link", Value: obj(
				ir.O("action", ir.IRString("symlink")),
				ir.O("source", ir.IRString("src")),
				ir.O("target", ir.IRString("current")),
				ir.O("priority", ir.IRInt(1)),
			)},
		),
		Dir:        dir,
		OnDispatch: func(tr host.Trigger, _ error) { dispatches = append(dispatches, tr) },
	})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background(), []string{"setup", "unknown"}))

	info, err := os.Stat(filepath.Join(dir, "src"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	target, err := os.Readlink(filepath.Join(dir, "current"))
	require.NoError(t, err)
	assert.Equal(t, "src", target)

	assert.Equal(t, []host.Trigger{
		{Event: "setup", Priority: 5},
		{Event: "setup", Priority: 1},
	}, dispatches)
}

func TestPipeline_StopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	failing := engine.Entry{Key: "rename", Value: obj(
		ir.O("action", ir.IRString("rename")),
		ir.O("source", ir.IRString("missing")),
		ir.O("target", ir.IRString("other")),
	)}
	later := engine.Entry{Key: "after", Value: obj(
		ir.O("action", ir.IRString("directory")),
		ir.O("path", ir.IRString("after")),
		ir.O("event", ir.IRString("post-setup")),
	)}

	p, err := Build(context.Background(), Options{Source: source(failing, later), Dir: dir})
	require.NoError(t, err)
	err = p.Run(context.Background(), []string{"setup", "post-setup"})
	require.Error(t, err)
	assert.True(t, engine.IsHandlerError(err))
	assert.NoDirExists(t, filepath.Join(dir, "after"))

	p, err = Build(context.Background(), Options{Source: source(failing, later), Dir: dir, KeepGoing: true})
	require.NoError(t, err)
	require.Error(t, p.Run(context.Background(), []string{"setup", "post-setup"}))
	assert.DirExists(t, filepath.Join(dir, "after"))
}

func TestPipeline_RecordsToJournal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	build := func(runID string) *Pipeline {
		p, err := Build(context.Background(), Options{
			Source: source(engine.Entry{Key: "greet", Value: obj(
				ir.O("action", ir.IRString("set")),
				ir.O("variable", ir.IRString("greeting")),
				ir.O("value", ir.IRString("hello")),
			)}),
			Journal: j,
			RunIDs:  testutil.NewFixedRunGenerator(runID),
		})
		require.NoError(t, err)
		return p
	}

	ctx := context.Background()
	require.NoError(t, build("run-a").Run(ctx, []string{"setup"}))
	require.NoError(t, build("run-b").Run(ctx, []string{"setup"}))

	runs, err := j.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, int64(0), runs[0].StartedSeq)
	assert.Equal(t, int64(1), runs[1].StartedSeq, "second run continues the clock")

	execs, err := j.Executions(ctx, "run-b")
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, int64(2), execs[0].Seq)
	assert.Equal(t, "inline", runs[1].Config)
}
