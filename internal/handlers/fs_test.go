package handlers

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/setuper/internal/ir"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readTestFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestDirectory(t *testing.T) {
	table, _, _ := newTable(t)

	require.NoError(t, execute(t, table, "directory", ir.IRObject{
		"path": ir.Strings("a/b/c", "d"),
	}))

	assert.DirExists(t, filepath.Join(table.dir, "a/b/c"))
	assert.DirExists(t, filepath.Join(table.dir, "d"))
}

func TestDump_AndAppend(t *testing.T) {
	table, _, _ := newTable(t)

	require.NoError(t, execute(t, table, "dump", ir.IRObject{
		"file":    ir.IRString("nested/README.md"),
		"content": ir.IRString("# Title\n"),
	}))
	require.NoError(t, execute(t, table, "append", ir.IRObject{
		"file":    ir.IRString("nested/README.md"),
		"content": ir.IRString("more\n"),
	}))

	assert.Equal(t, "# Title\nmore\n", readTestFile(t, filepath.Join(table.dir, "nested/README.md")))
}

func TestDump_BroadcastsAndDefaultsContent(t *testing.T) {
	table, _, _ := newTable(t)

	require.NoError(t, execute(t, table, "dump", ir.IRObject{
		"file":    ir.Strings("a.txt", "b.txt"),
		"content": ir.IRString("same"),
	}))
	require.NoError(t, execute(t, table, "dump", ir.IRObject{
		"file": ir.IRString("empty.txt"),
	}))

	assert.Equal(t, "same", readTestFile(t, filepath.Join(table.dir, "a.txt")))
	assert.Equal(t, "same", readTestFile(t, filepath.Join(table.dir, "b.txt")))
	assert.Equal(t, "", readTestFile(t, filepath.Join(table.dir, "empty.txt")))
}

func TestDump_PairsContent(t *testing.T) {
	table, _, _ := newTable(t)

	require.NoError(t, execute(t, table, "dump", ir.IRObject{
		"file":    ir.Strings("a.txt", "b.txt"),
		"content": ir.Strings("first", "second"),
	}))
	assert.Equal(t, "first", readTestFile(t, filepath.Join(table.dir, "a.txt")))
	assert.Equal(t, "second", readTestFile(t, filepath.Join(table.dir, "b.txt")))

	err := execute(t, table, "dump", ir.IRObject{
		"file":    ir.Strings("a.txt", "b.txt", "c.txt"),
		"content": ir.Strings("first", "second"),
	})
	assert.Error(t, err)
}

func TestCopy_FileAndDirectory(t *testing.T) {
	table, _, _ := newTable(t)
	writeTestFile(t, filepath.Join(table.dir, "src.txt"), "file")
	writeTestFile(t, filepath.Join(table.dir, "tree/one.txt"), "1")
	writeTestFile(t, filepath.Join(table.dir, "tree/sub/two.txt"), "2")

	require.NoError(t, execute(t, table, "copy", ir.IRObject{
		"source": ir.Strings("src.txt", "tree"),
		"target": ir.Strings("out/dst.txt", "mirror"),
	}))

	assert.Equal(t, "file", readTestFile(t, filepath.Join(table.dir, "out/dst.txt")))
	assert.Equal(t, "1", readTestFile(t, filepath.Join(table.dir, "mirror/one.txt")))
	assert.Equal(t, "2", readTestFile(t, filepath.Join(table.dir, "mirror/sub/two.txt")))
	assert.FileExists(t, filepath.Join(table.dir, "src.txt"))
}

func TestCopy_MissingSource(t *testing.T) {
	table, _, _ := newTable(t)

	err := execute(t, table, "copy", ir.IRObject{
		"source": ir.IRString("missing.txt"),
		"target": ir.IRString("out.txt"),
	})
	assert.Error(t, err)
}

func TestMove(t *testing.T) {
	table, _, _ := newTable(t)
	writeTestFile(t, filepath.Join(table.dir, "tree/one.txt"), "1")

	require.NoError(t, execute(t, table, "move", ir.IRObject{
		"source": ir.IRString("tree"),
		"target": ir.IRString("moved"),
	}))

	assert.NoDirExists(t, filepath.Join(table.dir, "tree"))
	assert.Equal(t, "1", readTestFile(t, filepath.Join(table.dir, "moved/one.txt")))
}

func TestRename(t *testing.T) {
	table, _, _ := newTable(t)
	writeTestFile(t, filepath.Join(table.dir, "old.txt"), "x")
	writeTestFile(t, filepath.Join(table.dir, "taken.txt"), "y")

	require.NoError(t, execute(t, table, "rename", ir.IRObject{
		"source": ir.IRString("old.txt"),
		"target": ir.IRString("new.txt"),
	}))
	assert.NoFileExists(t, filepath.Join(table.dir, "old.txt"))
	assert.Equal(t, "x", readTestFile(t, filepath.Join(table.dir, "new.txt")))

	err := execute(t, table, "rename", ir.IRObject{
		"source": ir.IRString("new.txt"),
		"target": ir.IRString("taken.txt"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRemove(t *testing.T) {
	table, _, _ := newTable(t)
	writeTestFile(t, filepath.Join(table.dir, "tree/a/b.txt"), "x")
	writeTestFile(t, filepath.Join(table.dir, "c.txt"), "x")

	require.NoError(t, execute(t, table, "remove", ir.IRObject{
		"path": ir.Strings("tree", "c.txt", "never-existed"),
	}))

	assert.NoDirExists(t, filepath.Join(table.dir, "tree"))
	assert.NoFileExists(t, filepath.Join(table.dir, "c.txt"))
}

func TestSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	table, _, _ := newTable(t)
	writeTestFile(t, filepath.Join(table.dir, "one.txt"), "1")
	writeTestFile(t, filepath.Join(table.dir, "two.txt"), "2")
	link := filepath.Join(table.dir, "links/current")

	require.NoError(t, execute(t, table, "symlink", ir.IRObject{
		"source": ir.IRString("../one.txt"),
		"target": ir.IRString("links/current"),
	}))
	assert.Equal(t, "1", readTestFile(t, link))

	require.NoError(t, execute(t, table, "symlink", ir.IRObject{
		"source": ir.IRString("../two.txt"),
		"target": ir.IRString("links/current"),
	}))
	assert.Equal(t, "2", readTestFile(t, link))
}

func TestMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	table, _, _ := newTable(t)
	writeTestFile(t, filepath.Join(table.dir, "bin/run.sh"), "#!/bin/sh\n")
	writeTestFile(t, filepath.Join(table.dir, "single.sh"), "#!/bin/sh\n")

	require.NoError(t, execute(t, table, "mode", ir.IRObject{
		"path": ir.Strings("bin", "single.sh"),
		"mode": ir.IRArray{ir.IRString("0755"), ir.IRInt(0o700)},
	}))

	info, err := os.Stat(filepath.Join(table.dir, "bin/run.sh"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o755), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(table.dir, "single.sh"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o700), info.Mode().Perm())
}

func TestParseMode(t *testing.T) {
	m, err := parseMode(ir.IRString("644"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o644), m)

	m, err = parseMode(ir.IRString("4755"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o755)|fs.ModeSetuid, m)

	_, err = parseMode(ir.IRString("rwx"))
	assert.ErrorIs(t, err, errBadMode)

	_, err = parseMode(ir.IRInt(0o17777))
	assert.ErrorIs(t, err, errBadMode)
}

func TestOwner_NumericCurrentUser(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix ownership")
	}
	table, _, _ := newTable(t)
	writeTestFile(t, filepath.Join(table.dir, "owned/file.txt"), "x")

	require.NoError(t, execute(t, table, "owner", ir.IRObject{
		"path":  ir.IRString("owned"),
		"owner": ir.IRInt(int64(os.Getuid())),
	}))
	require.NoError(t, execute(t, table, "group", ir.IRObject{
		"path":  ir.IRString("owned"),
		"group": ir.IRInt(int64(os.Getgid())),
	}))
}

func TestLookupID(t *testing.T) {
	lookup := func(name string) (string, error) { return "1001", nil }

	id, err := lookupID(ir.IRInt(7), lookup)
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	id, err = lookupID(ir.IRString("42"), lookup)
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	id, err = lookupID(ir.IRString("deploy"), lookup)
	require.NoError(t, err)
	assert.Equal(t, 1001, id)

	_, err = lookupID(ir.IRArray{}, lookup)
	assert.Error(t, err)
}
