package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/roach88/setuper/internal/ir"
)

const (
	dirPerm  = 0o777
	filePerm = 0o666
)

func (t *Table) directory(ctx context.Context, args ir.IRObject) error {
	paths, err := t.paths(args, "path")
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if err := os.MkdirAll(p, dirPerm); err != nil {
			return fmt.Errorf("directory %s: %w", p, err)
		}
	}
	return nil
}

// symlink creates target pointing at source. The source is stored as
// given; an existing link at target is replaced.
func (t *Table) symlink(ctx context.Context, args ir.IRObject) error {
	sources, err := ir.StringList(args["source"])
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	targets, err := t.paths(args, "target")
	if err != nil {
		return err
	}
	pairs, err := zip(sources, ir.Strings(targets...))
	if err != nil {
		return err
	}

	for _, p := range pairs {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		target := string(p.value.(ir.IRString))
		if current, err := os.Readlink(target); err == nil {
			if current == p.key {
				continue
			}
			if err := os.Remove(target); err != nil {
				return fmt.Errorf("symlink %s: %w", target, err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
			return fmt.Errorf("symlink %s: %w", target, err)
		}
		if err := os.Symlink(p.key, target); err != nil {
			return fmt.Errorf("symlink %s -> %s: %w", target, p.key, err)
		}
	}
	return nil
}

// rename refuses to overwrite an existing target.
func (t *Table) rename(ctx context.Context, args ir.IRObject) error {
	pairs, err := t.sourceTargets(args)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if _, err := os.Lstat(p.target); err == nil {
			return fmt.Errorf("rename %s: target %s already exists", p.source, p.target)
		}
		if err := os.Rename(p.source, p.target); err != nil {
			return fmt.Errorf("rename %s: %w", p.source, err)
		}
	}
	return nil
}

func (t *Table) copy(ctx context.Context, args ir.IRObject) error {
	pairs, err := t.sourceTargets(args)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		info, err := os.Stat(p.source)
		if err != nil {
			return fmt.Errorf("copy %s: %w", p.source, err)
		}
		if info.IsDir() {
			err = mirror(p.source, p.target)
		} else {
			err = copyFile(p.source, p.target, info.Mode())
		}
		if err != nil {
			return fmt.Errorf("copy %s -> %s: %w", p.source, p.target, err)
		}
	}
	return nil
}

// move copies, then removes every source.
func (t *Table) move(ctx context.Context, args ir.IRObject) error {
	if err := t.copy(ctx, args); err != nil {
		return err
	}
	sources, err := t.paths(args, "source")
	if err != nil {
		return err
	}
	return removeAll(ctx, sources)
}

func (t *Table) remove(ctx context.Context, args ir.IRObject) error {
	paths, err := t.paths(args, "path")
	if err != nil {
		return err
	}
	return removeAll(ctx, paths)
}

func removeAll(ctx context.Context, paths []string) error {
	for _, p := range paths {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

func (t *Table) owner(ctx context.Context, args ir.IRObject) error {
	pairs, err := t.pairPaths(args, "path", "owner")
	if err != nil {
		return err
	}
	for _, p := range pairs {
		uid, err := lookupID(p.value, func(name string) (string, error) {
			u, err := user.Lookup(name)
			if err != nil {
				return "", err
			}
			return u.Uid, nil
		})
		if err != nil {
			return fmt.Errorf("owner %s: %w", p.key, err)
		}
		if err := walk(ctx, p.key, func(path string) error {
			return os.Lchown(path, uid, -1)
		}); err != nil {
			return fmt.Errorf("owner %s: %w", p.key, err)
		}
	}
	return nil
}

func (t *Table) group(ctx context.Context, args ir.IRObject) error {
	pairs, err := t.pairPaths(args, "path", "group")
	if err != nil {
		return err
	}
	for _, p := range pairs {
		gid, err := lookupID(p.value, func(name string) (string, error) {
			g, err := user.LookupGroup(name)
			if err != nil {
				return "", err
			}
			return g.Gid, nil
		})
		if err != nil {
			return fmt.Errorf("group %s: %w", p.key, err)
		}
		if err := walk(ctx, p.key, func(path string) error {
			return os.Lchown(path, -1, gid)
		}); err != nil {
			return fmt.Errorf("group %s: %w", p.key, err)
		}
	}
	return nil
}

func (t *Table) mode(ctx context.Context, args ir.IRObject) error {
	pairs, err := t.pairPaths(args, "path", "mode")
	if err != nil {
		return err
	}
	for _, p := range pairs {
		mode, err := parseMode(p.value)
		if err != nil {
			return fmt.Errorf("mode %s: %w", p.key, err)
		}
		if err := walk(ctx, p.key, func(path string) error {
			info, err := os.Lstat(path)
			if err != nil {
				return err
			}
			if info.Mode()&fs.ModeSymlink != 0 {
				return nil
			}
			return os.Chmod(path, mode)
		}); err != nil {
			return fmt.Errorf("mode %s: %w", p.key, err)
		}
	}
	return nil
}

func (t *Table) dump(ctx context.Context, args ir.IRObject) error {
	return t.writeContents(ctx, args, os.O_TRUNC)
}

func (t *Table) appendFile(ctx context.Context, args ir.IRObject) error {
	return t.writeContents(ctx, args, os.O_APPEND)
}

// writeContents writes content to every file, creating parent
// directories. Missing content writes an empty string.
func (t *Table) writeContents(ctx context.Context, args ir.IRObject, flag int) error {
	content := args["content"]
	if ir.IsNull(content) {
		content = ir.IRString("")
	}
	pairs, err := t.pairPaths(ir.IRObject{"file": args["file"], "content": content}, "file", "content")
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		s, ok := ir.Text(p.value)
		if !ok && !ir.IsNull(p.value) {
			return fmt.Errorf("%s: content must be text, got %s", p.key, ir.KindOf(p.value))
		}
		if err := writeFile(p.key, s, flag); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path, content string, flag int) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|flag, filePerm)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type sourceTarget struct {
	source string
	target string
}

func (t *Table) sourceTargets(args ir.IRObject) ([]sourceTarget, error) {
	sources, err := t.paths(args, "source")
	if err != nil {
		return nil, err
	}
	targets, err := t.paths(args, "target")
	if err != nil {
		return nil, err
	}
	pairs, err := zip(sources, ir.Strings(targets...))
	if err != nil {
		return nil, err
	}
	out := make([]sourceTarget, len(pairs))
	for i, p := range pairs {
		out[i] = sourceTarget{source: p.key, target: string(p.value.(ir.IRString))}
	}
	return out, nil
}

// mirror copies the tree at src into dst.
func mirror(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, dirPerm)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(link, target)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// walk calls fn for root and, when root is a directory, everything
// below it. Symlinks are not followed.
func walk(ctx context.Context, root string, fn func(path string) error) error {
	return filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctxErr(ctx); err != nil {
			return err
		}
		return fn(path)
	})
}

// lookupID accepts a numeric id or a name resolved through lookup.
func lookupID(v ir.IRValue, lookup func(string) (string, error)) (int, error) {
	if n, ok := v.(ir.IRInt); ok {
		return int(n), nil
	}
	name, ok := ir.Text(v)
	if !ok {
		return 0, fmt.Errorf("expected name or id, got %s", ir.KindOf(v))
	}
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	id, err := lookup(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(id)
}

var errBadMode = errors.New("invalid mode")

// parseMode reads an octal string ("0755", "755") or an integer holding
// the permission bits.
func parseMode(v ir.IRValue) (fs.FileMode, error) {
	switch m := v.(type) {
	case ir.IRInt:
		if m < 0 || m > 0o7777 {
			return 0, fmt.Errorf("%w: %d", errBadMode, m)
		}
		return fileMode(uint32(m)), nil
	case ir.IRString:
		n, err := strconv.ParseUint(string(m), 8, 32)
		if err != nil || n > 0o7777 {
			return 0, fmt.Errorf("%w: %q", errBadMode, string(m))
		}
		return fileMode(uint32(n)), nil
	}
	return 0, fmt.Errorf("%w: %s", errBadMode, ir.KindOf(v))
}

// fileMode converts unix permission bits, including setuid, setgid and
// sticky, to an fs.FileMode.
func fileMode(bits uint32) fs.FileMode {
	mode := fs.FileMode(bits & 0o777)
	if bits&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if bits&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if bits&0o1000 != 0 {
		mode |= fs.ModeSticky
	}
	return mode
}
