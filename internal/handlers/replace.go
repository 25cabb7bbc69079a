package handlers

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/roach88/setuper/internal/ir"
)

// globChars mark a file argument as a pattern.
const globChars = `\*?[`

// replace rewrites file contents with a regular expression. File entries
// that contain glob characters are expanded first: the base name is
// matched in the directory, recursively when the directory contains "**".
// Plain entries that are not regular files are skipped.
func (t *Table) replace(ctx context.Context, args ir.IRObject) error {
	files, err := t.paths(args, "file")
	if err != nil {
		return err
	}
	pattern, err := text(args, "pattern")
	if err != nil {
		return err
	}
	repl, ok := ir.Text(args["replace"])
	if !ok && !ir.IsNull(args["replace"]) {
		return fmt.Errorf("replace: expected string, got %s", ir.KindOf(args["replace"]))
	}

	re, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	template := convertReplacement(repl)

	for _, file := range files {
		targets := []string{file}
		if strings.ContainsAny(file, globChars) {
			if targets, err = findFiles(ctx, file); err != nil {
				return err
			}
		}
		for _, target := range targets {
			if err := ctxErr(ctx); err != nil {
				return err
			}
			if err := replaceInFile(target, re, template); err != nil {
				return err
			}
		}
	}
	return nil
}

func replaceInFile(path string, re *regexp.Regexp, template string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	out := re.ReplaceAll(data, []byte(template))
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// findFiles expands a glob entry into regular files in sorted order.
// Dot files and dot directories below the root are ignored.
func findFiles(ctx context.Context, entry string) ([]string, error) {
	name := filepath.Base(entry)
	dir := filepath.Dir(entry)
	recursive := strings.Contains(dir, "**")
	if recursive {
		dir = filepath.Clean(strings.ReplaceAll(dir, "**", ""))
	}
	if _, err := filepath.Match(name, ""); err != nil {
		return nil, fmt.Errorf("replace %s: %w", entry, err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("replace %s: %w", entry, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("replace %s: %s is not a directory", entry, dir)
	}

	var found []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(name, d.Name()); ok {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replace %s: %w", entry, err)
	}
	return found, nil
}

// delimiters may open and close a delimited pattern. Brackets are left
// out so that bare expressions starting with a group or class stay bare.
const delimiters = "/#~!@%|+;,"

// compilePattern accepts a delimited pattern with trailing flags
// ("/foo/i", "#a.b#s") or a bare Go regular expression. Supported flags
// are i, m, s and U; x and u are accepted and ignored.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	body, flags, ok := splitDelimited(pattern)
	if !ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		return re, nil
	}

	var goFlags strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's', 'U':
			goFlags.WriteRune(f)
		case 'x', 'u':
		default:
			return nil, fmt.Errorf("pattern %q: unsupported flag %q", pattern, f)
		}
	}
	if goFlags.Len() > 0 {
		body = "(?" + goFlags.String() + ")" + body
	}
	re, err := regexp.Compile(body)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	return re, nil
}

func splitDelimited(pattern string) (body, flags string, ok bool) {
	if len(pattern) < 2 {
		return "", "", false
	}
	open := pattern[0]
	if strings.IndexByte(delimiters, open) < 0 {
		return "", "", false
	}
	i := strings.LastIndexByte(pattern, open)
	if i <= 0 {
		return "", "", false
	}
	flags = pattern[i+1:]
	for j := 0; j < len(flags); j++ {
		if !isFlagByte(flags[j]) {
			return "", "", false
		}
	}
	return pattern[1:i], flags, true
}

func isFlagByte(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// convertReplacement rewrites $n, ${n} and \n references (n up to two
// digits) into Go's ${n} form and escapes every other dollar sign.
func convertReplacement(repl string) string {
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c != '$' && c != '\\' {
			b.WriteByte(c)
			continue
		}

		j := i + 1
		braced := c == '$' && j < len(repl) && repl[j] == '{'
		if braced {
			j++
		}
		start := j
		for j < len(repl) && j-start < 2 && '0' <= repl[j] && repl[j] <= '9' {
			j++
		}
		digits := repl[start:j]
		if braced {
			if digits == "" || j >= len(repl) || repl[j] != '}' {
				digits = ""
			} else {
				j++
			}
		}

		switch {
		case digits != "":
			b.WriteString("${" + digits + "}")
			i = j - 1
		case c == '$':
			b.WriteString("$$")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
