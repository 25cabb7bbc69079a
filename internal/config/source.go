// Package config loads setup sources and environment settings.
//
// A setup source is an ordered mapping of entry keys to action entries.
// The format is picked by file extension: JSON (a composer.json extra.setup
// block or a bare object), YAML, CUE, HCL, or a Go script interpreted with
// yaegi that may also contribute callables and validators.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/setuper/internal/engine"
	"github.com/roach88/setuper/internal/resolve"
	"github.com/roach88/setuper/internal/validator"
)

// Load error codes.
const (
	ErrCodeRead        = "E001" // file cannot be read
	ErrCodeParse       = "E002" // file is not valid in its format
	ErrCodeShape       = "E003" // setup is not a mapping, or an entry is malformed
	ErrCodeUnsupported = "E004" // unknown file extension
	ErrCodeScript      = "E005" // script failed to evaluate
)

// LoadError reports a setup source that could not be loaded.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Source is a loaded setup.
type Source struct {
	Path    string
	Entries engine.Entries

	// Callables and Validators are contributed by script sources, keyed by
	// their full "<namespace>::<name>" name.
	Callables  map[string]resolve.Callable
	Validators map[string]validator.Func
}

// Install registers the source's callables and validators.
func (s *Source) Install(callables *resolve.Callables, validators *validator.Table) error {
	for _, name := range sortedKeys(s.Callables) {
		if err := callables.Register(name, s.Callables[name]); err != nil {
			return fmt.Errorf("%s: %w", s.Path, err)
		}
	}
	for _, name := range sortedKeys(s.Validators) {
		if err := validators.Register(name, s.Validators[name]); err != nil {
			return fmt.Errorf("%s: %w", s.Path, err)
		}
	}
	return nil
}

// Extensions lists the supported file extensions.
var Extensions = []string{".json", ".yaml", ".yml", ".cue", ".hcl", ".go"}

// Load reads the setup source at path.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Path: path, Message: "cannot read file", Err: err}
	}

	var src *Source
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		src, err = loadJSON(path, data)
	case ".yaml", ".yml":
		src, err = loadYAML(path, data)
	case ".cue":
		src, err = loadCUE(path, data)
	case ".hcl":
		src, err = loadHCL(path, data)
	case ".go":
		src, err = loadScript(path, data)
	default:
		return nil, &LoadError{
			Code:    ErrCodeUnsupported,
			Path:    path,
			Message: fmt.Sprintf("unsupported extension %q (want one of %s)", ext, strings.Join(Extensions, ", ")),
		}
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("setup source loaded",
		"path", path,
		"entries", len(src.Entries),
		"callables", len(src.Callables),
		"validators", len(src.Validators),
	)
	return src, nil
}

// Find returns the first existing candidate setup file in dir:
// setup.{yaml,yml,json,cue,hcl,go}, then composer.json.
func Find(dir string) (string, bool) {
	candidates := []string{"setup.yaml", "setup.yml", "setup.json", "setup.cue", "setup.hcl", "setup.go", "composer.json"}
	for _, name := range candidates {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

func parseError(path string, err error) error {
	return &LoadError{Code: ErrCodeParse, Path: path, Message: "invalid syntax", Err: err}
}

func shapeError(path, format string, args ...any) error {
	return &LoadError{Code: ErrCodeShape, Path: path, Message: fmt.Sprintf(format, args...)}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
