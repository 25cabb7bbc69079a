package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/roach88/setuper/internal/config"
	"github.com/roach88/setuper/internal/console"
	"github.com/roach88/setuper/internal/pipeline"
)

// setupPath picks the setup file: the argument, then SETUPER_CONFIG, then
// the first setup file found in dir.
func setupPath(opts *RootOptions, args []string, dir string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if opts.Settings.Config != "" {
		return opts.Settings.Config, nil
	}
	if path, ok := config.Find(dir); ok {
		return path, nil
	}
	return "", NewExitError(ExitCommandError, fmt.Sprintf("no setup file given and none found in %s", dir))
}

// workDir returns the --dir flag value, SETUPER_DIR, or ".".
func workDir(opts *RootOptions, flag string) string {
	switch {
	case flag != "":
		return flag
	case opts.Settings.Dir != "":
		return opts.Settings.Dir
	default:
		return "."
	}
}

// loadSetup reads the setup source. Load errors are command errors.
func loadSetup(f *OutputFormatter, path string) (*config.Source, error) {
	src, err := config.Load(path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, "failed to load setup", err)
	}
	f.VerboseLog("loaded %s: %d entries", path, len(src.Entries))
	return src, nil
}

// registerOnly builds a pipeline without running it. Prompts are never
// asked: registration only resolves entry producers.
func registerOnly(ctx context.Context, src *config.Source, dir string, out io.Writer) (*pipeline.Pipeline, error) {
	if out == nil {
		out = &bytes.Buffer{}
	}
	return pipeline.Build(ctx, pipeline.Options{
		Source: src,
		IO:     console.NewScripted(out),
		Dir:    dir,
		Quiet:  true,
	})
}
