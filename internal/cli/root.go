// Package cli implements the setuper command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/setuper/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	LogLevel  string // debug | info | warn | error
	LogFormat string // text | json

	// Settings are environment defaults for command flags.
	Settings config.Settings
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// DotEnvFile is read for settings not present in the environment.
const DotEnvFile = ".env"

// NewRootCommand creates the root command with settings from the
// environment and DotEnvFile.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithSettings(config.LoadSettings(DotEnvFile))
}

// NewRootCommandWithSettings creates the root command with the given
// environment defaults.
func NewRootCommandWithSettings(settings config.Settings) *cobra.Command {
	opts := &RootOptions{Settings: settings}

	cmd := &cobra.Command{
		Use:   "setuper",
		Short: "Declarative, event-driven setup runner",
		Long: `setuper runs project setup described as data.

A setup file maps keys to action entries (write, insert, select, directory,
symlink, replace, ...). Entries are validated when registered and run when
their event is emitted, highest priority first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			level := opts.LogLevel
			if opts.Verbose {
				level = "debug"
			}
			logger, err := newLogger(level, opts.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid logging flags", err)
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", settings.LogLevel, "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", settings.LogFormat, "log format (text|json)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

// newLogger builds the process logger. Logs always go to w (stderr), never
// to command output.
func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if level == "" {
		level = "warn"
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("log format %q: must be text or json", format)
	}
}
