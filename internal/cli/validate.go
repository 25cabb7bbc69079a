package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool               `json:"valid"`
	Config  string             `json:"config"`
	Actions int                `json:"actions"`
	Events  map[string][]int64 `json:"events"`
	order   []string
}

func (r ValidationResult) String() string {
	parts := make([]string, 0, len(r.order))
	for _, event := range r.order {
		parts = append(parts, fmt.Sprintf("%s %v", event, r.Events[event]))
	}
	return fmt.Sprintf("✓ %s: %d actions (%s)", r.Config, r.Actions, strings.Join(parts, ", "))
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Dir string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [setup-file]",
		Short: "Validate a setup without running it",
		Long: `Load a setup file and register its entries without emitting events.

Registration checks every entry against the action schema, resolves its
arguments and checks named validators exist. Nothing is prompted or
written.

Exit codes:
  0 - Setup is valid
  1 - An entry was rejected
  2 - The file could not be loaded`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "base directory for relative paths")

	return cmd
}

func runValidate(opts *ValidateOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	dir := workDir(opts.RootOptions, opts.Dir)
	path, err := setupPath(opts.RootOptions, args, dir)
	if err != nil {
		return err
	}
	src, err := loadSetup(f, path)
	if err != nil {
		return err
	}

	p, err := registerOnly(cmd.Context(), src, dir, nil)
	if err != nil {
		return f.Fail(ExitFailure, "invalid setup", err)
	}

	reg := p.Engine.Registry()
	return f.Success(ValidationResult{
		Valid:   true,
		Config:  path,
		Actions: reg.Len(),
		Events:  p.Engine.Subscriptions(),
		order:   reg.Events(),
	})
}
