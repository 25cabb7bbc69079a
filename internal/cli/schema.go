package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/setuper/internal/schema"
)

// SchemaInfo describes the embedded action contract.
type SchemaInfo struct {
	Version string   `json:"version"`
	Actions []string `json:"actions"`
	Source  string   `json:"source"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the action schema",
		Long: `Print the CUE contract every action entry is validated against.

With --format json the version and action names are included.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Format != "json" {
				fmt.Fprint(cmd.OutOrStdout(), schema.Source())
				if !strings.HasSuffix(schema.Source(), "\n") {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				return nil
			}

			v, err := schema.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load schema", err)
			}
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return f.Success(SchemaInfo{
				Version: v.Version(),
				Actions: v.Actions(),
				Source:  schema.Source(),
			})
		},
	}
}
