package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/setuper/internal/pipeline"
)

// PlanResult lists the tiers a setup would run.
type PlanResult struct {
	Config string          `json:"config"`
	Tiers  []pipeline.Tier `json:"tiers"`
}

func (r PlanResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Config)
	event := ""
	for _, tier := range r.Tiers {
		if tier.Event != event {
			event = tier.Event
			fmt.Fprintf(&b, "%s\n", event)
		}
		fmt.Fprintf(&b, "  [%d]\n", tier.Priority)
		for _, d := range tier.Actions {
			fmt.Fprintf(&b, "    %-10s %s\n", d.Action, d.Key)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Dir string
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan [setup-file]",
		Short: "Show the actions each event would run",
		Long: `Register a setup and print its events and priority tiers in
dispatch order, with the actions of each tier.

Examples:
  setuper plan setup.yaml
  setuper plan setup.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "base directory for relative paths")

	return cmd
}

func runPlan(opts *PlanOptions, args []string, cmd *cobra.Command) error {
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

	tiers := p.Plan()
	if tiers == nil {
		tiers = []pipeline.Tier{}
	}
	return f.Success(PlanResult{Config: path, Tiers: tiers})
}
