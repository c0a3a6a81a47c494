package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/branchflow/branchflow/internal/domain/lifecycle"
	"github.com/branchflow/branchflow/internal/engine"
)

var promoteFrom string

var promoteCmd = &cobra.Command{
	Use:   "promote <environment>",
	Short: "Promote the current release to an environment",
	Long: `Mint an environment promotion tag for the latest release.

The tag records the environment, version, promotion time and source
commit (for example staging/1.2.3-20250301-120000-abc1234), giving
each environment an immutable deployment marker.`,
	Args: cobra.ExactArgs(1),
	RunE: runPromote,
}

func init() {
	promoteCmd.Flags().StringVar(&promoteFrom, "from", "", "source branch to promote (default: main)")
}

func runPromote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env := args[0]

	if !slices.Contains(cfg.Environments, env) {
		return fmt.Errorf("unknown environment %q (configured: %s)",
			env, strings.Join(cfg.Environments, ", "))
	}

	if !outputJSON {
		printTitle(fmt.Sprintf("Promote to %s", env))
		fmt.Println()
		if dryRun {
			printDryRunBanner()
		}
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	source := promoteFrom
	if source == "" {
		source = cfg.Branches.Main
	}

	trig := lifecycle.NewTrigger(lifecycle.TriggerManualPromote, app.clock())
	trig.Environment = env
	trig.SourceBranch = source

	report, err := app.engine.HandleTrigger(ctx, trig, engine.HandleOptions{DryRun: dryRun})
	if err != nil {
		return err
	}

	return finishReport(report)
}
