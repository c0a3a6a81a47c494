package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/branchflow/branchflow/internal/config"
	"github.com/branchflow/branchflow/internal/domain/lifecycle"
	"github.com/branchflow/branchflow/internal/engine"
	"github.com/branchflow/branchflow/internal/ui"
)

var supportCmd = &cobra.Command{
	Use:   "support",
	Short: "Manage supported release lines",
	Long: `Manage long-term supported release lines.

'support sweep' checks every line's support window against the clock
and flags expired lines for retirement. 'support retire' confirms the
retirement of an expired line and deletes its support branch.`,
}

var supportSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Flag release lines whose support window has expired",
	RunE:  runSupportSweep,
}

var supportRetireCmd = &cobra.Command{
	Use:   "retire <line-id>",
	Short: "Confirm retirement of an expired release line",
	Args:  cobra.ExactArgs(1),
	RunE:  runSupportRetire,
}

func init() {
	supportCmd.AddCommand(supportSweepCmd)
	supportCmd.AddCommand(supportRetireCmd)
}

func runSupportSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !outputJSON {
		printTitle("Support Window Sweep")
		fmt.Println()
		if dryRun {
			printDryRunBanner()
		}
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	trig := lifecycle.NewTrigger(lifecycle.TriggerSupportWindowExpired, app.clock())

	report, err := app.engine.HandleTrigger(ctx, trig, engine.HandleOptions{DryRun: dryRun})
	if err != nil {
		return err
	}

	if !outputJSON && len(report.Decision.Actions) == 0 {
		printInfo("All support windows are still open")
		return nil
	}
	return finishReport(report)
}

func runSupportRetire(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lineID := args[0]

	if !outputJSON {
		printTitle("Retire Support Line")
		fmt.Println()
		if dryRun {
			printDryRunBanner()
		}
	}

	// Interactive confirmation unless bypassed. JSON mode implies
	// non-interactive invocation.
	if !yesFlag && !outputJSON && !dryRun {
		summary, err := retireSummary(cfg, lineID)
		if err != nil {
			return err
		}
		result, err := ui.Confirm(summary)
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if result != ui.ConfirmAccepted {
			printInfo("Retirement canceled")
			return nil
		}
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	// Retirement is only legal once the line's window has expired, so
	// sweep first to flag expired windows in this run.
	sweep := lifecycle.NewTrigger(lifecycle.TriggerSupportWindowExpired, app.clock())
	if _, err := app.engine.HandleTrigger(ctx, sweep, engine.HandleOptions{DryRun: true}); err != nil {
		return err
	}

	trig := lifecycle.NewTrigger(lifecycle.TriggerRetireConfirmed, app.clock())
	trig.LineID = lineID

	report, err := app.engine.HandleTrigger(ctx, trig, engine.HandleOptions{DryRun: dryRun})
	if err != nil {
		return err
	}

	if !outputJSON && !dryRun {
		printSuccess(fmt.Sprintf("Line %s retired", lineID))
	}
	return finishReport(report)
}

// retireSummary builds the confirmation view data for a line.
func retireSummary(cfg *config.Config, lineID string) (ui.RetireSummary, error) {
	registry, err := config.BuildRegistry(cfg)
	if err != nil {
		return ui.RetireSummary{}, err
	}
	line, err := registry.Get(lineID)
	if err != nil {
		return ui.RetireSummary{}, err
	}
	return ui.RetireSummary{
		LineID:       line.ID(),
		Tier:         line.Tier().String(),
		BaseVersion:  line.BaseVersion().String(),
		SupportUntil: line.SupportUntil(),
		Branch:       cfg.Branches.SupportPrefix + line.ID(),
	}, nil
}
