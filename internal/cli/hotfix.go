package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/branchflow/branchflow/internal/domain/branch"
	"github.com/branchflow/branchflow/internal/domain/lifecycle"
	"github.com/branchflow/branchflow/internal/engine"
)

var hotfixFinishHead string

var hotfixCmd = &cobra.Command{
	Use:   "hotfix",
	Short: "Manage hotfix cycles",
	Long: `Start and finish hotfix cycles.

'hotfix start' cuts a hotfix branch from main at the next patch
version and opens a pull request back to main. 'hotfix finish' reacts
to the merged pull request: it mints the patch tag, merges main into
develop, deletes the hotfix branch, and cherry-picks the fix onto
every supported release line that admits fixes.`,
}

var hotfixStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a hotfix cycle from main",
	RunE:  runHotfixStart,
}

var hotfixFinishCmd = &cobra.Command{
	Use:   "finish",
	Short: "Finish a hotfix cycle after its pull request merged",
	RunE:  runHotfixFinish,
}

func init() {
	hotfixCmd.AddCommand(hotfixStartCmd)
	hotfixCmd.AddCommand(hotfixFinishCmd)

	hotfixFinishCmd.Flags().StringVar(&hotfixFinishHead, "head", "", "merged hotfix branch (default: the active one)")
}

func runHotfixStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !outputJSON {
		printTitle("Hotfix Start")
		fmt.Println()
		if dryRun {
			printDryRunBanner()
		}
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	trig := lifecycle.NewTrigger(lifecycle.TriggerIssueLabeled, app.clock())
	trig.Label = lifecycle.LabelHotfix

	report, err := app.engine.HandleTrigger(ctx, trig, engine.HandleOptions{DryRun: dryRun})
	if err != nil {
		return err
	}

	return finishReport(report)
}

func runHotfixFinish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !outputJSON {
		printTitle("Hotfix Finish")
		fmt.Println()
		if dryRun {
			printDryRunBanner()
		}
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	head := hotfixFinishHead
	if head == "" {
		head, err = activeBranch(ctx, app, cfg.Branches.HotfixPrefix)
		if err != nil {
			return err
		}
	}

	trig := lifecycle.NewTrigger(lifecycle.TriggerPRMerged, app.clock())
	trig.BaseRole = branch.RoleMain
	trig.HeadRole = branch.RoleHotfix
	trig.HeadBranch = head

	report, err := app.engine.HandleTrigger(ctx, trig, engine.HandleOptions{DryRun: dryRun})
	if err != nil {
		return err
	}

	return finishReport(report)
}
