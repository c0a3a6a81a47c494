package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/branchflow/branchflow/internal/domain/branch"
	"github.com/branchflow/branchflow/internal/domain/lifecycle"
	"github.com/branchflow/branchflow/internal/engine"
)

var (
	releaseBump       string
	releaseFinishHead string
	runSequence       uint64
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Manage release cycles",
	Long: `Start and finish release cycles.

'release start' opens a release branch off develop, computes the
release-candidate version and opens a pull request toward main.
'release finish' reacts to the merged pull request: it mints the release
tag on main, merges main back into develop and deletes the release
branch.`,
}

var releaseStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a release cycle from develop",
	RunE:  runReleaseStart,
}

var releaseFinishCmd = &cobra.Command{
	Use:   "finish",
	Short: "Finish a release cycle after its pull request merged",
	RunE:  runReleaseFinish,
}

func init() {
	releaseCmd.AddCommand(releaseStartCmd)
	releaseCmd.AddCommand(releaseFinishCmd)

	releaseStartCmd.Flags().StringVarP(&releaseBump, "bump", "b", "minor", "release bump (minor, major)")
	releaseStartCmd.Flags().Uint64Var(&runSequence, "run-sequence", 1, "run sequence for candidate numbering")
	releaseFinishCmd.Flags().StringVar(&releaseFinishHead, "head", "", "merged release branch (default: the active one)")
}

// releaseLabel maps the --bump flag onto the issue label vocabulary.
func releaseLabel(bump string) (string, error) {
	switch bump {
	case "minor":
		return lifecycle.LabelReleaseMinor, nil
	case "major":
		return lifecycle.LabelReleaseMajor, nil
	default:
		return "", fmt.Errorf("invalid bump %q (expected minor or major)", bump)
	}
}

func runReleaseStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !outputJSON {
		printTitle("Release Start")
		fmt.Println()
		if dryRun {
			printDryRunBanner()
		}
	}

	label, err := releaseLabel(releaseBump)
	if err != nil {
		return err
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	trig := lifecycle.NewTrigger(lifecycle.TriggerIssueLabeled, app.clock())
	trig.Label = label

	report, err := app.engine.HandleTrigger(ctx, trig, engine.HandleOptions{
		DryRun:      dryRun,
		RunSequence: runSequence,
	})
	if err != nil {
		return err
	}

	return finishReport(report)
}

func runReleaseFinish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !outputJSON {
		printTitle("Release Finish")
		fmt.Println()
		if dryRun {
			printDryRunBanner()
		}
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	head := releaseFinishHead
	if head == "" {
		head, err = activeBranch(ctx, app, cfg.Branches.ReleasePrefix)
		if err != nil {
			return err
		}
	}

	trig := lifecycle.NewTrigger(lifecycle.TriggerPRMerged, app.clock())
	trig.BaseRole = branch.RoleMain
	trig.HeadRole = branch.RoleRelease
	trig.HeadBranch = head

	report, err := app.engine.HandleTrigger(ctx, trig, engine.HandleOptions{
		DryRun:      dryRun,
		RunSequence: runSequence,
	})
	if err != nil {
		return err
	}

	return finishReport(report)
}
