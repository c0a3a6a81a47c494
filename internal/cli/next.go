package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	nextBranch      string
	nextRunSequence uint64
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Calculate the next version for a branch",
	Long: `Calculate the next version the calculator would assign on the given
branch, from the latest release tag and the commits since it.

On main the bump follows the most severe commit class in the range; on
release branches the branch-embedded version drives a release
candidate; on hotfix branches the patch number advances.`,
	RunE: runNext,
}

func init() {
	versionCmd.AddCommand(nextCmd)

	nextCmd.Flags().StringVarP(&nextBranch, "branch", "b", "", "branch to calculate for (default: main)")
	nextCmd.Flags().Uint64Var(&nextRunSequence, "run-sequence", 1, "run sequence for candidate numbering")
}

func runNext(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	branchName := nextBranch
	if branchName == "" {
		branchName = cfg.Branches.Main
	}

	next, kind, err := app.engine.NextVersion(ctx, branchName, nextRunSequence)
	if err != nil {
		return err
	}

	tagName := cfg.Tagging.Prefix + next.String()

	if outputJSON {
		return emitJSON(map[string]any{
			"branch":       branchName,
			"next_version": next.String(),
			"kind":         kind.String(),
			"tag_name":     tagName,
		})
	}

	printInfo(fmt.Sprintf("Branch:       %s", branchName))
	printInfo(fmt.Sprintf("Next version: %s", next.String()))
	printInfo(fmt.Sprintf("Bump kind:    %s", kind.String()))
	return nil
}
