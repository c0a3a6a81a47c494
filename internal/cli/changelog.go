package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/branchflow/branchflow/internal/domain/changelog"
	changelogstore "github.com/branchflow/branchflow/internal/infrastructure/changelog"
)

var changelogWrite bool

var changelogCmd = &cobra.Command{
	Use:   "changelog",
	Short: "Work with the changelog",
}

var changelogRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the changelog entry for the next release",
	Long: `Render the changelog section the next release would produce, from
the commits accumulated since the latest release tag.

Commits are grouped into Breaking Changes, Features, Fixes and Chores
by their conventional commit prefix; unclassified commits land under
Fixes. With --write the section is merged into the changelog file.`,
	RunE: runChangelogRender,
}

func init() {
	changelogCmd.AddCommand(changelogRenderCmd)

	changelogRenderCmd.Flags().BoolVarP(&changelogWrite, "write", "w", false, "merge the rendered entry into the changelog file")
}

func runChangelogRender(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	latestTag, err := app.repo.LatestVersionTag(ctx, cfg.Tagging.Prefix)
	if err != nil {
		return err
	}

	commits, err := app.repo.CommitsSince(ctx, cfg.Branches.Main, latestTag)
	if err != nil {
		return err
	}

	next, _, err := app.engine.NextVersion(ctx, cfg.Branches.Main, 1)
	if err != nil {
		return err
	}

	entry := changelog.NewEntry(next, app.clock(), commits)
	rendered, err := changelog.NewRenderer().Render(entry)
	if err != nil {
		return err
	}

	if changelogWrite && !dryRun {
		store := changelogstore.NewFileStore(changelogPath(cfg))
		if err := store.Apply(ctx, entry); err != nil {
			return err
		}
	}

	if outputJSON {
		return emitJSON(map[string]any{
			"version":  next.String(),
			"commits":  len(commits),
			"markdown": rendered,
			"written":  changelogWrite && !dryRun,
		})
	}

	fmt.Print(rendered)
	if changelogWrite && !dryRun {
		fmt.Println()
		printSuccess(fmt.Sprintf("Changelog updated: %s", cfg.Changelog.File))
	}
	return nil
}
