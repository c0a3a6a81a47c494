package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/branchflow/branchflow/internal/domain/tagging"
	"github.com/branchflow/branchflow/internal/domain/version"
)

var (
	tagVersion string
	tagKind    string
	tagEnv     string
	tagSHA     string
	tagSupport bool
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Work with release tags",
}

var tagMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a tag for an explicit version",
	Long: `Mint the canonical tag for a version at a commit.

Minting is write-once: an existing tag pointing at the same commit is
reported as already satisfied, one pointing elsewhere is a conflict.
Nothing ever overwrites an existing tag.`,
	RunE: runTagMint,
}

func init() {
	tagCmd.AddCommand(tagMintCmd)

	tagMintCmd.Flags().StringVar(&tagVersion, "version", "", "version to tag (required)")
	tagMintCmd.Flags().StringVar(&tagKind, "kind", "patch", "version kind (major, minor, patch, rc, hotfix)")
	tagMintCmd.Flags().StringVar(&tagEnv, "env", "", "mint an environment promotion tag instead")
	tagMintCmd.Flags().StringVar(&tagSHA, "sha", "", "commit to tag (default: main head)")
	tagMintCmd.Flags().BoolVar(&tagSupport, "support", false, "mint a support-line tag")
	_ = tagMintCmd.MarkFlagRequired("version")
}

func runTagMint(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	v, err := version.Parse(tagVersion)
	if err != nil {
		return err
	}
	kind, err := version.ParseKind(tagKind)
	if err != nil {
		return err
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	sha := tagSHA
	if sha == "" {
		sha, err = app.repo.Head(ctx, cfg.Branches.Main)
		if err != nil {
			return err
		}
	}

	req := tagging.MintRequest{
		Prefix:      cfg.Tagging.Prefix,
		Version:     v,
		VersionKind: kind,
		SHA:         sha,
		Environment: tagEnv,
		Service:     cfg.Tagging.Service,
		Support:     tagSupport,
		Timestamp:   app.clock(),
	}

	if dryRun {
		name := previewTagName(req)
		if outputJSON {
			return emitJSON(map[string]any{
				"tag_name": name,
				"sha":      sha,
				"dry_run":  true,
			})
		}
		printDryRunBanner()
		printInfo(fmt.Sprintf("Would mint %s at %s", name, sha))
		return nil
	}

	tag, err := tagging.NewManager(app.repo).Mint(ctx, req)
	if err != nil {
		return err
	}

	if outputJSON {
		return emitJSON(map[string]any{
			"tag_name": tag.Name(),
			"version":  tag.Version().String(),
			"kind":     tag.Kind().String(),
			"sha":      tag.CreatedFromSHA(),
		})
	}

	printSuccess(fmt.Sprintf("Minted tag %s at %s", tag.Name(), tag.CreatedFromSHA()))
	return nil
}

// previewTagName computes the name a mint request would produce.
func previewTagName(req tagging.MintRequest) string {
	kind := tagging.KindRelease
	if req.Environment != "" {
		kind = tagging.KindEnvironment
	} else if req.Support {
		kind = tagging.KindSupport
	} else if k, ok := tagging.KindForVersion(req.VersionKind); ok {
		kind = k
	}
	return tagging.Name(req.Version, kind, tagging.NameOptions{
		Prefix:      req.Prefix,
		Environment: req.Environment,
		Service:     req.Service,
		SHA:         req.SHA,
		Timestamp:   req.Timestamp,
	})
}
