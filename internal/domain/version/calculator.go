package version

import (
	"fmt"
	"time"

	"github.com/branchflow/branchflow/internal/domain/branch"
	"github.com/branchflow/branchflow/internal/domain/changes"
)

// Context carries everything a next-version calculation needs. It is
// assembled by the orchestrator; the calculator itself reads no ambient
// state.
type Context struct {
	// LatestTag is the highest release version already tagged, nil when
	// the repository has never been tagged.
	LatestTag *SemanticVersion
	// Role is the GitFlow role of the branch being versioned.
	Role branch.Role
	// BranchName is the name of the branch being versioned.
	BranchName string
	// BranchVersion is the raw version string embedded in the branch
	// name (e.g. "2.0.0" from "release/2.0.0"), empty when absent.
	BranchVersion string
	// Commits is the classified range since the latest tag, oldest first.
	Commits []changes.Commit
	// RunSequence disambiguates repeated builds of the same source.
	RunSequence uint64
	// Date is the UTC date of the run, used for dev build identifiers.
	Date time.Time
}

// Calculator computes the next semantic version for a branch context.
type Calculator struct{}

// NewCalculator creates a new Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// devDateLayout formats the UTC date segment of dev build identifiers.
const devDateLayout = "20060102"

// Next computes the next version and its kind for the given context.
//
// Dispatch is by branch role: main bumps by the most severe commit class,
// develop produces an ephemeral dev identifier, release branches produce
// rc prereleases from their branch-encoded version, hotfix branches use
// the embedded version or bump patch, and feature branches produce
// snapshot prereleases. For main and hotfix the result is guaranteed to
// order strictly above the latest tag.
func (c *Calculator) Next(ctx Context) (SemanticVersion, Kind, error) {
	latest := Zero
	if ctx.LatestTag != nil {
		latest = *ctx.LatestTag
	}

	switch ctx.Role {
	case branch.RoleMain:
		v, kind := c.nextMain(latest, ctx.Commits)
		return v, kind, nil

	case branch.RoleDevelop:
		pre := NewPrerelease(
			fmt.Sprintf("dev.%s", ctx.Date.UTC().Format(devDateLayout)),
			ctx.RunSequence,
		)
		return latest.BumpMinor().WithPrerelease(pre), KindDev, nil

	case branch.RoleRelease:
		return c.nextRelease(ctx)

	case branch.RoleHotfix:
		return c.nextHotfix(latest, ctx)

	case branch.RoleFeature:
		pre := NewPrerelease(branch.SanitizeName(ctx.BranchName), ctx.RunSequence)
		return latest.Core().WithPrerelease(pre), KindFeatureSnapshot, nil

	default:
		return Zero, "", fmt.Errorf("%w: no versioning rule for branch role %q",
			ErrMissingBaseVersion, ctx.Role)
	}
}

// nextMain applies the bump rule from the most severe commit class.
// Fix-equivalent and empty ranges both bump patch, so main never stalls.
func (c *Calculator) nextMain(latest SemanticVersion, commits []changes.Commit) (SemanticVersion, Kind) {
	switch changes.MaxClass(commits) {
	case changes.ClassBreaking:
		return latest.BumpMajor(), KindMajor
	case changes.ClassFeature:
		return latest.BumpMinor(), KindMinor
	default:
		return latest.BumpPatch(), KindPatch
	}
}

// nextRelease requires a well-formed core version embedded in the branch
// name and produces an rc prerelease of it.
func (c *Calculator) nextRelease(ctx Context) (SemanticVersion, Kind, error) {
	if ctx.BranchVersion == "" {
		return Zero, "", fmt.Errorf("%w: release branch %q carries no version",
			ErrMissingBaseVersion, ctx.BranchName)
	}

	base, err := parseCore(ctx.BranchVersion)
	if err != nil {
		return Zero, "", err
	}

	return base.WithPrerelease(NewPrerelease("rc", ctx.RunSequence)), KindReleaseCandidate, nil
}

// nextHotfix uses the branch-encoded version verbatim when present, and
// bumps patch from the latest tag otherwise. Either way the result must
// order strictly above the latest tag.
func (c *Calculator) nextHotfix(latest SemanticVersion, ctx Context) (SemanticVersion, Kind, error) {
	if ctx.BranchVersion == "" {
		return latest.BumpPatch(), KindHotfix, nil
	}

	v, err := parseCore(ctx.BranchVersion)
	if err != nil {
		return Zero, "", err
	}
	if !v.GreaterThan(latest) {
		return Zero, "", fmt.Errorf("%w: hotfix version %s does not advance latest tag %s",
			ErrInvalidBranchVersion, v, latest)
	}
	return v, KindHotfix, nil
}

// parseCore parses a branch-embedded version and rejects anything that is
// not a plain X.Y.Z core version.
func parseCore(raw string) (SemanticVersion, error) {
	v, err := Parse(raw)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidBranchVersion, raw)
	}
	if v.IsPrerelease() || v.Metadata() != "" {
		return Zero, fmt.Errorf("%w: %q must be a plain X.Y.Z version", ErrInvalidBranchVersion, raw)
	}
	return v, nil
}
