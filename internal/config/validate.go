package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/branchflow/branchflow/internal/domain/changes"
	"github.com/branchflow/branchflow/internal/domain/releaseline"
	"github.com/branchflow/branchflow/internal/domain/version"
	"github.com/branchflow/branchflow/internal/errors"
)

// supportUntilLayout is the date format for line support windows.
const supportUntilLayout = "2006-01-02"

// Validate checks the configuration for structural errors.
func Validate(cfg *Config) error {
	const op = "config.Validate"

	if strings.TrimSpace(cfg.Branches.Main) == "" {
		return errors.Config(op, "branches.main must not be empty")
	}
	if strings.TrimSpace(cfg.Branches.Develop) == "" {
		return errors.Config(op, "branches.develop must not be empty")
	}
	if cfg.Branches.Main == cfg.Branches.Develop {
		return errors.Config(op, "branches.main and branches.develop must differ")
	}

	for name, prefix := range map[string]string{
		"branches.release_prefix": cfg.Branches.ReleasePrefix,
		"branches.hotfix_prefix":  cfg.Branches.HotfixPrefix,
		"branches.support_prefix": cfg.Branches.SupportPrefix,
	} {
		if prefix == "" {
			return errors.Config(op, fmt.Sprintf("%s must not be empty", name))
		}
		if !strings.HasSuffix(prefix, "/") {
			return errors.Config(op, fmt.Sprintf("%s must end with '/'", name))
		}
	}

	if strings.TrimSpace(cfg.Changelog.File) == "" {
		return errors.Config(op, "changelog.file must not be empty")
	}

	for i, env := range cfg.Environments {
		if strings.TrimSpace(env) == "" {
			return errors.Config(op, fmt.Sprintf("environments[%d] must not be empty", i))
		}
	}

	if cfg.Resilience.RetryAttempts < 0 {
		return errors.Config(op, "resilience.retry_attempts must not be negative")
	}

	return validateLines(cfg.Lines)
}

// validateLines checks the release line declarations, including the
// single-current and single-next constraints.
func validateLines(lines []LineConfig) error {
	const op = "config.validateLines"

	seen := make(map[string]struct{}, len(lines))
	exclusive := make(map[releaseline.Tier]string)

	for i, line := range lines {
		if strings.TrimSpace(line.ID) == "" {
			return errors.Config(op, fmt.Sprintf("lines[%d].id must not be empty", i))
		}
		if _, dup := seen[line.ID]; dup {
			return errors.Config(op, fmt.Sprintf("duplicate line id %q", line.ID))
		}
		seen[line.ID] = struct{}{}

		tier, err := releaseline.ParseTier(line.Tier)
		if err != nil {
			return errors.ConfigWrap(err, op, fmt.Sprintf("lines[%d].tier", i))
		}
		if tier.Exclusive() {
			if other, taken := exclusive[tier]; taken {
				return errors.Config(op, fmt.Sprintf(
					"only one %s line is allowed, both %q and %q declare it", tier, other, line.ID))
			}
			exclusive[tier] = line.ID
		}

		if _, err := version.Parse(line.BaseVersion); err != nil {
			return errors.ConfigWrap(err, op, fmt.Sprintf("lines[%d].base_version", i))
		}

		if line.SupportUntil != "" {
			if _, err := time.Parse(supportUntilLayout, line.SupportUntil); err != nil {
				return errors.ConfigWrap(err, op, fmt.Sprintf("lines[%d].support_until", i))
			}
		}

		for _, class := range line.Admit {
			if _, err := parseAdmissibleClass(class); err != nil {
				return errors.ConfigWrap(err, op, fmt.Sprintf("lines[%d].admit", i))
			}
		}
	}

	return nil
}

// BuildRegistry constructs the release line registry declared by the
// configuration. Validate must have passed.
func BuildRegistry(cfg *Config) (*releaseline.Registry, error) {
	registry := releaseline.NewRegistry()

	for _, lc := range cfg.Lines {
		tier, err := releaseline.ParseTier(lc.Tier)
		if err != nil {
			return nil, err
		}
		base, err := version.Parse(lc.BaseVersion)
		if err != nil {
			return nil, err
		}

		admissible := make([]changes.CommitClass, 0, len(lc.Admit))
		for _, raw := range lc.Admit {
			class, err := parseAdmissibleClass(raw)
			if err != nil {
				return nil, err
			}
			admissible = append(admissible, class)
		}

		line := releaseline.NewLine(lc.ID, tier, base, admissible)
		if lc.SupportUntil != "" {
			until, err := time.Parse(supportUntilLayout, lc.SupportUntil)
			if err != nil {
				return nil, err
			}
			line = line.WithSupportWindow(until)
		}
		if lc.Service != "" {
			line = line.WithService(lc.Service)
		}

		if err := registry.Register(line); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// parseAdmissibleClass maps a configured class name to a commit class.
func parseAdmissibleClass(raw string) (changes.CommitClass, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "breaking":
		return changes.ClassBreaking, nil
	case "feature", "feat":
		return changes.ClassFeature, nil
	case "fix":
		return changes.ClassFix, nil
	case "chore":
		return changes.ClassChore, nil
	default:
		return "", fmt.Errorf("unknown commit class %q", raw)
	}
}
