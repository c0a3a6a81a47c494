package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/branchflow/branchflow/internal/config"
	"github.com/branchflow/branchflow/internal/domain/lifecycle"
	"github.com/branchflow/branchflow/internal/engine"
	changelogstore "github.com/branchflow/branchflow/internal/infrastructure/changelog"
	"github.com/branchflow/branchflow/internal/infrastructure/gate"
	gitinfra "github.com/branchflow/branchflow/internal/infrastructure/git"
	"github.com/branchflow/branchflow/internal/infrastructure/lock"
	"github.com/branchflow/branchflow/internal/observability"
)

// cliApp bundles everything a command needs after assembly.
type cliApp struct {
	engine  *engine.Engine
	repo    *gitinfra.Repository
	metrics *observability.Metrics
	clock   func() time.Time
}

// lifecycleConfig maps the file configuration onto the branch naming
// the lifecycle manager works with.
func lifecycleConfig(cfg *config.Config) lifecycle.Config {
	return lifecycle.Config{
		MainBranch:    cfg.Branches.Main,
		DevelopBranch: cfg.Branches.Develop,
		ReleasePrefix: cfg.Branches.ReleasePrefix,
		HotfixPrefix:  cfg.Branches.HotfixPrefix,
		SupportPrefix: cfg.Branches.SupportPrefix,
		TagPrefix:     cfg.Tagging.Prefix,
	}
}

// resilienceConfig maps the configured retry budget onto the engine's.
func resilienceConfig(cfg *config.Config) engine.ResilienceConfig {
	rc := engine.DefaultResilienceConfig()
	rc.RetryAttempts = cfg.Resilience.RetryAttempts
	if cfg.Resilience.RetryInitialWait > 0 {
		rc.RetryInitialWait = cfg.Resilience.RetryInitialWait
	}
	if cfg.Resilience.RetryMaxWait > 0 {
		rc.RetryMaxWait = cfg.Resilience.RetryMaxWait
	}
	rc.CircuitBreakerEnabled = cfg.Resilience.CircuitBreakerEnabled
	if cfg.Resilience.CircuitBreakerThreshold > 0 {
		rc.CircuitBreakerThreshold = cfg.Resilience.CircuitBreakerThreshold
	}
	if cfg.Resilience.CircuitBreakerTimeout > 0 {
		rc.CircuitBreakerTimeout = cfg.Resilience.CircuitBreakerTimeout
	}
	return rc
}

// newApp assembles the engine against the configured repository.
func newApp(cfg *config.Config) (*cliApp, error) {
	registry, err := config.BuildRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build release line registry: %w", err)
	}

	lcCfg := lifecycleConfig(cfg)
	manager, err := lifecycle.NewManager(lcCfg, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to build lifecycle manager: %w", err)
	}

	repo, err := gitinfra.Open(gitinfra.Config{
		RepoPath:       cfg.Repository.Path,
		CommitterName:  cfg.Repository.CommitterName,
		CommitterEmail: cfg.Repository.CommitterEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	lockDir := cfg.Lock.Dir
	if !filepath.IsAbs(lockDir) {
		lockDir = filepath.Join(cfg.Repository.Path, lockDir)
	}
	locks, err := lock.NewManager(lockDir, lock.WithStaleAfter(cfg.Lock.StaleAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to set up lock manager: %w", err)
	}

	metrics := observability.NewMetrics()

	opts := []engine.Option{
		engine.WithLockManager(locks),
		engine.WithChangelog(changelogstore.NewFileStore(changelogPath(cfg))),
		engine.WithResilience(engine.NewResilience(resilienceConfig(cfg))),
		engine.WithMetrics(metrics),
	}
	if cfg.Gate.Command != "" {
		opts = append(opts, engine.WithQualityGate(gate.New(cfg.Gate.Command,
			gate.WithDir(cfg.Repository.Path),
			gate.WithTimeout(cfg.Gate.Timeout))))
	}

	eng := engine.New(lcCfg, manager, repo, repo, opts...)

	return &cliApp{
		engine:  eng,
		repo:    repo,
		metrics: metrics,
		clock:   time.Now,
	}, nil
}

// changelogPath resolves the changelog file relative to the repository.
func changelogPath(cfg *config.Config) string {
	path := cfg.Changelog.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.Repository.Path, path)
	}
	return path
}

// activeBranch finds the single in-flight branch with the given prefix.
func activeBranch(ctx context.Context, app *cliApp, prefix string) (string, error) {
	names, err := app.repo.Branches(ctx)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no %s* branch is in flight", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("multiple %s* branches in flight (%s), pass --head", prefix, strings.Join(matches, ", "))
	}
}
