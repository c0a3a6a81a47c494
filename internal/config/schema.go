// Package config provides configuration management for branchflow.
package config

import "time"

// ConfigFileNames to search for.
var ConfigFileNames = []string{
	".branchflow",
	"branchflow",
}

// ConfigFileExtensions supported by Viper.
var ConfigFileExtensions = []string{
	"yaml",
	"yml",
	"toml",
	"json",
}

// Config is the root configuration.
type Config struct {
	Repository   RepositoryConfig `mapstructure:"repository" yaml:"repository" toml:"repository"`
	Branches     BranchesConfig   `mapstructure:"branches" yaml:"branches" toml:"branches"`
	Tagging      TaggingConfig    `mapstructure:"tagging" yaml:"tagging" toml:"tagging"`
	Changelog    ChangelogConfig  `mapstructure:"changelog" yaml:"changelog" toml:"changelog"`
	Lock         LockConfig       `mapstructure:"lock" yaml:"lock" toml:"lock"`
	Resilience   ResilienceConfig `mapstructure:"resilience" yaml:"resilience" toml:"resilience"`
	Gate         GateConfig       `mapstructure:"gate" yaml:"gate" toml:"gate"`
	Output       OutputConfig     `mapstructure:"output" yaml:"output" toml:"output"`
	Environments []string         `mapstructure:"environments" yaml:"environments" toml:"environments"`
	Lines        []LineConfig     `mapstructure:"lines" yaml:"lines,omitempty" toml:"lines,omitempty"`
}

// RepositoryConfig locates the repository and identifies authorship for
// merge and tag objects.
type RepositoryConfig struct {
	Path           string `mapstructure:"path" yaml:"path" toml:"path"`
	CommitterName  string `mapstructure:"committer_name" yaml:"committer_name" toml:"committer_name"`
	CommitterEmail string `mapstructure:"committer_email" yaml:"committer_email" toml:"committer_email"`
	Remote         string `mapstructure:"remote" yaml:"remote" toml:"remote"`
}

// BranchesConfig names the long-lived branches and ephemeral prefixes.
type BranchesConfig struct {
	Main          string `mapstructure:"main" yaml:"main" toml:"main"`
	Develop       string `mapstructure:"develop" yaml:"develop" toml:"develop"`
	ReleasePrefix string `mapstructure:"release_prefix" yaml:"release_prefix" toml:"release_prefix"`
	HotfixPrefix  string `mapstructure:"hotfix_prefix" yaml:"hotfix_prefix" toml:"hotfix_prefix"`
	SupportPrefix string `mapstructure:"support_prefix" yaml:"support_prefix" toml:"support_prefix"`
}

// TaggingConfig controls tag naming.
type TaggingConfig struct {
	// Prefix is the release tag prefix, normally "v".
	Prefix string `mapstructure:"prefix" yaml:"prefix" toml:"prefix"`
	// Service is the optional monorepo service prefix for support tags.
	Service string `mapstructure:"service" yaml:"service,omitempty" toml:"service,omitempty"`
}

// ChangelogConfig controls the changelog document.
type ChangelogConfig struct {
	File string `mapstructure:"file" yaml:"file" toml:"file"`
}

// LockConfig controls the advisory run lock.
type LockConfig struct {
	Dir        string        `mapstructure:"dir" yaml:"dir" toml:"dir"`
	StaleAfter time.Duration `mapstructure:"stale_after" yaml:"stale_after" toml:"stale_after"`
}

// ResilienceConfig is the adapter call budget.
type ResilienceConfig struct {
	RetryAttempts    int           `mapstructure:"retry_attempts" yaml:"retry_attempts" toml:"retry_attempts"`
	RetryInitialWait time.Duration `mapstructure:"retry_initial_wait" yaml:"retry_initial_wait" toml:"retry_initial_wait"`
	RetryMaxWait     time.Duration `mapstructure:"retry_max_wait" yaml:"retry_max_wait" toml:"retry_max_wait"`

	CircuitBreakerEnabled   bool          `mapstructure:"circuit_breaker_enabled" yaml:"circuit_breaker_enabled" toml:"circuit_breaker_enabled"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold" yaml:"circuit_breaker_threshold" toml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout" yaml:"circuit_breaker_timeout" toml:"circuit_breaker_timeout"`
}

// GateConfig controls the quality gate run before a release finishes.
type GateConfig struct {
	// Command is an executable returning zero for pass. Empty disables
	// the gate.
	Command string        `mapstructure:"command" yaml:"command,omitempty" toml:"command,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" toml:"timeout"`
}

// OutputConfig controls CLI output.
type OutputConfig struct {
	Format   string `mapstructure:"format" yaml:"format" toml:"format"`
	Color    bool   `mapstructure:"color" yaml:"color" toml:"color"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" toml:"verbose"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level" toml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file,omitempty" toml:"log_file,omitempty"`
}

// LineConfig declares one supported release line.
type LineConfig struct {
	ID           string   `mapstructure:"id" yaml:"id" toml:"id"`
	Tier         string   `mapstructure:"tier" yaml:"tier" toml:"tier"`
	BaseVersion  string   `mapstructure:"base_version" yaml:"base_version" toml:"base_version"`
	SupportUntil string   `mapstructure:"support_until" yaml:"support_until,omitempty" toml:"support_until,omitempty"`
	Service      string   `mapstructure:"service" yaml:"service,omitempty" toml:"service,omitempty"`
	Admit        []string `mapstructure:"admit" yaml:"admit" toml:"admit"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Repository: RepositoryConfig{
			Path:           ".",
			CommitterName:  "branchflow",
			CommitterEmail: "branchflow@localhost",
			Remote:         "origin",
		},
		Branches: BranchesConfig{
			Main:          "main",
			Develop:       "develop",
			ReleasePrefix: "release/",
			HotfixPrefix:  "hotfix/",
			SupportPrefix: "support/",
		},
		Tagging: TaggingConfig{
			Prefix: "v",
		},
		Changelog: ChangelogConfig{
			File: "CHANGELOG.md",
		},
		Lock: LockConfig{
			Dir:        ".branchflow/locks",
			StaleAfter: 10 * time.Minute,
		},
		Resilience: ResilienceConfig{
			RetryAttempts:           3,
			RetryInitialWait:        500 * time.Millisecond,
			RetryMaxWait:            10 * time.Second,
			CircuitBreakerEnabled:   true,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   30 * time.Second,
		},
		Gate: GateConfig{
			Timeout: 5 * time.Minute,
		},
		Output: OutputConfig{
			Format:   "text",
			Color:    true,
			LogLevel: "info",
		},
		Environments: []string{"staging", "production"},
	}
}
