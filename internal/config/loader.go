package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/branchflow/branchflow/internal/errors"
)

// Loader handles configuration loading and merging.
type Loader struct {
	v           *viper.Viper
	configPath  string
	searchPaths []string
}

// NewLoader creates a new configuration loader. Environment variables
// prefixed BRANCHFLOW_ override file values.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix("BRANCHFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{
		v:           v,
		searchPaths: []string{"."},
	}
}

// WithConfigPath sets an explicit config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithSearchPaths adds directories to search for config files.
func (l *Loader) WithSearchPaths(paths ...string) *Loader {
	l.searchPaths = append(l.searchPaths, paths...)
	return l
}

// Load loads the configuration: defaults, then file, then environment.
func (l *Loader) Load() (*Config, error) {
	const op = "config.Load"

	l.setDefaults()

	if err := l.loadConfigFile(); err != nil {
		return nil, errors.ConfigWrap(err, op, "failed to load config file")
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, errors.ConfigWrap(err, op, "failed to unmarshal config")
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults sets default values using Viper.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("repository.path", defaults.Repository.Path)
	l.v.SetDefault("repository.committer_name", defaults.Repository.CommitterName)
	l.v.SetDefault("repository.committer_email", defaults.Repository.CommitterEmail)
	l.v.SetDefault("repository.remote", defaults.Repository.Remote)

	l.v.SetDefault("branches.main", defaults.Branches.Main)
	l.v.SetDefault("branches.develop", defaults.Branches.Develop)
	l.v.SetDefault("branches.release_prefix", defaults.Branches.ReleasePrefix)
	l.v.SetDefault("branches.hotfix_prefix", defaults.Branches.HotfixPrefix)
	l.v.SetDefault("branches.support_prefix", defaults.Branches.SupportPrefix)

	l.v.SetDefault("tagging.prefix", defaults.Tagging.Prefix)
	l.v.SetDefault("tagging.service", defaults.Tagging.Service)

	l.v.SetDefault("changelog.file", defaults.Changelog.File)

	l.v.SetDefault("lock.dir", defaults.Lock.Dir)
	l.v.SetDefault("lock.stale_after", defaults.Lock.StaleAfter)

	l.v.SetDefault("resilience.retry_attempts", defaults.Resilience.RetryAttempts)
	l.v.SetDefault("resilience.retry_initial_wait", defaults.Resilience.RetryInitialWait)
	l.v.SetDefault("resilience.retry_max_wait", defaults.Resilience.RetryMaxWait)
	l.v.SetDefault("resilience.circuit_breaker_enabled", defaults.Resilience.CircuitBreakerEnabled)
	l.v.SetDefault("resilience.circuit_breaker_threshold", defaults.Resilience.CircuitBreakerThreshold)
	l.v.SetDefault("resilience.circuit_breaker_timeout", defaults.Resilience.CircuitBreakerTimeout)

	l.v.SetDefault("gate.command", defaults.Gate.Command)
	l.v.SetDefault("gate.timeout", defaults.Gate.Timeout)

	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.color", defaults.Output.Color)
	l.v.SetDefault("output.verbose", defaults.Output.Verbose)
	l.v.SetDefault("output.log_level", defaults.Output.LogLevel)
	l.v.SetDefault("output.log_file", defaults.Output.LogFile)

	l.v.SetDefault("environments", defaults.Environments)
}

// loadConfigFile loads the configuration file. A missing file is not an
// error; the defaults apply.
func (l *Loader) loadConfigFile() error {
	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", l.configPath, err)
		}
		return nil
	}

	for _, searchPath := range l.searchPaths {
		for _, name := range ConfigFileNames {
			for _, ext := range ConfigFileExtensions {
				configFile := filepath.Join(searchPath, name+"."+ext)
				if _, err := os.Stat(configFile); err == nil {
					l.v.SetConfigFile(configFile)
					if err := l.v.ReadInConfig(); err != nil {
						return fmt.Errorf("reading config file %s: %w", configFile, err)
					}
					return nil
				}
			}
		}
	}

	return nil
}
