// Package cli provides the command-line interface for branchflow.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/branchflow/branchflow/internal/config"
	"github.com/branchflow/branchflow/internal/domain/lifecycle"
	"github.com/branchflow/branchflow/internal/domain/releaseline"
	"github.com/branchflow/branchflow/internal/domain/tagging"
	"github.com/branchflow/branchflow/internal/domain/version"
	flowerrors "github.com/branchflow/branchflow/internal/errors"
)

var (
	// Version information set by main.
	versionInfo struct {
		Version string
		Commit  string
		Date    string
	}

	// Global flags
	cfgFile    string
	repoPath   string
	verbose    bool
	dryRun     bool
	outputJSON bool
	noColor    bool
	logLevel   string
	yesFlag    bool

	// Global config
	cfg *config.Config

	// Logger
	logger *log.Logger

	// logFile holds the log file handle for cleanup
	logFile *os.File

	// Styles
	styles = struct {
		Title   lipgloss.Style
		Success lipgloss.Style
		Error   lipgloss.Style
		Warning lipgloss.Style
		Info    lipgloss.Style
		Subtle  lipgloss.Style
		Bold    lipgloss.Style
	}{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		Subtle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Bold:    lipgloss.NewStyle().Bold(true),
	}
)

// SetVersionInfo sets the version information from main.
func SetVersionInfo(ver, commit, date string) {
	versionInfo.Version = ver
	versionInfo.Commit = commit
	versionInfo.Date = date
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "branchflow",
	Short: "Release and branch orchestration for GitFlow repositories",
	Long: `Branchflow orchestrates release branches, hotfixes, version tags,
and changelogs for GitFlow-style repositories.

It reacts to discrete triggers (issue labels, merged pull requests,
manual promotions) by computing an ordered action list: branch
creation, merges, write-once tag minting, changelog updates, and
cherry-picks onto supported release lines.

Key guarantees:
  • Versions only move forward; tags are never overwritten
  • Rejected transitions leave the repository untouched
  • Re-running the same trigger recomputes the same result

Get started with 'branchflow init' to write a starter configuration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a context for graceful shutdown.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Assigned here rather than in the var literal to avoid an
	// initialization cycle (initConfig -> configureLogLevel -> rootCmd).
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version commands
		if cmd.Name() == "init" || cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		return initConfig()
	}

	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
	})

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: .branchflow.yaml)")
	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "r", "", "repository path (default: from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "compute the action list without executing it")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "skip interactive confirmations")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output.log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(changelogCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(hotfixCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(supportCmd)
	rootCmd.AddCommand(linesCmd)
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig() error {
	loader := config.NewLoader()

	if cfgFile != "" {
		loader.WithConfigPath(cfgFile)
	}

	var err error
	cfg, err = loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	return nil
}

// applyGlobalFlags applies global CLI flags to the configuration.
func applyGlobalFlags() {
	if verbose {
		cfg.Output.Verbose = true
	}

	if repoPath != "" {
		cfg.Repository.Path = repoPath
	}

	if noColor {
		cfg.Output.Color = false
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// configureLoggerFormat configures the logger format based on settings.
func configureLoggerFormat() {
	if outputJSON || cfg.Output.Format == "json" {
		logger.SetFormatter(log.JSONFormatter)
		logger.SetReportTimestamp(true)
	} else if !cfg.Output.Color || noColor {
		logger.SetFormatter(log.TextFormatter)
	}
}

// configureLogLevel sets the logger level based on configuration.
func configureLogLevel() {
	level := cfg.Output.LogLevel
	if logLevel != "" && rootCmd.PersistentFlags().Changed("log-level") {
		level = logLevel
	}

	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	if cfg.Output.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
}

// configureLogFile sets up log file output if specified.
func configureLogFile() error {
	if cfg.Output.LogFile == "" {
		return nil
	}

	var err error
	logFile, err = os.OpenFile(cfg.Output.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetOutput(logFile)
	return nil
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if err := loadAndValidateConfig(); err != nil {
		return err
	}

	applyGlobalFlags()
	configureLoggerFormat()
	configureLogLevel()

	if err := configureLogFile(); err != nil {
		return err
	}

	// The application layer logs through slog; route it to the CLI
	// logger so level and format stay consistent.
	slog.SetDefault(slog.New(logger))

	return nil
}

// Cleanup closes any open resources. Should be called before program exit.
func Cleanup() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// ExitCode maps an error to the process exit code. Each taxonomy entry
// gets a distinct code so trigger systems can branch on the outcome
// without parsing output.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case stderrors.Is(err, version.ErrInvalidBranchVersion):
		return 2
	case stderrors.Is(err, version.ErrMissingBaseVersion):
		return 3
	case stderrors.Is(err, lifecycle.ErrIllegalTransition):
		return 4
	case stderrors.Is(err, tagging.ErrTagConflict):
		return 5
	case stderrors.Is(err, releaseline.ErrDuplicateTier):
		return 6
	}
	switch flowerrors.GetKind(err) {
	case flowerrors.KindTimeout:
		return 7
	case flowerrors.KindRejected:
		return 8
	case flowerrors.KindTransition:
		return 4
	case flowerrors.KindConflict:
		return 5
	default:
		return 1
	}
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("branchflow %s\n", versionInfo.Version)
		if verbose {
			fmt.Printf("  commit: %s\n", versionInfo.Commit)
			fmt.Printf("  built:  %s\n", versionInfo.Date)
		}
	},
}

// Helper functions for output

func printSuccess(msg string) {
	fmt.Println(styles.Success.Render("✓ " + msg))
}

func printError(msg string) {
	fmt.Println(styles.Error.Render("✗ " + msg))
}

func printWarning(msg string) {
	fmt.Println(styles.Warning.Render("⚠ " + msg))
}

func printInfo(msg string) {
	fmt.Println(styles.Info.Render("ℹ " + msg))
}

func printTitle(msg string) {
	fmt.Println(styles.Title.Render(msg))
}

func printSubtle(msg string) {
	fmt.Println(styles.Subtle.Render(msg))
}

func printDryRunBanner() {
	printWarning("Dry run: computed actions will not be executed")
	fmt.Println()
}
