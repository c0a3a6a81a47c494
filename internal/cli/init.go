package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/branchflow/branchflow/internal/config"
)

var (
	initForce  bool
	initFormat string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter branchflow configuration",
	Long: `Write a starter configuration file in the current directory.

The generated file carries the default GitFlow branch naming, tag
prefix and environment list, ready to be adjusted for the repository.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")
	initCmd.Flags().StringVar(&initFormat, "format", "yaml", "config file format (yaml, toml)")
}

func runInit(cmd *cobra.Command, args []string) error {
	var path string
	switch initFormat {
	case "yaml", "yml":
		path = ".branchflow.yaml"
	case "toml":
		path = ".branchflow.toml"
	default:
		return fmt.Errorf("unsupported format %q (expected yaml or toml)", initFormat)
	}

	if initForce {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	if err := config.Write(config.DefaultConfig(), path); err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	if outputJSON {
		return emitJSON(map[string]any{"config_file": abs})
	}

	printSuccess(fmt.Sprintf("Wrote %s", path))
	printInfo("Adjust branch names, environments and release lines, then run 'branchflow version next'")
	return nil
}
