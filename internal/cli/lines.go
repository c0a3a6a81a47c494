package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/branchflow/branchflow/internal/config"
)

var linesCmd = &cobra.Command{
	Use:   "lines",
	Short: "List the registered release lines",
	RunE:  runLines,
}

func runLines(cmd *cobra.Command, args []string) error {
	registry, err := config.BuildRegistry(cfg)
	if err != nil {
		return err
	}

	lines := registry.All()

	if outputJSON {
		type lineOut struct {
			ID           string   `json:"id"`
			Tier         string   `json:"tier"`
			BaseVersion  string   `json:"base_version"`
			SupportUntil string   `json:"support_until,omitempty"`
			Service      string   `json:"service,omitempty"`
			Admits       []string `json:"admits"`
			Retired      bool     `json:"retired"`
		}
		out := make([]lineOut, 0, len(lines))
		for _, line := range lines {
			admits := make([]string, 0, len(line.AdmissibleClasses()))
			for _, class := range line.AdmissibleClasses() {
				admits = append(admits, class.String())
			}
			entry := lineOut{
				ID:          line.ID(),
				Tier:        line.Tier().String(),
				BaseVersion: line.BaseVersion().String(),
				Service:     line.Service(),
				Admits:      admits,
				Retired:     line.Retired(),
			}
			if !line.SupportUntil().IsZero() {
				entry.SupportUntil = line.SupportUntil().Format("2006-01-02")
			}
			out = append(out, entry)
		}
		return emitJSON(map[string]any{"lines": out})
	}

	printTitle("Release Lines")
	fmt.Println()

	if len(lines) == 0 {
		printInfo("No release lines configured")
		return nil
	}

	for _, line := range lines {
		status := styles.Success.Render("active")
		if line.Retired() {
			status = styles.Subtle.Render("retired")
		}
		fmt.Printf("  %s %s\n", styles.Bold.Render(line.ID()), status)
		fmt.Printf("    tier: %s  base: %s\n", line.Tier(), line.BaseVersion())
		if !line.SupportUntil().IsZero() {
			fmt.Printf("    supported until: %s\n", line.SupportUntil().Format("2006-01-02"))
		}
		admits := make([]string, 0, len(line.AdmissibleClasses()))
		for _, class := range line.AdmissibleClasses() {
			admits = append(admits, class.String())
		}
		fmt.Printf("    admits: %s\n", strings.Join(admits, ", "))
		fmt.Println()
	}

	return nil
}
