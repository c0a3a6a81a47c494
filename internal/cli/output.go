package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/branchflow/branchflow/internal/engine"
)

// emitJSON writes one indented JSON object to stdout.
func emitJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// printReport renders a trigger report as text.
func printReport(report *engine.Report) {
	dec := report.Decision

	if dec.VersionString != "" {
		printInfo(fmt.Sprintf("Version: %s", dec.VersionString))
	}
	if dec.TagName != "" {
		printInfo(fmt.Sprintf("Tag:     %s", dec.TagName))
	}

	if len(dec.Actions) > 0 {
		fmt.Println()
		if report.DryRun {
			printTitle("Planned Actions")
		} else {
			printTitle("Executed Actions")
		}
		for i, action := range dec.Actions {
			fmt.Printf("  %d. %s\n", i+1, action.String())
		}
	}

	if report.Tag != nil {
		fmt.Println()
		printSuccess(fmt.Sprintf("Minted tag %s at %s", report.Tag.Name(), report.Tag.CreatedFromSHA()))
	}
	if report.PullRequestURL != "" {
		printInfo(fmt.Sprintf("Pull request: %s", report.PullRequestURL))
	}
}

// finishReport emits the report in the requested format.
func finishReport(report *engine.Report) error {
	if outputJSON {
		return emitJSON(report)
	}
	printReport(report)
	return nil
}
