package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/uiprobe/internal/locator"
	"github.com/xkilldash9x/uiprobe/internal/scenario"
)

func newValidateCmd() *cobra.Command {
	var snapshotPath string

	validateCmd := &cobra.Command{
		Use:   "validate <scenario-file|builtin:name>",
		Short: "Parse a scenario and print its step plan without launching a browser",
		Long: `Validate decodes the scenario and prints every step.

With --snapshot, CSS and text locators are resolved against a saved HTML
document and their match counts are printed. XPath locators are not checked.
A locator that matches nothing fails the command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			var snap *locator.Snapshot
			if snapshotPath != "" {
				if snap, err = loadSnapshot(snapshotPath); err != nil {
					return err
				}
			}
			return printPlan(cmd.OutOrStdout(), sc, snap)
		},
	}
	validateCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "HTML file to resolve CSS and text locators against")
	return validateCmd
}

func loadSnapshot(path string) (*locator.Snapshot, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return locator.LoadSnapshot(f)
}

// printPlan lists the steps of sc. When snap is set each element locator is
// resolved against it; unresolved locators make the result an error.
func printPlan(w io.Writer, sc *scenario.Scenario, snap *locator.Snapshot) error {
	fmt.Fprintf(w, "Scenario: %s\n", sc.Name)
	if sc.Description != "" {
		fmt.Fprintf(w, "  %s\n", sc.Description)
	}
	if sc.Target != "" {
		fmt.Fprintf(w, "Target:   %s\n", sc.Target)
	}
	fmt.Fprintf(w, "Steps:    %d\n", len(sc.Steps))

	unresolved := 0
	for i, step := range sc.Steps {
		line := fmt.Sprintf("  %02d %-14s %s", i+1, step.Action(), step.Describe())
		if step.Timeout > 0 {
			line += fmt.Sprintf(" (timeout %s)", step.Timeout)
		}

		loc := step.Locator()
		if snap != nil && !loc.IsZero() {
			ok, count, err := snap.Resolves(loc)
			switch {
			case errors.Is(err, locator.ErrNotCheckable):
				line += "  [not checked]"
			case err != nil:
				line += fmt.Sprintf("  [error: %v]", err)
				unresolved++
			case ok:
				line += fmt.Sprintf("  [matches %d]", count)
			default:
				line += fmt.Sprintf("  [UNRESOLVED: %d matches]", count)
				unresolved++
			}
		}
		fmt.Fprintln(w, line)
	}

	if unresolved > 0 {
		return fmt.Errorf("%d locator(s) did not resolve against the snapshot", unresolved)
	}
	return nil
}
