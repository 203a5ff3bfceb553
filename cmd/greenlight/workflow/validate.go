// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/workflowdef"
)

// ValidateCommand returns the "validate" command.
func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Summary: "Check workflow definitions for structural problems",
		Description: `Validate workflow definition files. Checks that the YAML or JSONC is
well-formed and conforms to the workflow schema: at least one trigger
and one job, valid identifiers, acyclic needs references, mutually
exclusive run/uses steps, parseable cron expressions and glob
filters, and so on.

Without arguments, every workflow discovered in the workspace is
validated. With arguments, only the named files are.`,
		Usage: "greenlight validate [paths...]",
		Examples: []cli.Example{
			{
				Description: "Validate every workflow in the workspace",
				Command:     "greenlight validate",
			},
			{
				Description: "Validate one file before committing it",
				Command:     "greenlight validate .greenlight/workflows/comprehensive.yml",
			},
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			paths := args
			if len(paths) == 0 {
				workspace, err := cli.FindWorkspace()
				if err != nil {
					return err
				}
				workflows, err := workspace.Workflows()
				if err != nil {
					return err
				}
				for _, name := range workflowdef.Names(workflows) {
					paths = append(paths, workflows[name])
				}
			}

			totalIssues := 0
			for _, path := range paths {
				issues := validateFile(path)
				if len(issues) == 0 {
					fmt.Fprintf(os.Stdout, "%s: valid\n", path)
					continue
				}
				totalIssues += len(issues)
				fmt.Fprintf(os.Stderr, "%s:\n", path)
				for _, issue := range issues {
					fmt.Fprintf(os.Stderr, "  - %s\n", issue)
				}
			}

			if totalIssues > 0 {
				if len(paths) == 1 {
					return fmt.Errorf("%s: %d validation issue(s) found", paths[0], totalIssues)
				}
				return fmt.Errorf("%d validation issue(s) found across %d files", totalIssues, len(paths))
			}
			return nil
		},
	}
}

// validateFile parses and validates one workflow file. A parse failure
// is reported as a single issue so one broken file does not stop the
// sweep.
func validateFile(path string) []string {
	wf, err := workflowdef.ReadFile(path)
	if err != nil {
		return []string{err.Error()}
	}
	return workflowdef.Validate(wf)
}
