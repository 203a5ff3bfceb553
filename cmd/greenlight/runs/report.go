// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/report"
	"github.com/greenlight-ci/greenlight/lib/runner"
)

// reportParams holds the parameters for the runs report command.
type reportParams struct {
	Format       string `flag:"format" desc:"report format: markdown or html" default:"markdown"`
	Output       string `flag:"output,o" desc:"write the report to this file instead of stdout"`
	ExcerptLines int    `flag:"excerpt-lines" desc:"trailing log lines per failed step (negative disables excerpts)" default:"20"`
}

// reportCommand returns the "runs report" command.
func reportCommand() *cli.Command {
	var params reportParams

	return &cli.Command{
		Name:    "report",
		Summary: "Render a run report",
		Description: `Render a shareable report for a recorded run: overall outcome, a
per-job table, and the trailing log lines of every failed step.

Markdown goes to stdout by default and pastes cleanly into issues
and pull requests. HTML is a standalone page with highlighted log
excerpts, intended for -o and a browser.`,
		Usage: "greenlight runs report <run-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Markdown report on stdout",
				Command:     "greenlight runs report 1a2b3c",
			},
			{
				Description: "Standalone HTML page",
				Command:     "greenlight runs report 1a2b3c --format html -o report.html",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("runs report", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("runs report takes exactly one run ID (got %d)", len(args))
			}
			if params.Format != "markdown" && params.Format != "html" {
				return fmt.Errorf("unknown report format %q (markdown or html)", params.Format)
			}

			workspace, err := cli.FindWorkspace()
			if err != nil {
				return err
			}
			store, err := openHistory(workspace, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runID, err := store.ResolveID(ctx, args[0])
			if err != nil {
				return err
			}

			runDir := filepath.Join(workspace.Config.RunsDir(workspace.Root), runID)
			record, err := runner.ReadRecord(runDir)
			if err != nil {
				return err
			}

			summary := report.Collect(record, runDir, report.Options{
				ExcerptLines: params.ExcerptLines,
			})

			var rendered string
			if params.Format == "html" {
				rendered, err = summary.HTML()
				if err != nil {
					return err
				}
			} else {
				rendered = summary.Markdown()
			}

			if params.Output == "" {
				fmt.Print(rendered)
				return nil
			}
			if err := os.WriteFile(params.Output, []byte(rendered), 0o644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			fmt.Printf("wrote %s\n", params.Output)
			return nil
		},
	}
}
