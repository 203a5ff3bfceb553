// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runs

import (
	"errors"
	"log/slog"
	"os"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/history"
)

// Command returns the "runs" subcommand group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "runs",
		Summary: "Inspect recorded workflow runs",
		Description: `Work with the run history: every completed run is recorded in the
workspace history database and keeps its run directory (logs, run
record, artifact index) under .greenlight/runs.

Run IDs may be abbreviated to any unique prefix, with or without
the "run-" part.`,
		Subcommands: []*cli.Command{
			listCommand(),
			showCommand(),
			reportCommand(),
			exportCommand(),
			pruneCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Recent runs",
				Command:     "greenlight runs list",
			},
			{
				Description: "Failures of one workflow",
				Command:     "greenlight runs list --workflow build --conclusion failure",
			},
			{
				Description: "Job and step detail for a run",
				Command:     "greenlight runs show run-1a2b3c",
			},
			{
				Description: "HTML report for sharing",
				Command:     "greenlight runs report 1a2b3c --format html -o report.html",
			},
		},
	}
}

// errNoHistory is returned when the workspace has never recorded a run.
// The list command turns it into friendly output; everything else reports it.
var errNoHistory = errors.New("no runs recorded yet")

// openHistory opens the workspace history database. Opening would create an
// empty database, so a missing file is detected first and reported instead.
func openHistory(workspace *cli.Workspace, logger *slog.Logger) (*history.Store, error) {
	path := workspace.Config.HistoryPath(workspace.Root)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errNoHistory
	}
	return history.Open(history.Config{
		Path:   path,
		Logger: logger,
	})
}
