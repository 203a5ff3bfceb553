// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete greenlight CLI command tree.
// Keeping the tree in one place gives tests a single root to walk and
// keeps main.go down to signal wiring and exit-code handling.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	artifactscmd "github.com/greenlight-ci/greenlight/cmd/greenlight/artifacts"
	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	runcmd "github.com/greenlight-ci/greenlight/cmd/greenlight/run"
	runscmd "github.com/greenlight-ci/greenlight/cmd/greenlight/runs"
	secretscmd "github.com/greenlight-ci/greenlight/cmd/greenlight/secrets"
	workflowcmd "github.com/greenlight-ci/greenlight/cmd/greenlight/workflow"
	"github.com/greenlight-ci/greenlight/lib/version"
)

// Root builds and returns the complete greenlight CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "greenlight",
		Description: `greenlight: a local-first CI workflow runner.

Run GitHub-Actions-style workflows on your own machine: trigger
matching, matrix expansion, job dependencies, artifact capture, and
run history, without a forge round trip.`,
		Subcommands: []*cli.Command{
			workflowcmd.ValidateCommand(),
			workflowcmd.ListCommand(),
			workflowcmd.ShowCommand(),
			workflowcmd.GraphCommand(),
			runcmd.RunCommand(),
			runcmd.WatchCommand(),
			runscmd.Command(),
			artifactscmd.Command(),
			secretscmd.Command(),
			workflowcmd.InitCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("greenlight %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Scaffold .greenlight/ with the starter workflow",
				Command:     "greenlight init",
			},
			{
				Description: "Check every workflow definition",
				Command:     "greenlight validate",
			},
			{
				Description: "Run the comprehensive workflow as a pull request against main",
				Command:     "greenlight run comprehensive --event pull_request --branch main",
			},
			{
				Description: "Rerun on every file change",
				Command:     "greenlight watch comprehensive",
			},
			{
				Description: "Inspect recent runs",
				Command:     "greenlight runs list",
			},
			{
				Description: "Render a markdown report for a failed run",
				Command:     "greenlight runs report run-3f9 -o report.md",
			},
		},
	}
}
