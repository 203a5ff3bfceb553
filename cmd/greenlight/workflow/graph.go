// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/workflowdef"
)

// graphParams holds the parameters for the graph command.
type graphParams struct {
	Output string `flag:"output,o" desc:"write DOT to this file instead of stdout"`
}

// GraphCommand returns the "graph" command.
func GraphCommand() *cli.Command {
	var params graphParams

	return &cli.Command{
		Name:    "graph",
		Summary: "Render a workflow's job dependency graph as DOT",
		Description: `Render the job dependency graph of a workflow in Graphviz DOT
format. Edges point from a job to the jobs that need it, so the
graph reads in execution order.

Pipe the output to dot for an image:

  greenlight graph deploy | dot -Tsvg -o deploy.svg`,
		Usage: "greenlight graph [workflow] [flags]",
		Examples: []cli.Example{
			{
				Description: "Print the DOT graph for a workflow",
				Command:     "greenlight graph comprehensive",
			},
			{
				Description: "Write the graph to a file",
				Command:     "greenlight graph deploy -o deploy.dot",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("graph", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 1 {
				return fmt.Errorf("graph takes at most one workflow name (got %d arguments)", len(args))
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			workspace, err := cli.FindWorkspace()
			if err != nil {
				return err
			}
			_, path, err := workspace.ResolveWorkflow(query)
			if err != nil {
				return err
			}
			wf, err := workflowdef.ReadFile(path)
			if err != nil {
				return err
			}

			if params.Output == "" {
				return workflowdef.WriteDOT(os.Stdout, wf)
			}

			file, err := os.Create(params.Output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", params.Output, err)
			}
			if err := workflowdef.WriteDOT(file, wf); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("writing %s: %w", params.Output, err)
			}
			fmt.Printf("wrote %s\n", params.Output)
			return nil
		},
	}
}
