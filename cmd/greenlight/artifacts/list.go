// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/artifactstore"
)

// listParams holds the parameters for the artifacts list command.
type listParams struct {
	cli.JSONOutput
}

// listCommand returns the "artifacts list" command.
func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List the artifacts one run captured",
		Description: `List a run's artifact index: each captured file with the job that
captured it, its short reference, its size, and how the blob sits on
disk. Matrix jobs capturing the same path produce one entry per
combination.`,
		Usage: "greenlight artifacts list <run-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Artifacts of a run, by ID prefix",
				Command:     "greenlight artifacts list 1a2b3c",
			},
			{
				Description: "Machine-readable index",
				Command:     "greenlight artifacts list 1a2b3c --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("artifacts list", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("artifacts list takes exactly one run ID (got %d)", len(args))
			}

			workspace, err := cli.FindWorkspace()
			if err != nil {
				return err
			}
			runID, runDir, err := resolveRun(ctx, workspace, args[0], logger)
			if err != nil {
				return err
			}
			index, err := readRunIndex(runID, runDir)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(index.Entries); done {
				return err
			}

			if len(index.Entries) == 0 {
				fmt.Printf("run %s captured no artifacts\n", runID)
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(writer, "NAME\tJOB\tREF\tSIZE\tSTORAGE\n")
			for _, entry := range index.Entries {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
					entry.Name, entry.Job, entry.Ref, formatSize(entry.Size), storageDisplay(entry))
			}
			return writer.Flush()
		},
	}
}

// storageDisplay summarizes how a blob sits on disk.
func storageDisplay(entry artifactstore.IndexEntry) string {
	display := entry.Compression
	if entry.Encrypted {
		display += ", encrypted"
	}
	return display
}
