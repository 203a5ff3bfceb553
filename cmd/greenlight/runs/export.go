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
	"github.com/greenlight-ci/greenlight/lib/artifactstore"
)

// exportParams holds the parameters for the runs export command.
type exportParams struct {
	Output string `flag:"output,o" desc:"bundle file to write (default <run-id>.tar.lz4)"`
}

// exportCommand returns the "runs export" command.
func exportCommand() *cli.Command {
	var params exportParams

	return &cli.Command{
		Name:    "export",
		Summary: "Export a run as a portable bundle",
		Description: `Bundle a run directory and every artifact blob it references into a
single lz4-compressed tar file. The bundle carries the run record,
step logs, the artifact index, and the referenced blobs, so the run
can be archived or inspected on another machine.

Blobs are copied as stored: an export from an encrypted artifact
store stays encrypted.`,
		Usage: "greenlight runs export <run-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Export to the default file name",
				Command:     "greenlight runs export 1a2b3c",
			},
			{
				Description: "Export to a specific file",
				Command:     "greenlight runs export 1a2b3c -o nightly-failure.tar.lz4",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("runs export", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("runs export takes exactly one run ID (got %d)", len(args))
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
			if _, err := os.Stat(runDir); err != nil {
				return fmt.Errorf("run directory for %s is gone; nothing to export", runID)
			}

			artifacts, err := artifactstore.Open(artifactstore.Config{
				Dir:     workspace.Config.ArtifactsDir(workspace.Root),
				KeyFile: workspace.Config.ArtifactKeyPath(workspace.Root),
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			defer artifacts.Close()

			output := params.Output
			if output == "" {
				output = runID + ".tar.lz4"
			}
			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating bundle file: %w", err)
			}

			if err := artifactstore.ExportRun(runDir, artifacts, file); err != nil {
				file.Close()
				os.Remove(output)
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("closing bundle file: %w", err)
			}

			info, err := os.Stat(output)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s (%s)\n", output, formatSize(info.Size()))
			return nil
		},
	}
}
