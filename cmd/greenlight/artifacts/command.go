// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/artifactstore"
	"github.com/greenlight-ci/greenlight/lib/history"
)

// Command returns the "artifacts" subcommand group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "artifacts",
		Summary: "List and retrieve captured run artifacts",
		Description: `Work with the artifacts a run captured: every file matched by a job's
artifacts: globs is stored content-addressed under .greenlight/artifacts
and indexed per run.

Run IDs may be abbreviated to any unique prefix, with or without
the "run-" part.`,
		Subcommands: []*cli.Command{
			listCommand(),
			getCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "What the release run captured",
				Command:     "greenlight artifacts list run-1a2b3c",
			},
			{
				Description: "Retrieve a build output",
				Command:     "greenlight artifacts get 1a2b3c dist/app.tar.gz",
			},
		},
	}
}

// resolveRun resolves a run ID or unique prefix through the history
// database and returns the full ID plus the run's directory.
func resolveRun(ctx context.Context, workspace *cli.Workspace, arg string, logger *slog.Logger) (runID, runDir string, err error) {
	historyPath := workspace.Config.HistoryPath(workspace.Root)
	if _, err := os.Stat(historyPath); os.IsNotExist(err) {
		return "", "", errors.New("no runs recorded yet")
	}
	store, err := history.Open(history.Config{
		Path:   historyPath,
		Logger: logger,
	})
	if err != nil {
		return "", "", err
	}
	defer store.Close()

	runID, err = store.ResolveID(ctx, arg)
	if err != nil {
		return "", "", err
	}
	return runID, filepath.Join(workspace.Config.RunsDir(workspace.Root), runID), nil
}

// readRunIndex loads a run's artifact index. A run directory that was
// pruned away is an error; a run that simply captured nothing yields
// an empty index.
func readRunIndex(runID, runDir string) (*artifactstore.Index, error) {
	if _, err := os.Stat(runDir); err != nil {
		return nil, fmt.Errorf("run directory for %s is gone; its artifact index went with it", runID)
	}
	index, err := artifactstore.ReadIndex(runDir)
	if errors.Is(err, os.ErrNotExist) {
		return &artifactstore.Index{Version: artifactstore.IndexVersion, RunID: runID}, nil
	}
	return index, err
}

// openStore opens the workspace's artifact blob store.
func openStore(workspace *cli.Workspace, logger *slog.Logger) (*artifactstore.Store, error) {
	return artifactstore.Open(artifactstore.Config{
		Dir:     workspace.Config.ArtifactsDir(workspace.Root),
		KeyFile: workspace.Config.ArtifactKeyPath(workspace.Root),
		Logger:  logger,
	})
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
