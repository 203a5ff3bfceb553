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
	"github.com/greenlight-ci/greenlight/lib/history"
	"github.com/greenlight-ci/greenlight/lib/runid"
	"github.com/greenlight-ci/greenlight/lib/runstate"
)

// pruneParams holds the parameters for the runs prune command.
type pruneParams struct {
	Keep int `flag:"keep,k" desc:"newest runs to keep" default:"50"`
}

// pruneCommand returns the "runs prune" command.
func pruneCommand() *cli.Command {
	var params pruneParams

	return &cli.Command{
		Name:    "prune",
		Summary: "Delete old runs",
		Description: `Delete history rows and run directories for everything older than
the newest --keep runs. Run directories hold the step logs, so this
is where the disk space goes.

Directories with a live state file (a run still executing, or one
whose runner crashed) are never removed.`,
		Usage: "greenlight runs prune [flags]",
		Examples: []cli.Example{
			{
				Description: "Keep the 50 newest runs",
				Command:     "greenlight runs prune",
			},
			{
				Description: "Keep only the last 10",
				Command:     "greenlight runs prune --keep 10",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("runs prune", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("runs prune takes no arguments (got %d)", len(args))
			}
			if params.Keep < 0 {
				return fmt.Errorf("--keep must not be negative (got %d)", params.Keep)
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

			pruned, err := store.Prune(ctx, params.Keep)
			if err != nil {
				return err
			}

			removed, err := sweepRunDirs(ctx, store, workspace.Config.RunsDir(workspace.Root), params.Keep, logger)
			if err != nil {
				return err
			}

			fmt.Printf("pruned %d run(s) from history\n", pruned)
			if removed > 0 {
				fmt.Printf("removed %d run dir(s)\n", removed)
			}
			return nil
		},
	}
}

// sweepRunDirs removes run directories that no longer have a history
// row. Directories with a state file are active or crashed runs and
// are kept; so is anything that does not look like a run directory.
func sweepRunDirs(ctx context.Context, store *history.Store, runsDir string, keep int, logger *slog.Logger) (int, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading runs directory: %w", err)
	}

	// After Prune at most keep rows remain, so one List covers every
	// surviving run ID.
	limit := keep
	if limit == 0 {
		limit = 1
	}
	remaining, err := store.List(ctx, history.Filter{Limit: limit})
	if err != nil {
		return 0, err
	}
	recorded := make(map[string]bool, len(remaining))
	for _, run := range remaining {
		recorded[run.ID] = true
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !runid.Valid(entry.Name()) || recorded[entry.Name()] {
			continue
		}
		dir := filepath.Join(runsDir, entry.Name())
		if _, err := runstate.Read(dir); err == nil {
			// Live or crashed run; keep the evidence.
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("removing run directory %s: %w", dir, err)
		}
		logger.Debug("removed run directory", "dir", dir)
		removed++
	}
	return removed, nil
}
