// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/artifactstore"
)

// getParams holds the parameters for the artifacts get command.
type getParams struct {
	Output string `flag:"output,o" desc:"output path (default: the artifact's base name; \"-\" for stdout)"`
	Job    string `flag:"job,j" desc:"capturing job key, to pick one matrix combination"`
}

// getCommand returns the "artifacts get" command.
func getCommand() *cli.Command {
	var params getParams

	return &cli.Command{
		Name:    "get",
		Summary: "Retrieve one artifact from the blob store",
		Description: `Retrieve a captured artifact by its name (the path the capturing glob
matched, as shown by artifacts list). The content is written to the
artifact's base name in the current directory unless -o names a path,
or to stdout with -o -.

When several matrix combinations captured the same path, --job picks
the combination by its job key, for example --job "test (go: 1.25)".`,
		Usage: "greenlight artifacts get <run-id> <name> [flags]",
		Examples: []cli.Example{
			{
				Description: "Fetch a build output into the current directory",
				Command:     "greenlight artifacts get 1a2b3c dist/app.tar.gz",
			},
			{
				Description: "Pipe coverage output into a tool",
				Command:     "greenlight artifacts get 1a2b3c coverage.out -o - | go tool cover -func=/dev/stdin",
			},
			{
				Description: "One matrix combination's copy",
				Command:     `greenlight artifacts get 1a2b3c coverage.out --job "test (go: 1.25)"`,
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("artifacts get", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 2 {
				return fmt.Errorf("artifacts get takes a run ID and an artifact name (got %d arguments)", len(args))
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
			if len(index.Entries) == 0 {
				return fmt.Errorf("run %s captured no artifacts", runID)
			}

			name := args[1]
			entry, err := pickEntry(index, name, params.Job)
			if err != nil {
				return err
			}
			hash, err := artifactstore.ParseHash(entry.Hash)
			if err != nil {
				return fmt.Errorf("index entry for %q is corrupt: %w", name, err)
			}

			store, err := openStore(workspace, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if params.Output == "-" {
				_, err := store.WriteTo(hash, os.Stdout)
				return err
			}

			output := params.Output
			if output == "" {
				output = filepath.Base(entry.Name)
			}
			file, err := os.Create(output)
			if err != nil {
				return err
			}
			written, err := store.WriteTo(hash, file)
			if err != nil {
				file.Close()
				os.Remove(output)
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%s)\n", output, formatSize(written))
			return nil
		},
	}
}

// pickEntry selects the index entry to retrieve. An ambiguous name
// (several matrix combinations captured the same path) requires the
// job filter to single one out.
func pickEntry(index *artifactstore.Index, name, job string) (artifactstore.IndexEntry, error) {
	matches := index.Find(name)
	if len(matches) == 0 {
		return artifactstore.IndexEntry{}, fmt.Errorf("no artifact %q in run %s (captured: %s)",
			name, index.RunID, strings.Join(artifactNames(index), ", "))
	}

	if job != "" {
		capturing := capturingJobs(matches)
		var kept []artifactstore.IndexEntry
		for _, entry := range matches {
			if entry.Job == job {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			return artifactstore.IndexEntry{}, fmt.Errorf("no job %q captured %q (capturing jobs: %s)",
				job, name, strings.Join(capturing, ", "))
		}
		matches = kept
	}

	if len(matches) > 1 {
		return artifactstore.IndexEntry{}, fmt.Errorf("%q was captured by %d jobs (%s); pick one with --job",
			name, len(matches), strings.Join(capturingJobs(matches), ", "))
	}
	return matches[0], nil
}

// artifactNames returns the unique captured names, sorted. Long lists
// are clipped: the error message naming them stays one line.
func artifactNames(index *artifactstore.Index) []string {
	seen := make(map[string]bool, len(index.Entries))
	var names []string
	for _, entry := range index.Entries {
		if seen[entry.Name] {
			continue
		}
		seen[entry.Name] = true
		names = append(names, entry.Name)
	}
	sort.Strings(names)
	if len(names) > 8 {
		names = append(names[:8], "...")
	}
	return names
}

// capturingJobs returns the job keys of the given entries.
func capturingJobs(entries []artifactstore.IndexEntry) []string {
	jobs := make([]string, len(entries))
	for i, entry := range entries {
		jobs[i] = entry.Job
	}
	return jobs
}
