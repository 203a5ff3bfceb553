// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/config"
	"github.com/greenlight-ci/greenlight/lib/content"
)

// InitCommand returns the "init" command.
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:    "init",
		Summary: "Initialize greenlight in the current directory",
		Description: `Create the .greenlight directory layout and write the starter
workflow. Running init in an already-initialized workspace is safe:
an unmodified starter workflow is left alone, and a locally edited
one is never overwritten.`,
		Usage: "greenlight init",
		Examples: []cli.Example{
			{
				Description: "Set up a new project",
				Command:     "greenlight init",
			},
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("init takes no arguments (got %d)", len(args))
			}

			// Init always targets the current directory, never an
			// enclosing workspace found by walking up.
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			if err := cfg.EnsurePaths(root); err != nil {
				return err
			}

			starter, err := content.Starter()
			if err != nil {
				return err
			}
			target := filepath.Join(cfg.WorkflowsDir(root), starter.Name+".yml")

			existing, err := os.ReadFile(target)
			switch {
			case err == nil:
				hash := blake3.Sum256(existing)
				if hex.EncodeToString(hash[:]) == starter.SourceHash {
					fmt.Printf("%s already initialized\n", config.DefaultDir)
				} else {
					fmt.Printf("%s exists with local changes, leaving it alone\n", target)
				}
				return nil
			case os.IsNotExist(err):
				// First init: write the starter below.
			default:
				return fmt.Errorf("reading %s: %w", target, err)
			}

			if err := os.WriteFile(target, starter.Source, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", target, err)
			}
			logger.Debug("workspace initialized", "root", root, "starter", target)

			fmt.Printf("initialized %s\n", config.DefaultDir)
			fmt.Printf("wrote starter workflow %s\n", target)
			fmt.Printf("\nnext steps:\n")
			fmt.Printf("  greenlight list           # see the starter workflow\n")
			fmt.Printf("  greenlight run %s   # run it\n", starter.Name)
			return nil
		},
	}
}
