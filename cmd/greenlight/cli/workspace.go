// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/greenlight-ci/greenlight/lib/config"
	"github.com/greenlight-ci/greenlight/lib/git"
	"github.com/greenlight-ci/greenlight/lib/workflowdef"
)

// Workspace is the resolved project context every command operates in:
// the workspace root and its configuration.
type Workspace struct {
	// Root is the absolute workspace root: the nearest ancestor of
	// the working directory containing a .greenlight directory, or
	// the working directory itself when none exists yet.
	Root string

	// Config is the loaded configuration (workspace config file
	// merged over defaults).
	Config *config.Config

	// Initialized reports whether Root actually contains a
	// .greenlight directory.
	Initialized bool
}

// FindWorkspace locates the workspace enclosing the current working
// directory and loads its configuration. The search walks upward
// looking for a .greenlight directory, the same way git finds .git;
// when no ancestor has one the working directory itself becomes the
// root, uninitialized.
func FindWorkspace() (*Workspace, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return FindWorkspaceFrom(wd)
}

// FindWorkspaceFrom is FindWorkspace starting from an explicit
// directory. Tests use this; production code starts from the working
// directory.
func FindWorkspaceFrom(dir string) (*Workspace, error) {
	start, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	root := start
	initialized := false
	for current := start; ; {
		info, err := os.Stat(filepath.Join(current, config.DefaultDir))
		if err == nil && info.IsDir() {
			root = current
			initialized = true
			break
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Workspace{Root: root, Config: cfg, Initialized: initialized}, nil
}

// Workflows discovers the workspace's workflow definitions, name to
// path. A missing workflows directory reads as empty, so the error
// points at 'greenlight init' either way.
func (w *Workspace) Workflows() (map[string]string, error) {
	dir := w.Config.WorkflowsDir(w.Root)
	workflows, err := workflowdef.Discover(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if len(workflows) == 0 {
		return nil, fmt.Errorf("no workflows in %s (run 'greenlight init' to create one)", dir)
	}
	return workflows, nil
}

// GitBranch returns the branch checked out in the workspace, or ""
// when the workspace is not a git repository, git is not installed, or
// HEAD is detached. Commands use this as the --branch default so that
// trigger evaluation sees the branch the user is actually on.
func (w *Workspace) GitBranch(ctx context.Context, logger *slog.Logger) string {
	branch, err := git.NewRepository(w.Root).CurrentBranch(ctx)
	if err != nil {
		logger.Debug("git branch detection skipped", "error", err)
		return ""
	}
	return branch
}

// ResolveWorkflow maps a possibly partial workflow name to a
// discovered definition. An empty query is accepted when exactly one
// workflow exists. Returns the resolved name and its file path.
func (w *Workspace) ResolveWorkflow(query string) (string, string, error) {
	workflows, err := w.Workflows()
	if err != nil {
		return "", "", err
	}

	names := workflowdef.Names(workflows)
	name, err := ResolveName(names, query)
	if err != nil {
		return "", "", err
	}
	return name, workflows[name], nil
}
