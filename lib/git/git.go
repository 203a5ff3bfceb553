// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package git provides typed access to the git CLI for workspace
// context. Greenlight uses git to resolve the branch a run evaluates
// trigger filters against when the user does not pass one explicitly.
// All commands target a specific directory via the -C flag, which is
// injected by every Repository method.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Repository represents a git repository at a specific directory. All
// operations target this directory via "git -C <dir>". There is no
// default directory; callers must always specify which repository they
// mean.
type Repository struct {
	dir string
}

// NewRepository returns a Repository targeting the given directory.
// The directory may be anywhere inside a working tree; git resolves
// the enclosing repository itself.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command targeting this repository and returns
// stdout. Stderr is captured separately and included in error messages
// on failure.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// CurrentBranch returns the branch checked out in this repository. A
// detached HEAD returns "" with no error, matching what git itself
// reports. The directory not being inside a repository (or git being
// absent from PATH) is an error.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	output, err := r.Run(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}
