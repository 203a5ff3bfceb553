// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// runGit executes a raw git command for test setup, with an identity
// configured so commits work on machines without a global gitconfig.
func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	command := exec.Command("git", append([]string{"-C", dir}, args...)...)
	command.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.local",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.local",
	)
	if output, err := command.CombinedOutput(); err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, output)
	}
}

// initRepo creates a working-tree repository with one commit on a
// branch named main and returns its path.
func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("git not available: %v", err)
	}

	dir := t.TempDir()
	runGit(t, dir, "init", "--quiet")
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "README")
	runGit(t, dir, "commit", "--quiet", "-m", "initial")
	runGit(t, dir, "branch", "-M", "main")
	return dir
}

func TestCurrentBranch(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	repo := NewRepository(dir)

	branch, err := repo.CurrentBranch(context.Background())
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("CurrentBranch = %q, want %q", branch, "main")
	}

	runGit(t, dir, "checkout", "--quiet", "-b", "feature/detect")
	branch, err = repo.CurrentBranch(context.Background())
	if err != nil {
		t.Fatalf("CurrentBranch after checkout: %v", err)
	}
	if branch != "feature/detect" {
		t.Errorf("CurrentBranch = %q, want %q", branch, "feature/detect")
	}
}

func TestCurrentBranchDetachedHead(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	runGit(t, dir, "checkout", "--quiet", "--detach")

	branch, err := NewRepository(dir).CurrentBranch(context.Background())
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "" {
		t.Errorf("CurrentBranch = %q on a detached HEAD, want empty", branch)
	}
}

func TestCurrentBranchOutsideRepository(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("git not available: %v", err)
	}

	_, err := NewRepository(filepath.Join(t.TempDir(), "missing")).CurrentBranch(context.Background())
	if err == nil {
		t.Fatal("expected error outside a repository")
	}
}

func TestRunErrorIncludesDirectoryAndStderr(t *testing.T) {
	t.Parallel()

	dir := initRepo(t)
	repo := NewRepository(dir)

	_, err := repo.Run(context.Background(), "not-a-real-command")
	if err == nil {
		t.Fatal("expected error for invalid git subcommand")
	}
	if !strings.Contains(err.Error(), dir) {
		t.Errorf("error = %v, want to contain repository dir %q", err, dir)
	}
}

func TestDir(t *testing.T) {
	t.Parallel()

	if got := NewRepository("/path/to/repo").Dir(); got != "/path/to/repo" {
		t.Errorf("Dir() = %q, want %q", got, "/path/to/repo")
	}
}
