// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/greenlight-ci/greenlight/lib/config"
	"github.com/greenlight-ci/greenlight/lib/runner"
	"github.com/greenlight-ci/greenlight/lib/workflowdef"
)

// testLogger returns a logger that discards all output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const dispatchWorkflowYAML = `name: demo
on:
  workflow_dispatch: {}
jobs:
  build:
    runs-on: [linux]
    steps:
      - name: ok
        run: "true"
`

const failingWorkflowYAML = `name: failing
on:
  workflow_dispatch: {}
jobs:
  build:
    runs-on: [linux]
    steps:
      - name: boom
        run: "exit 7"
`

const branchFilteredWorkflowYAML = `name: pushy
on:
  push:
    branches: [feature/*]
jobs:
  build:
    runs-on: [linux]
    steps:
      - name: ok
        run: "true"
`

// initWorkspace creates a temp workspace with a workflows directory
// and chdirs into it for the duration of the test.
func initWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	workflowsDir := filepath.Join(root, config.DefaultDir, "workflows")
	if err := os.MkdirAll(workflowsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(root)
	return root
}

func writeWorkflow(t *testing.T, root, name, body string) string {
	t.Helper()
	path := filepath.Join(root, config.DefaultDir, "workflows", name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// requireGit skips the test when git is not installed.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("git not available: %v", err)
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	command := exec.Command("git", append([]string{"-C", dir}, args...)...)
	if output, err := command.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, output)
	}
}

// planFixture parses a workflow source and plans it for a manual
// dispatch.
func planFixture(t *testing.T, source string) *runner.RunPlan {
	t.Helper()
	wf, err := workflowdef.Parse([]byte(source), workflowdef.FormatYAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	plan, err := runner.Plan(wf, runner.PlanOptions{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return plan
}
