// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/config"
	"github.com/greenlight-ci/greenlight/lib/runid"
)

func TestRunWorkflowSucceeds(t *testing.T) {
	root := initWorkspace(t)
	writeWorkflow(t, root, "demo.yml", dispatchWorkflowYAML)

	cmd := RunCommand()
	if err := cmd.Run(context.Background(), []string{"demo"}, testLogger()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// The run directory and the history database exist afterwards.
	runsDir := filepath.Join(root, config.DefaultDir, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		t.Fatalf("reading runs dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 run directory, got %d", len(entries))
	}
	if !runid.Valid(entries[0].Name()) {
		t.Errorf("run directory %q is not a valid run ID", entries[0].Name())
	}
	if _, err := os.Stat(filepath.Join(root, config.DefaultDir, "history.db")); err != nil {
		t.Errorf("history database missing: %v", err)
	}
}

func TestRunFailingWorkflowExitsNonZero(t *testing.T) {
	root := initWorkspace(t)
	writeWorkflow(t, root, "failing.yml", failingWorkflowYAML)

	cmd := RunCommand()
	err := cmd.Run(context.Background(), []string{"failing"}, testLogger())
	if err == nil {
		t.Fatal("expected an error for a failing workflow")
	}
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %T: %v", err, err)
	}
	if exitErr.Code != 1 {
		t.Errorf("exit code = %d, want 1", exitErr.Code)
	}
}

func TestRunDryRun(t *testing.T) {
	root := initWorkspace(t)
	writeWorkflow(t, root, "demo.yml", dispatchWorkflowYAML)

	cmd := RunCommand()
	if err := cmd.Flags().Parse([]string{"--dry-run"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), []string{"demo"}, testLogger()); err != nil {
		t.Fatalf("dry run: %v", err)
	}

	// Dry runs must not touch the workspace.
	if _, err := os.Stat(filepath.Join(root, config.DefaultDir, "runs")); !os.IsNotExist(err) {
		t.Error("dry run created the runs directory")
	}
}

func TestRunDetectsGitBranch(t *testing.T) {
	requireGit(t)
	root := initWorkspace(t)
	writeWorkflow(t, root, "pushy.yml", branchFilteredWorkflowYAML)

	// No repository means no branch context, so the branch-filtered
	// push trigger does not match.
	cmd := RunCommand()
	if err := cmd.Flags().Parse([]string{"--event", "push", "--dry-run"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), []string{"pushy"}, testLogger()); err == nil {
		t.Fatal("expected a no-trigger error without branch context")
	}

	// With the workspace checked out on a matching branch, the run
	// picks the branch up without --branch.
	runGit(t, root, "init", "--quiet")
	runGit(t, root, "checkout", "--quiet", "-b", "feature/detect")

	cmd = RunCommand()
	if err := cmd.Flags().Parse([]string{"--event", "push", "--dry-run"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), []string{"pushy"}, testLogger()); err != nil {
		t.Fatalf("run with detected branch: %v", err)
	}
}

func TestRunWorkflowFile(t *testing.T) {
	root := initWorkspace(t)
	path := filepath.Join(root, "standalone.yml")
	if err := os.WriteFile(path, []byte(dispatchWorkflowYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := RunCommand()
	if err := cmd.Flags().Parse([]string{"-f", path, "--dry-run"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), nil, testLogger()); err != nil {
		t.Fatalf("run -f: %v", err)
	}
}

func TestRunFileAndNameConflict(t *testing.T) {
	root := initWorkspace(t)
	writeWorkflow(t, root, "demo.yml", dispatchWorkflowYAML)

	cmd := RunCommand()
	if err := cmd.Flags().Parse([]string{"-f", "demo.yml"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	err := cmd.Run(context.Background(), []string{"demo"}, testLogger())
	if err == nil {
		t.Fatal("expected error combining -f with a name")
	}
}

func TestRunRefusesInvalidWorkflow(t *testing.T) {
	root := initWorkspace(t)
	writeWorkflow(t, root, "broken.yml", `name: broken
jobs:
  test:
    runs-on: [linux]
    needs: [missing]
    steps:
      - run: "true"
`)

	cmd := RunCommand()
	err := cmd.Run(context.Background(), []string{"broken"}, testLogger())
	if err == nil {
		t.Fatal("expected error for invalid workflow")
	}
	if !strings.Contains(err.Error(), "validation issue") {
		t.Errorf("error %q should mention validation issues", err.Error())
	}
}

func TestRunNoTriggerExplains(t *testing.T) {
	root := initWorkspace(t)
	writeWorkflow(t, root, "demo.yml", dispatchWorkflowYAML)

	cmd := RunCommand()
	if err := cmd.Flags().Parse([]string{"--event", "push", "--branch", "main"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	err := cmd.Run(context.Background(), []string{"demo"}, testLogger())
	if err == nil {
		t.Fatal("expected error when the event does not trigger")
	}
	if !strings.Contains(err.Error(), "does not trigger") {
		t.Errorf("error %q should explain the trigger mismatch", err.Error())
	}
	if !strings.Contains(err.Error(), "workflow_dispatch") {
		t.Errorf("error %q should list the declared events", err.Error())
	}
}

func TestRunCancelledContext(t *testing.T) {
	root := initWorkspace(t)
	writeWorkflow(t, root, "demo.yml", dispatchWorkflowYAML)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := RunCommand()
	err := cmd.Run(ctx, []string{"demo"}, testLogger())
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError for a cancelled run, got %T: %v", err, err)
	}
	if exitErr.Code != 130 {
		t.Errorf("exit code = %d, want 130", exitErr.Code)
	}
}

func TestParsePairs(t *testing.T) {
	t.Parallel()

	pairs, err := parsePairs([]string{"go=1.25", "mode=fast"}, "matrix")
	if err != nil {
		t.Fatalf("parsePairs: %v", err)
	}
	if pairs["go"] != "1.25" || pairs["mode"] != "fast" {
		t.Errorf("pairs = %v", pairs)
	}

	if got, err := parsePairs(nil, "matrix"); err != nil || got != nil {
		t.Errorf("empty input: %v, %v", got, err)
	}

	if _, err := parsePairs([]string{"novalue"}, "input"); err == nil {
		t.Error("expected error for missing =")
	}
	if _, err := parsePairs([]string{"=value"}, "input"); err == nil {
		t.Error("expected error for empty name")
	}

	// Values may contain '='.
	pairs, err = parsePairs([]string{"flags=-X=1"}, "input")
	if err != nil {
		t.Fatalf("parsePairs with = in value: %v", err)
	}
	if pairs["flags"] != "-X=1" {
		t.Errorf("value = %q, want %q", pairs["flags"], "-X=1")
	}
}

func TestPlanDeclarations(t *testing.T) {
	t.Parallel()

	plain := planFixture(t, dispatchWorkflowYAML)
	if planDeclaresSecrets(plain) {
		t.Error("plain workflow should not declare secrets")
	}
	if planDeclaresArtifacts(plain) {
		t.Error("plain workflow should not declare artifacts")
	}

	rich := planFixture(t, `name: rich
on:
  workflow_dispatch: {}
jobs:
  build:
    runs-on: [linux]
    secrets: [DEPLOY_TOKEN]
    steps:
      - run: "true"
    artifacts:
      - "dist/**"
`)
	if !planDeclaresSecrets(rich) {
		t.Error("workflow with secrets not detected")
	}
	if !planDeclaresArtifacts(rich) {
		t.Error("workflow with artifacts not detected")
	}
}

func TestPlanView(t *testing.T) {
	t.Parallel()

	plan := planFixture(t, `name: matrixed
on:
  workflow_dispatch: {}
jobs:
  test:
    runs-on: [linux]
    strategy:
      matrix:
        go: ["1.24", "1.25"]
    steps:
      - run: "true"
  report:
    runs-on: [linux]
    needs: [test]
    steps:
      - run: "true"
`)

	view := planView(plan)
	if view.Workflow != "matrixed" {
		t.Errorf("Workflow = %q", view.Workflow)
	}
	if view.Event != "workflow_dispatch" {
		t.Errorf("Event = %q", view.Event)
	}
	if len(view.Jobs) != 3 {
		t.Fatalf("expected 3 planned jobs, got %d: %+v", len(view.Jobs), view.Jobs)
	}
	if view.Jobs[0].Wave != 0 || view.Jobs[2].Wave != 1 {
		t.Errorf("wave assignment wrong: %+v", view.Jobs)
	}
	if !strings.Contains(view.Jobs[0].Job, "test (go: 1.24)") {
		t.Errorf("matrix key = %q", view.Jobs[0].Job)
	}
}
