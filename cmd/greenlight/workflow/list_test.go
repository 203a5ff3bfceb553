// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"testing"
	"time"

	schema "github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

func TestListWorkflows(t *testing.T) {
	root := initWorkspace(t)
	writeWorkflow(t, root, "build.yml", buildWorkflowYAML)
	writeWorkflow(t, root, "nightly.yml", nightlyWorkflowYAML)

	cmd := ListCommand()
	if err := cmd.Run(context.Background(), nil, testLogger()); err != nil {
		t.Fatalf("list: %v", err)
	}
}

func TestListWorkflowsJSON(t *testing.T) {
	root := initWorkspace(t)
	writeWorkflow(t, root, "build.yml", buildWorkflowYAML)

	cmd := ListCommand()
	if err := cmd.Flags().Parse([]string{"--json"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), nil, testLogger()); err != nil {
		t.Fatalf("list --json: %v", err)
	}
}

func TestListWithEvent(t *testing.T) {
	root := initWorkspace(t)
	writeWorkflow(t, root, "build.yml", buildWorkflowYAML)
	writeWorkflow(t, root, "nightly.yml", nightlyWorkflowYAML)

	cmd := ListCommand()
	if err := cmd.Flags().Parse([]string{"--event", "push", "--branch", "main"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), nil, testLogger()); err != nil {
		t.Fatalf("list --event push: %v", err)
	}
}

func TestListWithScheduleEvent(t *testing.T) {
	root := initWorkspace(t)
	writeWorkflow(t, root, "nightly.yml", nightlyWorkflowYAML)

	cmd := ListCommand()
	if err := cmd.Flags().Parse([]string{"--event", "schedule"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), nil, testLogger()); err != nil {
		t.Fatalf("list --event schedule: %v", err)
	}
}

func TestListRejectsArguments(t *testing.T) {
	t.Parallel()

	cmd := ListCommand()
	if err := cmd.Run(context.Background(), []string{"extra"}, testLogger()); err == nil {
		t.Fatal("expected error for unexpected argument")
	}
}

func TestNextFiring(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	// The second entry fires later today, the first not until
	// tomorrow; the earliest wins.
	entries := []schema.ScheduleTrigger{
		{Cron: "0 3 * * *"},
		{Cron: "30 14 * * *"},
	}
	got := nextFiring(entries, from)
	want := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC).Format(time.RFC3339)
	if got != want {
		t.Errorf("nextFiring = %q, want %q", got, want)
	}

	if got := nextFiring(nil, from); got != "" {
		t.Errorf("nextFiring with no entries = %q, want empty", got)
	}

	// Unparseable entries are skipped rather than failing the listing.
	if got := nextFiring([]schema.ScheduleTrigger{{Cron: "not a cron"}}, from); got != "" {
		t.Errorf("nextFiring with bad cron = %q, want empty", got)
	}
}
