// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"encoding/hex"
	"reflect"
	"testing"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

func TestWorkflows(t *testing.T) {
	t.Parallel()

	workflows, err := Workflows()
	if err != nil {
		t.Fatalf("Workflows: %v", err)
	}

	if len(workflows) == 0 {
		t.Fatal("expected at least one embedded workflow")
	}

	var found bool
	for _, wf := range workflows {
		if wf.Name == StarterName {
			found = true
			verifyComprehensive(t, wf)
			break
		}
	}
	if !found {
		names := make([]string, len(workflows))
		for i, wf := range workflows {
			names[i] = wf.Name
		}
		t.Fatalf("%s not found in workflows: %v", StarterName, names)
	}
}

func verifyComprehensive(t *testing.T, wf Workflow) {
	t.Helper()
	def := wf.Definition

	// Trigger set: pull requests targeting main plus manual dispatch,
	// and nothing else.
	events := def.On.Events()
	wantEvents := []string{workflow.EventPullRequest, workflow.EventWorkflowDispatch}
	if !reflect.DeepEqual(events, wantEvents) {
		t.Errorf("trigger events = %v, want %v", events, wantEvents)
	}
	if def.On.PullRequest == nil {
		t.Fatal("pull_request trigger missing")
	}
	if got := def.On.PullRequest.Branches; !reflect.DeepEqual(got, []string{"main"}) {
		t.Errorf("pull_request branches = %v, want [main]", got)
	}
	if def.On.WorkflowDispatch == nil {
		t.Error("workflow_dispatch trigger missing")
	}
	if def.On.Push != nil || len(def.On.Schedule) != 0 {
		t.Error("starter must not react to push or schedule events")
	}

	// A single job with exactly four ordered steps.
	if len(def.Jobs) != 1 {
		t.Fatalf("job count = %d, want 1", len(def.Jobs))
	}
	job := def.Jobs[0]
	if job.ID != "comprehensive" {
		t.Errorf("job ID = %q, want %q", job.ID, "comprehensive")
	}
	if job.Name != "Comprehensive Correctness Tests" {
		t.Errorf("job name = %q, want %q", job.Name, "Comprehensive Correctness Tests")
	}
	if !reflect.DeepEqual(job.RunsOn, []string{"ubuntu-latest"}) {
		t.Errorf("runs-on = %v, want [ubuntu-latest]", job.RunsOn)
	}
	if job.Strategy == nil || !job.Strategy.FailFastEnabled() {
		t.Error("fail-fast strategy should be enabled")
	}
	if len(job.Steps) != 4 {
		t.Fatalf("step count = %d, want 4", len(job.Steps))
	}

	// Steps 1-2: checkout, then the nightly toolchain with formatter
	// and linter components.
	if job.Steps[0].Uses != "actions/checkout@v4" {
		t.Errorf("steps[0].uses = %q", job.Steps[0].Uses)
	}
	toolchain := job.Steps[1]
	if toolchain.Uses != "actions-rs/toolchain@v1" {
		t.Errorf("steps[1].uses = %q", toolchain.Uses)
	}
	wantWith := map[string]string{
		"toolchain":  "nightly",
		"override":   "true",
		"components": "rustfmt, clippy",
	}
	if !reflect.DeepEqual(toolchain.With, wantWith) {
		t.Errorf("steps[1].with = %v, want %v", toolchain.With, wantWith)
	}

	// Steps 3-4: the same script twice, the second run differing only
	// by ALL_FEATURES=1 in its environment.
	first, second := job.Steps[2], job.Steps[3]
	if first.Run != "ci/comprehensive.sh" || second.Run != "ci/comprehensive.sh" {
		t.Errorf("script steps run %q and %q, want ci/comprehensive.sh for both", first.Run, second.Run)
	}
	if len(first.Env) != 0 {
		t.Errorf("steps[2].env = %v, want empty", first.Env)
	}
	if !reflect.DeepEqual(second.Env, map[string]string{"ALL_FEATURES": "1"}) {
		t.Errorf("steps[3].env = %v, want ALL_FEATURES=1", second.Env)
	}
	first.Env, second.Env = nil, nil
	if !reflect.DeepEqual(first, second) {
		t.Errorf("script steps differ beyond env:\n  first:  %+v\n  second: %+v", first, second)
	}

	// SourceHash should be a valid hex-encoded 256-bit digest.
	if len(wf.SourceHash) != 64 {
		t.Errorf("SourceHash length = %d, want 64", len(wf.SourceHash))
	}
	if _, err := hex.DecodeString(wf.SourceHash); err != nil {
		t.Errorf("SourceHash is not valid hex: %v", err)
	}
}

func TestStarter(t *testing.T) {
	t.Parallel()

	starter, err := Starter()
	if err != nil {
		t.Fatalf("Starter: %v", err)
	}
	if starter.Name != StarterName {
		t.Errorf("Name = %q, want %q", starter.Name, StarterName)
	}
	if len(starter.Source) == 0 {
		t.Error("Source is empty")
	}
}

func TestWorkflowsSourceHashStable(t *testing.T) {
	t.Parallel()

	// Calling Workflows twice should produce identical hashes.
	first, err := Workflows()
	if err != nil {
		t.Fatalf("first Workflows call: %v", err)
	}
	second, err := Workflows()
	if err != nil {
		t.Fatalf("second Workflows call: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("workflow count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].SourceHash != second[i].SourceHash {
			t.Errorf("workflow %q hash changed between calls: %s vs %s",
				first[i].Name, first[i].SourceHash, second[i].SourceHash)
		}
	}
}

func TestWorkflowsNamesUnique(t *testing.T) {
	t.Parallel()

	workflows, err := Workflows()
	if err != nil {
		t.Fatalf("Workflows: %v", err)
	}

	seen := make(map[string]bool, len(workflows))
	for _, wf := range workflows {
		if seen[wf.Name] {
			t.Errorf("duplicate workflow name: %s", wf.Name)
		}
		seen[wf.Name] = true
	}
}
