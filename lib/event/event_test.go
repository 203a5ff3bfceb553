// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"strings"
	"testing"
	"time"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

func TestMatchFilters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		filters []string
		value   string
		want    bool
	}{
		{"exact match", []string{"main"}, "main", true},
		{"exact miss", []string{"main"}, "dev", false},
		{"star within segment", []string{"release-*"}, "release-1.2", true},
		{"star does not cross slash", []string{"feature/*"}, "feature/a/b", false},
		{"double star crosses slash", []string{"feature/**"}, "feature/a/b", true},
		{"double star matches empty", []string{"**"}, "anything/at/all", true},
		{"question mark", []string{"v?"}, "v1", true},
		{"question mark needs a char", []string{"v?"}, "v", false},
		{"question mark rejects slash", []string{"v?"}, "v/", false},
		{"any positive suffices", []string{"main", "dev"}, "dev", true},
		{"negation removes match", []string{"release-*", "!release-wip"}, "release-wip", false},
		{"negation leaves others", []string{"release-*", "!release-wip"}, "release-2.0", true},
		{"later positive restores", []string{"*", "!docs/**", "docs/README.md"}, "docs/README.md", true},
		{"negation only subtracts from all", []string{"!vendor/**"}, "lib/a.go", true},
		{"negation only excludes", []string{"!vendor/**"}, "vendor/a.go", false},
		{"no positive match", []string{"release-*", "!release-wip"}, "main", false},
		{"path glob on extension", []string{"**/*.go"}, "lib/event/event.go", true},
		{"path glob extension miss", []string{"**/*.go"}, "README.md", false},
		{"dot is literal", []string{"v1.0"}, "v1x0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := matchFilters(tt.filters, tt.value)
			if err != nil {
				t.Fatalf("matchFilters(%v, %q): %v", tt.filters, tt.value, err)
			}
			if got != tt.want {
				t.Errorf("matchFilters(%v, %q) = %v, want %v", tt.filters, tt.value, got, tt.want)
			}
		})
	}
}

func TestMatchFiltersInvalid(t *testing.T) {
	t.Parallel()

	for _, pattern := range []string{"", "!"} {
		if _, err := matchFilters([]string{pattern}, "x"); err == nil {
			t.Errorf("matchFilters with pattern %q: expected error", pattern)
		}
	}
	if issues := ValidateFilters([]string{"main", "", "!"}); len(issues) != 2 {
		t.Errorf("ValidateFilters: got %d issues, want 2: %v", len(issues), issues)
	}
}

func TestMatchPush(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		trigger *workflow.PushTrigger
		event   Event
		want    bool
		reason  string
	}{
		{
			name:   "no trigger",
			event:  Event{Type: workflow.EventPush, Branch: "main"},
			reason: "no push trigger",
		},
		{
			name:    "unfiltered branch push",
			trigger: &workflow.PushTrigger{},
			event:   Event{Type: workflow.EventPush, Branch: "main"},
			want:    true,
		},
		{
			name:    "branch filter match",
			trigger: &workflow.PushTrigger{Branches: []string{"main", "release-*"}},
			event:   Event{Type: workflow.EventPush, Branch: "release-2.0"},
			want:    true,
		},
		{
			name:    "branch filter miss",
			trigger: &workflow.PushTrigger{Branches: []string{"main"}},
			event:   Event{Type: workflow.EventPush, Branch: "dev"},
			reason:  "does not match branches filter",
		},
		{
			name:    "tag push against tag filter",
			trigger: &workflow.PushTrigger{Tags: []string{"v*"}},
			event:   Event{Type: workflow.EventPush, Tag: "v1.4.0"},
			want:    true,
		},
		{
			name:    "tag push against branches-only trigger",
			trigger: &workflow.PushTrigger{Branches: []string{"main"}},
			event:   Event{Type: workflow.EventPush, Tag: "v1.4.0"},
			reason:  "trigger filters branches",
		},
		{
			name:    "branch push against tags-only trigger",
			trigger: &workflow.PushTrigger{Tags: []string{"v*"}},
			event:   Event{Type: workflow.EventPush, Branch: "main"},
			reason:  "trigger filters tags",
		},
		{
			name:    "unfiltered tag push",
			trigger: &workflow.PushTrigger{},
			event:   Event{Type: workflow.EventPush, Tag: "v1.4.0"},
			want:    true,
		},
		{
			name:    "paths filter hit",
			trigger: &workflow.PushTrigger{Branches: []string{"main"}, Paths: []string{"lib/**"}},
			event:   Event{Type: workflow.EventPush, Branch: "main", ChangedFiles: []string{"README.md", "lib/event/event.go"}},
			want:    true,
		},
		{
			name:    "paths filter miss",
			trigger: &workflow.PushTrigger{Branches: []string{"main"}, Paths: []string{"lib/**"}},
			event:   Event{Type: workflow.EventPush, Branch: "main", ChangedFiles: []string{"README.md"}},
			reason:  "no changed file matches",
		},
		{
			name:    "paths filter with no file information",
			trigger: &workflow.PushTrigger{Branches: []string{"main"}, Paths: []string{"lib/**"}},
			event:   Event{Type: workflow.EventPush, Branch: "main"},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			wf := &workflow.Workflow{On: workflow.Triggers{Push: tt.trigger}}
			decision, err := Match(wf, tt.event)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if decision.Matched != tt.want {
				t.Fatalf("Match = %v (%s), want %v", decision.Matched, decision.Reason, tt.want)
			}
			if tt.reason != "" && !strings.Contains(decision.Reason, tt.reason) {
				t.Errorf("reason %q does not contain %q", decision.Reason, tt.reason)
			}
		})
	}
}

func TestMatchPullRequest(t *testing.T) {
	t.Parallel()

	wf := &workflow.Workflow{On: workflow.Triggers{
		PullRequest: &workflow.PullRequestTrigger{Branches: []string{"main"}},
	}}

	decision, err := Match(wf, Event{Type: workflow.EventPullRequest, Branch: "main"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !decision.Matched {
		t.Fatalf("expected match, got: %s", decision.Reason)
	}
	if !strings.Contains(decision.Reason, "main") {
		t.Errorf("reason %q does not name the target branch", decision.Reason)
	}

	decision, err = Match(wf, Event{Type: workflow.EventPullRequest, Branch: "dev"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if decision.Matched {
		t.Fatal("expected mismatch for non-target branch")
	}

	empty := &workflow.Workflow{}
	decision, err = Match(empty, Event{Type: workflow.EventPullRequest, Branch: "main"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if decision.Matched || decision.Reason != "no pull_request trigger" {
		t.Errorf("got %+v, want no-trigger mismatch", decision)
	}
}

func TestMatchDispatchAndSchedule(t *testing.T) {
	t.Parallel()

	dispatch := &workflow.Workflow{On: workflow.Triggers{
		WorkflowDispatch: &workflow.DispatchTrigger{},
	}}
	decision, err := Match(dispatch, Event{Type: workflow.EventWorkflowDispatch})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !decision.Matched {
		t.Fatalf("dispatch should match: %s", decision.Reason)
	}

	decision, err = Match(&workflow.Workflow{}, Event{Type: workflow.EventWorkflowDispatch})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if decision.Matched {
		t.Fatal("dispatch without trigger should not match")
	}

	scheduled := &workflow.Workflow{On: workflow.Triggers{
		Schedule: []workflow.ScheduleTrigger{{Cron: "30 6 * * *"}},
	}}
	at := time.Date(2026, 8, 20, 6, 30, 0, 0, time.UTC)
	decision, err = Match(scheduled, Event{Type: workflow.EventSchedule, At: at})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !decision.Matched {
		t.Fatalf("schedule should fire at 06:30: %s", decision.Reason)
	}

	decision, err = Match(scheduled, Event{Type: workflow.EventSchedule, At: at.Add(time.Minute)})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if decision.Matched {
		t.Fatal("schedule should not fire at 06:31")
	}

	if _, err := Match(&workflow.Workflow{}, Event{Type: "merge_group"}); err == nil {
		t.Fatal("unknown event type should error")
	}
}

func TestResolveInputs(t *testing.T) {
	t.Parallel()

	trigger := &workflow.DispatchTrigger{Inputs: map[string]workflow.DispatchInput{
		"mode":    {Default: "fast"},
		"target":  {Required: true},
		"verbose": {},
	}}

	resolved, err := ResolveInputs(trigger, map[string]string{"target": "all", "verbose": "1"})
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}
	want := map[string]string{"mode": "fast", "target": "all", "verbose": "1"}
	if len(resolved) != len(want) {
		t.Fatalf("resolved = %v, want %v", resolved, want)
	}
	for name, value := range want {
		if resolved[name] != value {
			t.Errorf("resolved[%q] = %q, want %q", name, resolved[name], value)
		}
	}

	// Provided values override defaults.
	resolved, err = ResolveInputs(trigger, map[string]string{"target": "all", "mode": "slow"})
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}
	if resolved["mode"] != "slow" {
		t.Errorf("resolved[mode] = %q, want override %q", resolved["mode"], "slow")
	}

	if _, err := ResolveInputs(trigger, nil); err == nil {
		t.Fatal("missing required input should error")
	} else if !strings.Contains(err.Error(), "target") {
		t.Errorf("error %q does not name the missing input", err)
	}

	if _, err := ResolveInputs(trigger, map[string]string{"target": "all", "bogus": "x"}); err == nil {
		t.Fatal("undeclared input should error")
	} else if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error %q does not name the undeclared input", err)
	}

	if _, err := ResolveInputs(nil, map[string]string{"x": "1"}); err == nil {
		t.Fatal("inputs without a dispatch trigger should error")
	}
	if resolved, err := ResolveInputs(nil, nil); err != nil || len(resolved) != 0 {
		t.Errorf("nil trigger with no inputs: got %v, %v", resolved, err)
	}
}

func TestEventVariables(t *testing.T) {
	t.Parallel()

	vars := Event{Type: workflow.EventPush, Branch: "main"}.Variables()
	if vars["EVENT_TYPE"] != "push" || vars["EVENT_BRANCH"] != "main" {
		t.Errorf("push variables = %v", vars)
	}
	if _, exists := vars["EVENT_TAG"]; exists {
		t.Error("EVENT_TAG should be absent for branch pushes")
	}

	vars = Event{Type: workflow.EventPush, Tag: "v1.0"}.Variables()
	if vars["EVENT_TAG"] != "v1.0" {
		t.Errorf("tag variables = %v", vars)
	}
}
