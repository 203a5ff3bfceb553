// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package event models the events that trigger workflows — pushes,
// pull requests, manual dispatches, schedule ticks — and decides
// which workflows a given event starts. Matching covers the trigger
// type, branch/tag/path glob filters, dispatch input resolution, and
// cron schedules.
package event

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/greenlight-ci/greenlight/lib/cronspec"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// Event is one occurrence that may trigger workflows. Exactly one of
// Branch or Tag is meaningful for push events; pull_request events
// carry the target branch in Branch.
type Event struct {
	// Type is the event type: push, pull_request, workflow_dispatch,
	// or schedule.
	Type string

	// Branch is the branch context: the pushed branch for push, the
	// target branch for pull_request.
	Branch string

	// Tag is the pushed tag for tag-push events.
	Tag string

	// ChangedFiles lists the files the event touched, workspace-
	// relative. Path filters compare against this list; when empty,
	// path filters do not restrict the match.
	ChangedFiles []string

	// Inputs holds dispatch input values as provided by the
	// invocation (before defaults are merged).
	Inputs map[string]string

	// At is the event's timestamp. Schedule matching evaluates cron
	// entries at this instant.
	At time.Time
}

// Variables returns the EVENT_* variable map injected into step
// environments: EVENT_TYPE always, EVENT_BRANCH and EVENT_TAG when
// set.
func (e Event) Variables() map[string]string {
	vars := map[string]string{"EVENT_TYPE": e.Type}
	if e.Branch != "" {
		vars["EVENT_BRANCH"] = e.Branch
	}
	if e.Tag != "" {
		vars["EVENT_TAG"] = e.Tag
	}
	return vars
}

// TriggerInfo converts the event to its run-record form.
func (e Event) TriggerInfo() workflow.TriggerInfo {
	return workflow.TriggerInfo{
		Type:   e.Type,
		Branch: e.Branch,
		Inputs: e.Inputs,
	}
}

// Decision is the outcome of matching one workflow against an event.
// Reason is always populated — for non-matches it names the first
// failing condition, for matches it describes what matched, so
// greenlight list --event can explain both.
type Decision struct {
	Matched bool
	Reason  string
}

// Match decides whether the workflow's triggers accept the event.
func Match(wf *workflow.Workflow, ev Event) (Decision, error) {
	switch ev.Type {
	case workflow.EventPush:
		return matchPush(wf.On.Push, ev)
	case workflow.EventPullRequest:
		return matchPullRequest(wf.On.PullRequest, ev)
	case workflow.EventWorkflowDispatch:
		if wf.On.WorkflowDispatch == nil {
			return Decision{Reason: "no workflow_dispatch trigger"}, nil
		}
		return Decision{Matched: true, Reason: "workflow_dispatch declared"}, nil
	case workflow.EventSchedule:
		return matchSchedule(wf.On.Schedule, ev)
	default:
		return Decision{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func matchPush(trigger *workflow.PushTrigger, ev Event) (Decision, error) {
	if trigger == nil {
		return Decision{Reason: "no push trigger"}, nil
	}

	switch {
	case ev.Tag != "":
		if len(trigger.Tags) == 0 {
			if len(trigger.Branches) > 0 {
				return Decision{Reason: fmt.Sprintf("tag %q pushed but trigger filters branches", ev.Tag)}, nil
			}
			// No ref filters at all: any push matches.
		} else {
			matched, err := matchFilters(trigger.Tags, ev.Tag)
			if err != nil {
				return Decision{}, fmt.Errorf("on.push.tags: %w", err)
			}
			if !matched {
				return Decision{Reason: fmt.Sprintf("tag %q does not match tags filter", ev.Tag)}, nil
			}
		}
	default:
		if len(trigger.Branches) > 0 {
			matched, err := matchFilters(trigger.Branches, ev.Branch)
			if err != nil {
				return Decision{}, fmt.Errorf("on.push.branches: %w", err)
			}
			if !matched {
				return Decision{Reason: fmt.Sprintf("branch %q does not match branches filter", ev.Branch)}, nil
			}
		} else if len(trigger.Tags) > 0 {
			return Decision{Reason: fmt.Sprintf("branch %q pushed but trigger filters tags", ev.Branch)}, nil
		}
	}

	if decision, err := matchPaths(trigger.Paths, ev.ChangedFiles, "on.push.paths"); err != nil || !decision.Matched {
		return decision, err
	}

	ref := ev.Branch
	if ev.Tag != "" {
		ref = ev.Tag
	}
	return Decision{Matched: true, Reason: fmt.Sprintf("push to %q", ref)}, nil
}

func matchPullRequest(trigger *workflow.PullRequestTrigger, ev Event) (Decision, error) {
	if trigger == nil {
		return Decision{Reason: "no pull_request trigger"}, nil
	}

	if len(trigger.Branches) > 0 {
		matched, err := matchFilters(trigger.Branches, ev.Branch)
		if err != nil {
			return Decision{}, fmt.Errorf("on.pull_request.branches: %w", err)
		}
		if !matched {
			return Decision{Reason: fmt.Sprintf("target branch %q does not match branches filter", ev.Branch)}, nil
		}
	}

	if decision, err := matchPaths(trigger.Paths, ev.ChangedFiles, "on.pull_request.paths"); err != nil || !decision.Matched {
		return decision, err
	}

	return Decision{Matched: true, Reason: fmt.Sprintf("pull request targeting %q", ev.Branch)}, nil
}

// matchPaths applies path filters against the changed-file list. An
// empty filter list or an empty changed-file list does not restrict.
func matchPaths(filters, changed []string, context string) (Decision, error) {
	if len(filters) == 0 || len(changed) == 0 {
		return Decision{Matched: true}, nil
	}
	for _, file := range changed {
		matched, err := matchFilters(filters, file)
		if err != nil {
			return Decision{}, fmt.Errorf("%s: %w", context, err)
		}
		if matched {
			return Decision{Matched: true}, nil
		}
	}
	return Decision{Reason: "no changed file matches paths filter"}, nil
}

func matchSchedule(entries []workflow.ScheduleTrigger, ev Event) (Decision, error) {
	if len(entries) == 0 {
		return Decision{Reason: "no schedule trigger"}, nil
	}
	for _, entry := range entries {
		schedule, err := cronspec.Parse(entry.Cron)
		if err != nil {
			return Decision{}, fmt.Errorf("on.schedule: %w", err)
		}
		if schedule.Matches(ev.At) {
			return Decision{Matched: true, Reason: fmt.Sprintf("cron %q fires at %s", entry.Cron, ev.At.UTC().Format("15:04"))}, nil
		}
	}
	return Decision{Reason: fmt.Sprintf("no cron entry fires at %s", ev.At.UTC().Format(time.RFC3339))}, nil
}

// ResolveInputs merges dispatch input defaults with provided values.
// Returns an error naming undeclared inputs and required inputs that
// remain unset. The trigger may be nil only when no inputs are
// provided.
func ResolveInputs(trigger *workflow.DispatchTrigger, provided map[string]string) (map[string]string, error) {
	declared := map[string]workflow.DispatchInput{}
	if trigger != nil {
		declared = trigger.Inputs
	}

	var unknown []string
	for name := range provided {
		if _, exists := declared[name]; !exists {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("undeclared workflow inputs: %s", strings.Join(unknown, ", "))
	}

	resolved := make(map[string]string, len(declared))
	for name, input := range declared {
		if input.Default != "" {
			resolved[name] = input.Default
		}
	}
	for name, value := range provided {
		resolved[name] = value
	}

	var missing []string
	for name, input := range declared {
		if input.Required {
			if _, exists := resolved[name]; !exists {
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("required workflow inputs not set: %s", strings.Join(missing, ", "))
	}

	return resolved, nil
}
