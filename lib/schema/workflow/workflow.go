// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import "sort"

// Workflow is a complete workflow definition: the triggers that cause
// it to run and the jobs it runs. Workflows are the automation
// primitive for greenlight: continuous-integration checks, release
// preparation, scheduled maintenance, and any structured task that
// benefits from declarative configuration and recorded results.
//
// Variable substitution (${NAME}) is applied to step string fields
// before execution. Variables are resolved from workflow env, job env,
// matrix values, dispatch inputs, event context, runtime variables,
// step outputs, declared secrets, and step-level env, in that order of
// increasing priority.
type Workflow struct {
	// Name identifies the workflow in CLI output, run records, and
	// history. When absent from the file, the definition layer fills
	// it with the file's basename (extension stripped).
	Name string `json:"name"`

	// On declares the events that trigger this workflow. At least one
	// trigger is required.
	On Triggers `json:"on"`

	// Env sets environment variables for every step in every job.
	// Lowest priority in the variable resolution order.
	Env map[string]string `json:"env,omitempty"`

	// Jobs is the list of jobs in file declaration order. At least one
	// job is required. Execution order is determined by Needs edges,
	// not declaration order; declaration order is kept for stable
	// display and deterministic scheduling of independent jobs.
	Jobs []Job `json:"jobs"`
}

// Job returns the job with the given ID, or nil if no such job exists.
func (w *Workflow) Job(id string) *Job {
	for i := range w.Jobs {
		if w.Jobs[i].ID == id {
			return &w.Jobs[i]
		}
	}
	return nil
}

// Triggers declares which events cause a workflow to run. Each field
// corresponds to one event type; a nil field means the workflow does
// not respond to that event type. The YAML forms "on: push",
// "on: [push, pull_request]", and the full map form all decode into
// this struct (shorthand forms produce triggers with no filters).
type Triggers struct {
	// Push triggers on branch or tag updates.
	Push *PushTrigger `json:"push,omitempty"`

	// PullRequest triggers on pull requests, matched against the
	// request's target branch.
	PullRequest *PullRequestTrigger `json:"pull_request,omitempty"`

	// WorkflowDispatch enables manual invocation (greenlight run with
	// an explicit or defaulted dispatch event), optionally declaring
	// typed inputs.
	WorkflowDispatch *DispatchTrigger `json:"workflow_dispatch,omitempty"`

	// Schedule triggers on cron expressions (standard 5-field form,
	// minute granularity).
	Schedule []ScheduleTrigger `json:"schedule,omitempty"`
}

// Events returns the sorted list of event type names this trigger set
// declares. Empty when no triggers are configured.
func (t Triggers) Events() []string {
	var events []string
	if t.Push != nil {
		events = append(events, EventPush)
	}
	if t.PullRequest != nil {
		events = append(events, EventPullRequest)
	}
	if t.WorkflowDispatch != nil {
		events = append(events, EventWorkflowDispatch)
	}
	if len(t.Schedule) > 0 {
		events = append(events, EventSchedule)
	}
	sort.Strings(events)
	return events
}

// Empty reports whether no trigger is declared.
func (t Triggers) Empty() bool {
	return t.Push == nil && t.PullRequest == nil && t.WorkflowDispatch == nil && len(t.Schedule) == 0
}

// Event type names as they appear in trigger declarations and run
// records.
const (
	EventPush             = "push"
	EventPullRequest      = "pull_request"
	EventWorkflowDispatch = "workflow_dispatch"
	EventSchedule         = "schedule"
)

// PushTrigger filters push events. All filter lists use glob patterns
// (*, **, ?, and ! negation); an empty list means "match everything"
// for that dimension.
type PushTrigger struct {
	// Branches restricts the trigger to pushes on matching branches.
	Branches []string `json:"branches,omitempty"`

	// Tags restricts the trigger to matching tag pushes. When both
	// Branches and Tags are set, either matching satisfies the
	// trigger.
	Tags []string `json:"tags,omitempty"`

	// Paths restricts the trigger to pushes whose changed files match
	// at least one pattern. Ignored when the event carries no
	// changed-file list.
	Paths []string `json:"paths,omitempty"`
}

// PullRequestTrigger filters pull request events by the branch the
// request targets.
type PullRequestTrigger struct {
	// Branches restricts the trigger to pull requests targeting a
	// matching branch (e.g. "main", "release/*").
	Branches []string `json:"branches,omitempty"`

	// Paths restricts the trigger to requests whose changed files
	// match at least one pattern.
	Paths []string `json:"paths,omitempty"`
}

// DispatchTrigger enables manual workflow invocation with optional
// typed inputs. Input values reach steps as INPUT_<NAME> variables
// (names uppercased, dashes become underscores).
type DispatchTrigger struct {
	// Inputs declares the accepted inputs. Invocations providing
	// undeclared inputs are rejected; declared inputs marked required
	// must be provided unless they carry a default.
	Inputs map[string]DispatchInput `json:"inputs,omitempty"`
}

// DispatchInput declares one manual-invocation input.
type DispatchInput struct {
	// Description explains what the input is for (shown by
	// greenlight show).
	Description string `json:"description,omitempty"`

	// Default is the value used when the invocation does not provide
	// one. Empty string is a valid default only for non-required
	// inputs.
	Default string `json:"default,omitempty"`

	// Required means the invocation must provide a value when no
	// default exists.
	Required bool `json:"required,omitempty"`
}

// ScheduleTrigger is a single cron entry.
type ScheduleTrigger struct {
	// Cron is a standard 5-field cron expression (minute, hour,
	// day-of-month, month, day-of-week) with names, ranges, lists,
	// and steps. Parsed by lib/cronspec.
	Cron string `json:"cron"`
}
