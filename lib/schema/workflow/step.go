// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import "strings"

// Step is a single step in a job. Exactly one of Run or Uses must be
// set:
//   - Run: execute a shell command
//   - Uses: invoke an action (a local composite action directory, or
//     a remote reference handled per the remote-actions policy)
type Step struct {
	// ID identifies the step for output variables
	// (OUTPUT_<ID>_<NAME>) and log file names. Optional unless the
	// step's outputs are consumed. Must be an identifier when set;
	// unique within the job.
	ID string `json:"id,omitempty"`

	// Name is the human-readable label used in log output and run
	// records. When empty, display falls back to ID, then to a
	// truncated form of the command or action reference.
	Name string `json:"name,omitempty"`

	// Run is a shell command executed via the step shell ("sh -c" by
	// default). Multi-line strings are supported. Variable
	// substitution (${NAME}) is applied before execution. Mutually
	// exclusive with Uses.
	Run string `json:"run,omitempty"`

	// Uses invokes an action instead of running a command. Local form
	// "./path/to/dir" names a directory containing action.yml; remote
	// form "owner/repo@ref" is validated but executed per the
	// remote_actions policy (skip by default). Mutually exclusive
	// with Run.
	Uses string `json:"uses,omitempty"`

	// With provides inputs to the action named by Uses. Values reach
	// the action's steps as INPUT_<NAME> variables. Only valid on
	// uses steps.
	With map[string]string `json:"with,omitempty"`

	// Shell selects the interpreter for Run: "sh" (default) or
	// "bash". Only valid on run steps.
	Shell string `json:"shell,omitempty"`

	// WorkingDirectory is where Run executes, relative to the
	// workspace root. Defaults to the job's defaults, then the
	// workspace root.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Env sets additional environment variables for this step only.
	// Highest priority in the variable resolution order.
	Env map[string]string `json:"env,omitempty"`

	// When is a guard command. Runs before Run; a non-zero exit skips
	// the step (not a failure). Use for conditional steps.
	When string `json:"when,omitempty"`

	// Check is a post-step verification command. Runs after Run
	// succeeds; a non-zero exit fails the step. Catches commands that
	// "succeed" without producing the expected result. Only valid on
	// run steps.
	Check string `json:"check,omitempty"`

	// Timeout is the maximum duration for this step, in minutes.
	// Zero falls back to the job timeout, then the runner default.
	Timeout int `json:"timeout_minutes,omitempty"`

	// GracePeriod is the duration between SIGTERM and SIGKILL when
	// the step is cancelled or times out (e.g. "10s"). When empty the
	// process group is killed immediately. Parsed by
	// time.ParseDuration. Only valid on run steps.
	GracePeriod string `json:"grace_period,omitempty"`

	// ContinueOnError means this step's failure is recorded but does
	// not fail the job.
	ContinueOnError bool `json:"continue_on_error,omitempty"`
}

// DisplayName returns the best human-readable label for the step:
// Name, then ID, then the first line of the command or the action
// reference, truncated.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.ID != "" {
		return s.ID
	}
	label := s.Uses
	if label == "" {
		label = s.Run
	}
	if line, _, found := strings.Cut(label, "\n"); found {
		label = line
	}
	const limit = 48
	if len(label) > limit {
		label = label[:limit-3] + "..."
	}
	return label
}

// IsRun reports whether this is a shell-command step.
func (s *Step) IsRun() bool { return s.Run != "" }

// IsUses reports whether this is an action step.
func (s *Step) IsUses() bool { return s.Uses != "" }
