// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

// Job is a named unit of work within a workflow: an ordered list of
// steps executed in a single working directory with a shared
// environment. Jobs without Needs edges between them may run
// concurrently.
type Job struct {
	// ID is the job's key in the workflow file's jobs map. Used in
	// Needs references, NEEDS_<JOBID>_<NAME> output variables, CLI
	// job selection, and run records. Must be an identifier
	// ([A-Za-z_][A-Za-z0-9_-]*).
	ID string `json:"id"`

	// Name is the human-readable display name. Defaults to ID when
	// absent.
	Name string `json:"name,omitempty"`

	// RunsOn is the list of runner labels this job requires (e.g.
	// "ubuntu-latest", "linux", "self-hosted"). greenlight executes
	// locally: labels are checked against the host platform family
	// and a mismatch skips or fails the job per configuration.
	// Required.
	RunsOn []string `json:"runs_on"`

	// Needs lists job IDs that must conclude successfully before this
	// job starts. A failed or skipped need marks this job skipped.
	// The needs graph must be acyclic.
	Needs []string `json:"needs,omitempty"`

	// When is a guard command evaluated before the job starts. A
	// non-zero exit skips the job (not a failure). Runs with the
	// job's resolved environment.
	When string `json:"when,omitempty"`

	// Env sets environment variables for every step in this job.
	// Overrides workflow-level env on conflict.
	Env map[string]string `json:"env,omitempty"`

	// Secrets lists secret names to inject as SECRET_<NAME> variables.
	// Only listed secrets are visible to the job; an undeclared secret
	// name is a planning error.
	Secrets []string `json:"secrets,omitempty"`

	// Timeout is the default per-step timeout for this job, in
	// minutes. Zero means the runner default applies. Steps may
	// override with their own timeout.
	Timeout int `json:"timeout_minutes,omitempty"`

	// ContinueOnError means a failure of this job is recorded but
	// does not fail the run and does not skip dependent jobs.
	ContinueOnError bool `json:"continue_on_error,omitempty"`

	// Strategy configures matrix expansion and failure handling for
	// the expanded combinations.
	Strategy *Strategy `json:"strategy,omitempty"`

	// Defaults sets fallback execution options for run steps in this
	// job.
	Defaults *JobDefaults `json:"defaults,omitempty"`

	// Steps is the ordered list of steps. At least one is required.
	// Steps run sequentially; a failed non-allowed step stops the job.
	Steps []Step `json:"steps"`

	// Outputs promotes step outputs to job-level values visible to
	// dependent jobs as NEEDS_<JOBID>_<NAME> variables. Each entry
	// maps an output name to a value expression, typically
	// "${OUTPUT_<stepid>_<name>}". Resolved after the job succeeds.
	Outputs map[string]string `json:"outputs,omitempty"`

	// Artifacts lists path globs captured into the artifact store
	// after the job succeeds. Patterns are relative to the workspace
	// root and support ** for directory recursion.
	Artifacts []string `json:"artifacts,omitempty"`
}

// DisplayName returns Name when set, otherwise the job ID.
func (j *Job) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.ID
}

// Strategy controls matrix expansion and cross-combination failure
// behavior for a job.
type Strategy struct {
	// FailFast cancels all in-flight matrix combinations when one
	// fails. Defaults to true when nil (use FailFastEnabled).
	FailFast *bool `json:"fail_fast,omitempty"`

	// MaxParallel caps how many matrix combinations run concurrently.
	// Zero means unbounded.
	MaxParallel int `json:"max_parallel,omitempty"`

	// Matrix declares the combination axes. Nil means the job runs
	// exactly once.
	Matrix *MatrixSpec `json:"matrix,omitempty"`
}

// FailFastEnabled reports the effective fail-fast setting. Nil-safe:
// a nil Strategy or unset FailFast defaults to true.
func (s *Strategy) FailFastEnabled() bool {
	if s == nil || s.FailFast == nil {
		return true
	}
	return *s.FailFast
}

// MatrixSpec declares a build matrix: named axes with value lists,
// expanded to the cartesian product, adjusted by include and exclude
// entries. Axis values reach steps as MATRIX_<AXIS> variables.
type MatrixSpec struct {
	// Axes maps axis names to their value lists. Axis names must be
	// identifiers; values are scalars rendered in canonical string
	// form. Expansion iterates axes in sorted name order so the
	// combination sequence is deterministic.
	Axes map[string][]string `json:"axes,omitempty"`

	// Include adds entries to the expansion: an entry whose known-axis
	// values match an existing combination extends that combination
	// with its extra keys; an entry matching nothing appends as a new
	// combination.
	Include []map[string]string `json:"include,omitempty"`

	// Exclude removes combinations matching the entry's key-value
	// subset. Applied before Include.
	Exclude []map[string]string `json:"exclude,omitempty"`
}

// JobDefaults sets fallback execution options applied to run steps
// that do not set their own.
type JobDefaults struct {
	// Shell is the default shell for run steps: "sh" or "bash".
	Shell string `json:"shell,omitempty"`

	// WorkingDirectory is the default working directory for run
	// steps, relative to the workspace root.
	WorkingDirectory string `json:"working_directory,omitempty"`
}
