// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"errors"
	"fmt"
)

// RunRecordVersion is the current schema version for RunRecord.
// Increment when adding fields that existing code must not silently
// drop when rewriting stored records.
const RunRecordVersion = 1

// Conclusion is the terminal outcome of a run or a job.
type Conclusion string

// Run and job conclusions.
const (
	// ConclusionSuccess: every non-allowed job (or step) succeeded.
	ConclusionSuccess Conclusion = "success"

	// ConclusionFailure: a non-allowed job (or step) failed.
	ConclusionFailure Conclusion = "failure"

	// ConclusionCancelled: execution was interrupted — operator
	// cancel, fail-fast sibling cancellation, or watch-mode restart.
	ConclusionCancelled Conclusion = "cancelled"

	// ConclusionSkipped: the job never ran — unmet needs, a false
	// when-guard, or a platform mismatch under the skip policy.
	// Never used at run level.
	ConclusionSkipped Conclusion = "skipped"
)

// StepStatus is the outcome of a single executed step.
type StepStatus string

// Step statuses.
const (
	StepOK            StepStatus = "ok"
	StepFailed        StepStatus = "failed"
	StepFailedAllowed StepStatus = "failed (allowed)"
	StepSkipped       StepStatus = "skipped"
	StepCancelled     StepStatus = "cancelled"
)

// RunRecord is the durable record of one workflow run, written as
// run.cbor in the run directory when execution finishes and summarized
// into the history database. The JSONL result log is a separate live
// format for tailing; this is the complete final record.
type RunRecord struct {
	// Version is the schema version (see RunRecordVersion). Call
	// CanModify before any read-modify-write of a stored record.
	Version int `json:"version"`

	// RunID is the run's identifier (run- prefix, base-36 rendering
	// of the derived 128-bit value).
	RunID string `json:"run_id"`

	// Workflow is the workflow name that ran.
	Workflow string `json:"workflow"`

	// Trigger describes the event that started the run.
	Trigger TriggerInfo `json:"trigger"`

	// Conclusion is the terminal outcome: success, failure, or
	// cancelled.
	Conclusion Conclusion `json:"conclusion"`

	// StartedAt is an ISO 8601 timestamp of when execution began.
	StartedAt string `json:"started_at"`

	// CompletedAt is an ISO 8601 timestamp of when execution finished.
	CompletedAt string `json:"completed_at"`

	// DurationMS is total wall-clock time in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	// Jobs records the outcome of every planned job (including
	// skipped ones), in completion order for executed jobs followed
	// by skipped jobs in plan order.
	Jobs []JobRecord `json:"jobs"`

	// FailedJob is the ID (with matrix label, when applicable) of the
	// first job that caused the failure. Empty on success.
	FailedJob string `json:"failed_job,omitempty"`

	// ErrorMessage is the error text from the failing job. Empty on
	// success.
	ErrorMessage string `json:"error_message,omitempty"`
}

// TriggerInfo describes the event that started a run.
type TriggerInfo struct {
	// Type is the event type name: push, pull_request,
	// workflow_dispatch, or schedule.
	Type string `json:"type"`

	// Branch is the branch context for push and pull_request events.
	Branch string `json:"branch,omitempty"`

	// Inputs holds the resolved dispatch inputs for
	// workflow_dispatch events.
	Inputs map[string]string `json:"inputs,omitempty"`
}

// JobRecord records the outcome of one job execution (one matrix
// combination when the job has a matrix).
type JobRecord struct {
	// JobID is the job's ID from the workflow definition.
	JobID string `json:"job_id"`

	// Name is the job's display name.
	Name string `json:"name"`

	// MatrixLabel identifies the matrix combination (e.g.
	// "nightly, all"). Empty for non-matrix jobs.
	MatrixLabel string `json:"matrix_label,omitempty"`

	// Conclusion is the job outcome.
	Conclusion Conclusion `json:"conclusion"`

	// AllowedFailure means the job failed but was marked
	// continue-on-error, so the failure did not gate the run.
	AllowedFailure bool `json:"allowed_failure,omitempty"`

	// Reason explains a skipped conclusion (unmet need, guard,
	// platform mismatch).
	Reason string `json:"reason,omitempty"`

	// DurationMS is the job's wall-clock time in milliseconds. Zero
	// for skipped jobs.
	DurationMS int64 `json:"duration_ms"`

	// Steps records the outcome of each step that executed, in
	// execution order. Steps never reached are not included.
	Steps []StepRecord `json:"steps,omitempty"`

	// Outputs holds the job's resolved output values. Only populated
	// on success.
	Outputs map[string]string `json:"outputs,omitempty"`

	// Artifacts lists the artifacts captured after the job succeeded.
	Artifacts []JobArtifact `json:"artifacts,omitempty"`

	// Error is the error message when the job failed. Empty
	// otherwise.
	Error string `json:"error,omitempty"`
}

// StepRecord records the outcome of a single step.
type StepRecord struct {
	// Name is the step's display name.
	Name string `json:"name"`

	// Status is the step outcome.
	Status StepStatus `json:"status"`

	// DurationMS is the step's wall-clock time in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	// ExitCode is the command's exit code for failed run steps.
	ExitCode int `json:"exit_code,omitempty"`

	// Error is the error message when the step failed or was
	// cancelled. Empty for ok and skipped steps.
	Error string `json:"error,omitempty"`

	// Outputs holds the values the step wrote to its outputs file.
	// Only populated for ok steps.
	Outputs map[string]string `json:"outputs,omitempty"`
}

// JobArtifact describes one captured artifact.
type JobArtifact struct {
	// Name is the artifact's name: the capture path relative to the
	// workspace root.
	Name string `json:"name"`

	// Ref is the content-addressed store reference (art- prefix).
	Ref string `json:"ref"`

	// SizeBytes is the artifact's uncompressed size.
	SizeBytes int64 `json:"size_bytes"`
}

// Key returns the record's run-unique job key: the job ID alone, or
// with the matrix label appended when the job was expanded. Matches
// the format FailedJob uses.
func (j *JobRecord) Key() string {
	if j.MatrixLabel == "" {
		return j.JobID
	}
	return j.JobID + " (" + j.MatrixLabel + ")"
}

// Validate checks that all required fields are present and
// well-formed. Returns an error describing the first invalid field
// found, or nil if the record is valid.
func (r *RunRecord) Validate() error {
	if r.Version < 1 {
		return fmt.Errorf("run record: version must be >= 1, got %d", r.Version)
	}
	if r.RunID == "" {
		return errors.New("run record: run_id is required")
	}
	if r.Workflow == "" {
		return errors.New("run record: workflow is required")
	}
	switch r.Trigger.Type {
	case EventPush, EventPullRequest, EventWorkflowDispatch, EventSchedule:
		// Valid.
	case "":
		return errors.New("run record: trigger.type is required")
	default:
		return fmt.Errorf("run record: unknown trigger type %q", r.Trigger.Type)
	}
	switch r.Conclusion {
	case ConclusionSuccess, ConclusionFailure, ConclusionCancelled:
		// Valid.
	case "":
		return errors.New("run record: conclusion is required")
	default:
		return fmt.Errorf("run record: unknown conclusion %q", r.Conclusion)
	}
	if r.StartedAt == "" {
		return errors.New("run record: started_at is required")
	}
	if r.CompletedAt == "" {
		return errors.New("run record: completed_at is required")
	}
	if len(r.Jobs) == 0 {
		return errors.New("run record: at least one job record is required")
	}
	for i := range r.Jobs {
		if err := r.Jobs[i].Validate(); err != nil {
			return fmt.Errorf("run record: jobs[%d]: %w", i, err)
		}
	}
	return nil
}

// CanModify checks whether this code version can safely perform a
// read-modify-write cycle on a stored record. Returns nil if safe, or
// an error explaining why modification would risk data loss.
func (r *RunRecord) CanModify() error {
	if r.Version > RunRecordVersion {
		return fmt.Errorf(
			"run record version %d exceeds supported version %d: "+
				"modification would lose fields added in newer versions; "+
				"upgrade greenlight before modifying this record",
			r.Version, RunRecordVersion,
		)
	}
	return nil
}

// Validate checks that the job record has valid required fields.
func (j *JobRecord) Validate() error {
	if j.JobID == "" {
		return errors.New("job record: job_id is required")
	}
	switch j.Conclusion {
	case ConclusionSuccess, ConclusionFailure, ConclusionCancelled, ConclusionSkipped:
		// Valid.
	case "":
		return errors.New("job record: conclusion is required")
	default:
		return fmt.Errorf("job record: unknown conclusion %q", j.Conclusion)
	}
	for i := range j.Steps {
		if err := j.Steps[i].Validate(); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks that the step record has valid required fields.
func (s *StepRecord) Validate() error {
	if s.Name == "" {
		return errors.New("step record: name is required")
	}
	switch s.Status {
	case StepOK, StepFailed, StepFailedAllowed, StepSkipped, StepCancelled:
		// Valid.
	case "":
		return errors.New("step record: status is required")
	default:
		return fmt.Errorf("step record: unknown status %q", s.Status)
	}
	return nil
}
