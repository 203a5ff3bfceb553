// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import "time"

// EventKind identifies a run progress event.
type EventKind string

// Run progress event kinds, in rough lifecycle order.
const (
	// RunStarted opens the stream: run ID, workflow, and planned job
	// count are set.
	RunStarted EventKind = "run_started"

	// JobStarted marks a job (one matrix combination) beginning
	// execution.
	JobStarted EventKind = "job_started"

	// StepStarted marks a step beginning execution. StepIndex is
	// 1-based; StepCount is the job's step total.
	StepStarted EventKind = "step_started"

	// LogLine carries one line of step output. Stream is "stdout" or
	// "stderr"; secret values are already masked.
	LogLine EventKind = "log_line"

	// StepFinished carries the step's status and duration.
	StepFinished EventKind = "step_finished"

	// JobFinished carries the job's conclusion, duration, and (for
	// skips) the reason.
	JobFinished EventKind = "job_finished"

	// Notice carries an informational message tied to a job or step,
	// such as a remote action being skipped by policy.
	Notice EventKind = "notice"

	// RunFinished closes the stream: the run's conclusion and total
	// duration are set. The engine closes the channel right after.
	RunFinished EventKind = "run_finished"
)

// RunEvent is one entry in the engine's progress stream. Fields beyond
// Kind and Time are populated per kind; zero values mean not
// applicable.
type RunEvent struct {
	Kind EventKind `json:"kind"`
	Time time.Time `json:"time"`

	// Run identity (run_started, run_finished).
	RunID    string `json:"run_id,omitempty"`
	Workflow string `json:"workflow,omitempty"`
	JobCount int    `json:"job_count,omitempty"`

	// Job identity: JobKey is the unique per-plan key (job ID plus
	// matrix label when expanded), JobName the display name.
	JobKey  string `json:"job,omitempty"`
	JobName string `json:"job_name,omitempty"`

	// Step identity.
	StepIndex int    `json:"step_index,omitempty"`
	StepCount int    `json:"step_count,omitempty"`
	StepName  string `json:"step_name,omitempty"`

	// Outcome: a StepStatus for step_finished, a Conclusion for
	// job_finished and run_finished.
	Status string `json:"status,omitempty"`

	// Reason explains skips and cancellations.
	Reason string `json:"reason,omitempty"`

	// Output line content (log_line) and its source stream.
	Stream string `json:"stream,omitempty"`
	Line   string `json:"line,omitempty"`

	// Message carries notice text.
	Message string `json:"message,omitempty"`

	DurationMS int64 `json:"duration_ms,omitempty"`
}
