// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package runlog writes the live result log: result.jsonl in the run
// directory. Each line is an independent JSON object, making the log:
//
//   - Crash-safe: a SIGKILL mid-run preserves every completed job and
//     step result. A single JSON file would be truncated and
//     unparseable.
//   - Streamable: another terminal can tail the file for step-by-step
//     progress instead of waiting for completion.
//
// The first line is always a "start" entry; "step" and "job" entries
// follow as work finishes; the last line is exactly one of "complete",
// "failed", or "cancelled". The complete final record (run.cbor) is
// written separately; this log exists for tailing and crash forensics.
package runlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// FileName is the result log's name inside a run directory.
const FileName = "result.jsonl"

// Log writes structured JSONL during run execution. All methods are
// nil-safe no-ops, so callers can thread a nil *Log when the live log
// is disabled. Safe for concurrent use: jobs finish in parallel and
// share one file.
type Log struct {
	logger  *slog.Logger
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// Create creates a JSONL result log at the given path, truncating any
// existing content. A nil logger discards write diagnostics.
func Create(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating result log %s: %w", path, err)
	}
	return &Log{
		logger:  logger,
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// Close flushes and closes the result log file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// WriteStart records run start. Always the first line.
func (l *Log) WriteStart(runID, workflowName, event string, jobCount int) {
	if l == nil {
		return
	}
	l.write(startEntry{
		Type:      "start",
		RunID:     runID,
		Workflow:  workflowName,
		Event:     event,
		JobCount:  jobCount,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteStep records the outcome of a single step within a job.
func (l *Log) WriteStep(jobID, matrixLabel string, index int, step *workflow.StepRecord) {
	if l == nil {
		return
	}
	l.write(stepEntry{
		Type:        "step",
		Job:         jobID,
		MatrixLabel: matrixLabel,
		Index:       index,
		Name:        step.Name,
		Status:      step.Status,
		DurationMS:  step.DurationMS,
		Error:       step.Error,
		Outputs:     step.Outputs,
	})
}

// WriteJob records the outcome of a finished job (one matrix
// combination when the job has a matrix).
func (l *Log) WriteJob(job *workflow.JobRecord) {
	if l == nil {
		return
	}
	l.write(jobEntry{
		Type:        "job",
		Job:         job.JobID,
		Name:        job.Name,
		MatrixLabel: job.MatrixLabel,
		Conclusion:  job.Conclusion,
		Reason:      job.Reason,
		DurationMS:  job.DurationMS,
		Error:       job.Error,
	})
}

// WriteComplete records successful run completion. Always the last
// line when the run succeeds.
func (l *Log) WriteComplete(durationMS int64) {
	if l == nil {
		return
	}
	l.write(completeEntry{
		Type:       "complete",
		Status:     "ok",
		DurationMS: durationMS,
	})
}

// WriteFailed records run failure. Always the last line when the run
// fails.
func (l *Log) WriteFailed(failedJob, errorMessage string, durationMS int64) {
	if l == nil {
		return
	}
	l.write(failedEntry{
		Type:       "failed",
		Status:     "failed",
		Error:      errorMessage,
		FailedJob:  failedJob,
		DurationMS: durationMS,
	})
}

// WriteCancelled records run cancellation (operator interrupt or
// watch-mode restart). Always the last line when the run is cancelled.
func (l *Log) WriteCancelled(reason string, durationMS int64) {
	if l == nil {
		return
	}
	l.write(cancelledEntry{
		Type:       "cancelled",
		Status:     "cancelled",
		Reason:     reason,
		DurationMS: durationMS,
	})
}

func (l *Log) write(entry any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.encoder.Encode(entry); err != nil {
		l.logger.Warn("failed to write result log entry", "error", err)
		return
	}
	// Sync after each line so that partial results survive a crash and
	// are visible to readers tailing the file immediately.
	if err := l.file.Sync(); err != nil {
		l.logger.Warn("failed to sync result log", "error", err)
	}
}

// JSONL entry types. Each struct documents exactly which fields appear
// in that line type. Separate structs (rather than one with omitempty
// everywhere) make the wire format explicit and self-documenting.

// startEntry is the first line, written at run start.
type startEntry struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Workflow  string `json:"workflow"`
	Event     string `json:"event"`
	JobCount  int    `json:"job_count"`
	Timestamp string `json:"timestamp"`
}

// stepEntry is written after each step completes (or is skipped).
type stepEntry struct {
	Type        string              `json:"type"`
	Job         string              `json:"job"`
	MatrixLabel string              `json:"matrix_label,omitempty"`
	Index       int                 `json:"index"`
	Name        string              `json:"name"`
	Status      workflow.StepStatus `json:"status"`
	DurationMS  int64               `json:"duration_ms"`
	Error       string              `json:"error,omitempty"`
	Outputs     map[string]string   `json:"outputs,omitempty"`
}

// jobEntry is written after each job finishes.
type jobEntry struct {
	Type        string              `json:"type"`
	Job         string              `json:"job"`
	Name        string              `json:"name"`
	MatrixLabel string              `json:"matrix_label,omitempty"`
	Conclusion  workflow.Conclusion `json:"conclusion"`
	Reason      string              `json:"reason,omitempty"`
	DurationMS  int64               `json:"duration_ms"`
	Error       string              `json:"error,omitempty"`
}

// completeEntry is the last line on successful run completion.
type completeEntry struct {
	Type       string `json:"type"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
}

// failedEntry is the last line when the run fails.
type failedEntry struct {
	Type       string `json:"type"`
	Status     string `json:"status"`
	Error      string `json:"error"`
	FailedJob  string `json:"failed_job"`
	DurationMS int64  `json:"duration_ms"`
}

// cancelledEntry is the last line when the run is cancelled.
type cancelledEntry struct {
	Type       string `json:"type"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
	DurationMS int64  `json:"duration_ms"`
}
