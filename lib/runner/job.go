// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/greenlight-ci/greenlight/lib/expand"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
	"github.com/greenlight-ci/greenlight/lib/secrets"
)

// jobRunner executes one planned job: one matrix combination's step
// sequence, log capture, outputs, and artifacts.
type jobRunner struct {
	engine  *Engine
	plan    *RunPlan
	planned *PlannedJob
	scope   expand.Scope
	masker  *secrets.Masker
	logDir  string

	// logMu serializes writes to the active step's log file. Stdout
	// and stderr stream concurrently from the child process.
	logMu sync.Mutex
}

// runJob executes one planned job to completion and returns its
// record. Cancellation of ctx marks in-flight work cancelled; the
// function itself always returns a record, never an error.
func (e *Engine) runJob(ctx context.Context, plan *RunPlan, planned *PlannedJob, runDir string, needsOutputs map[string]map[string]string, secretValues map[string]string, masker *secrets.Masker) *workflow.JobRecord {
	job := planned.Job
	record := &workflow.JobRecord{
		JobID:       planned.JobID,
		Name:        job.DisplayName(),
		MatrixLabel: planned.MatrixLabel,
	}
	started := time.Now()

	r := &jobRunner{
		engine:  e,
		plan:    plan,
		planned: planned,
		scope:   jobScope(plan, planned, e.config.Workspace, needsOutputs, secretValues),
		masker:  masker,
		logDir:  JobLogDir(runDir, planned.Key),
	}
	r.emit(RunEvent{Kind: JobStarted, StepCount: len(job.Steps)})

	finish := func() *workflow.JobRecord {
		record.DurationMS = time.Since(started).Milliseconds()
		if record.Conclusion == workflow.ConclusionFailure && job.ContinueOnError {
			record.AllowedFailure = true
		}
		e.log.WriteJob(record)
		r.emit(RunEvent{
			Kind:       JobFinished,
			Status:     string(record.Conclusion),
			Reason:     record.Reason,
			DurationMS: record.DurationMS,
		})
		return record
	}

	if err := os.MkdirAll(r.logDir, 0o755); err != nil {
		record.Conclusion = workflow.ConclusionFailure
		record.Error = fmt.Sprintf("creating log directory: %v", err)
		return finish()
	}

	// Job-level guard: a non-zero exit skips the whole job without
	// failing it.
	if job.When != "" {
		skipped, err := r.runJobGuard(ctx, job)
		if err != nil {
			if ctx.Err() != nil {
				record.Conclusion = workflow.ConclusionCancelled
			} else {
				record.Conclusion = workflow.ConclusionFailure
				record.Error = fmt.Sprintf("when guard: %v", err)
			}
			return finish()
		}
		if skipped {
			record.Conclusion = workflow.ConclusionSkipped
			record.Reason = "guard condition not met"
			return finish()
		}
	}

	for index := range job.Steps {
		step := job.Steps[index]
		r.emit(RunEvent{
			Kind:      StepStarted,
			StepIndex: index + 1,
			StepCount: len(job.Steps),
			StepName:  step.DisplayName(),
		})

		stepRecord := r.executeStep(ctx, step, index)
		record.Steps = append(record.Steps, stepRecord)
		e.log.WriteStep(planned.JobID, planned.MatrixLabel, index, &stepRecord)
		r.emit(RunEvent{
			Kind:       StepFinished,
			StepIndex:  index + 1,
			StepCount:  len(job.Steps),
			StepName:   stepRecord.Name,
			Status:     string(stepRecord.Status),
			DurationMS: stepRecord.DurationMS,
		})

		overlayStepOutputs(r.scope, step.ID, stepRecord.Outputs)

		switch stepRecord.Status {
		case workflow.StepFailed:
			record.Conclusion = workflow.ConclusionFailure
			record.Error = stepRecord.Error
			return finish()
		case workflow.StepCancelled:
			record.Conclusion = workflow.ConclusionCancelled
			return finish()
		}
	}

	// Job outputs resolve against the final scope, so they can see
	// every step's OUTPUT_ variables.
	if len(job.Outputs) > 0 {
		outputs, err := expand.ExpandMap(job.Outputs, r.scope)
		if err != nil {
			record.Conclusion = workflow.ConclusionFailure
			record.Error = fmt.Sprintf("resolving job outputs: %v", err)
			return finish()
		}
		record.Outputs = outputs
	}

	if len(job.Artifacts) > 0 {
		artifacts, err := e.captureArtifacts(job.Artifacts, planned.Key, r.notice)
		if err != nil {
			record.Conclusion = workflow.ConclusionFailure
			record.Error = fmt.Sprintf("capturing artifacts: %v", err)
			return finish()
		}
		record.Artifacts = artifacts
	}

	record.Conclusion = workflow.ConclusionSuccess
	return finish()
}

// runJobGuard evaluates the job-level when command with the job's
// resolved environment. Returns true when the guard's non-zero exit
// skips the job.
func (r *jobRunner) runJobGuard(ctx context.Context, job *workflow.Job) (bool, error) {
	guard, err := expand.Expand(job.When, r.scope)
	if err != nil {
		return false, err
	}

	logFile, err := os.Create(filepath.Join(r.logDir, "00-when-guard.log"))
	if err != nil {
		return false, fmt.Errorf("creating guard log: %w", err)
	}
	defer logFile.Close()
	stdout := r.newLineWriter(logFile, "stdout", "when guard", -1)
	stderr := r.newLineWriter(logFile, "stderr", "when guard", -1)
	defer stdout.Flush()
	defer stderr.Flush()

	timeout := r.engine.config.DefaultTimeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	if job.Timeout > 0 {
		timeout = time.Duration(job.Timeout) * time.Minute
	}
	guardContext, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exitCode, err := runShell(guardContext, r.stepShell(&workflow.Step{}), guard, r.engine.config.Workspace, processEnv(r.scope), 0, stdout, stderr)
	if err != nil {
		return false, err
	}
	return exitCode != 0, nil
}

// emit fills the job identity fields and forwards the event to the
// engine's channel.
func (r *jobRunner) emit(ev RunEvent) {
	ev.JobKey = r.planned.Key
	ev.JobName = r.planned.Job.DisplayName()
	r.engine.emitRun(r.plan, ev)
}

func (r *jobRunner) notice(message string) {
	r.emit(RunEvent{Kind: Notice, Message: message})
}
