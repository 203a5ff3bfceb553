// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/greenlight-ci/greenlight/lib/artifactstore"
	"github.com/greenlight-ci/greenlight/lib/history"
	"github.com/greenlight-ci/greenlight/lib/runlog"
	"github.com/greenlight-ci/greenlight/lib/runstate"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
	"github.com/greenlight-ci/greenlight/lib/secrets"
)

// SecretSource provides values for the secret names jobs declare.
// *secrets.Store satisfies it.
type SecretSource interface {
	Read(names []string) (map[string]string, error)
}

// Config configures an Engine.
type Config struct {
	// Workspace is the project root where steps execute.
	Workspace string

	// RunsDir is where the run directory (logs, result log, record,
	// artifact index) is created.
	RunsDir string

	// DefaultShell is the interpreter for run steps that do not pick
	// one. Empty means "sh".
	DefaultShell string

	// DefaultTimeout bounds a step when neither the step nor its job
	// sets a timeout. Zero means five minutes.
	DefaultTimeout time.Duration

	// MaxParallelJobs caps concurrently executing jobs across the
	// run. Zero means the host CPU count.
	MaxParallelJobs int

	// RemoteActions is the policy for remote uses references:
	// PolicySkip (default) or PolicyFail.
	RemoteActions string

	// Secrets yields declared secret values. May be nil when no
	// planned job declares secrets.
	Secrets SecretSource

	// Artifacts stores captured artifact blobs. May be nil when no
	// planned job declares artifacts.
	Artifacts *artifactstore.Store

	// History records the completed run. Nil disables history.
	History *history.Store

	// Events receives progress events. The engine closes the channel
	// after RunFinished; consumers must drain it. Nil disables
	// events.
	Events chan<- RunEvent

	// Logger receives engine diagnostics.
	Logger *slog.Logger
}

// Engine executes one RunPlan. Engines are single-use: create a fresh
// one for every Execute call.
type Engine struct {
	config Config
	log    *runlog.Log

	indexMu      sync.Mutex
	indexEntries []artifactstore.IndexEntry

	completedMu sync.Mutex
	completed   []*workflow.JobRecord

	closeOnce sync.Once
	stopOnce  sync.Once
}

// New returns an engine for one run.
func New(config Config) *Engine {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Engine{config: config}
}

// Execute runs the plan to completion and returns the run record. The
// record's conclusion expresses job failures; the returned error is
// reserved for infrastructure faults (run directory, secret store,
// record persistence). Cancelling ctx cancels in-flight jobs and
// concludes the run cancelled.
func (e *Engine) Execute(ctx context.Context, plan *RunPlan) (*workflow.RunRecord, error) {
	defer e.closeEvents()

	startedAt := time.Now()
	runDir := filepath.Join(e.config.RunsDir, plan.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	// Secrets resolve before anything executes: a missing secret
	// fails the run while it is still free to fail.
	secretValues, masker, err := e.resolveSecrets(plan)
	if err != nil {
		return nil, err
	}

	if err := runstate.Write(runDir, runstate.State{
		RunID:     plan.RunID,
		Workflow:  plan.Workflow.Name,
		PID:       os.Getpid(),
		StartedAt: startedAt,
	}); err != nil {
		return nil, err
	}

	log, err := runlog.Create(filepath.Join(runDir, runlog.FileName), e.config.Logger)
	if err != nil {
		return nil, err
	}
	e.log = log
	defer log.Close()

	log.WriteStart(plan.RunID, plan.Workflow.Name, plan.Event.Type, len(plan.Jobs))
	e.emitRun(plan, RunEvent{Kind: RunStarted, JobCount: len(plan.Jobs)})

	skipped := e.schedule(ctx, plan, runDir, secretValues, masker)

	duration := time.Since(startedAt)
	record := e.assembleRecord(plan, startedAt, duration, skipped)

	switch record.Conclusion {
	case workflow.ConclusionFailure:
		log.WriteFailed(record.FailedJob, record.ErrorMessage, record.DurationMS)
	case workflow.ConclusionCancelled:
		log.WriteCancelled("interrupted", record.DurationMS)
	default:
		log.WriteComplete(record.DurationMS)
	}

	if err := WriteRecord(runDir, record); err != nil {
		return record, err
	}
	if err := e.writeArtifactIndex(runDir, plan.RunID); err != nil {
		return record, err
	}
	if err := runstate.Clear(runDir); err != nil {
		return record, err
	}

	// History is derived state rebuilt from run records; its failure
	// must not mask a finished run.
	if e.config.History != nil {
		if err := e.config.History.Record(ctx, record); err != nil {
			e.config.Logger.Warn("recording run in history", "run_id", plan.RunID, "error", err)
		}
	}

	e.emitRun(plan, RunEvent{
		Kind:       RunFinished,
		Status:     string(record.Conclusion),
		DurationMS: record.DurationMS,
	})
	return record, nil
}

// schedule executes the plan's waves and returns the records of jobs
// that never started (pre-skips and needs-blocked skips) in plan
// order. Executed and cancelled jobs land in e.completed in
// completion order.
func (e *Engine) schedule(ctx context.Context, plan *RunPlan, runDir string, secretValues map[string]string, masker *secrets.Masker) []*workflow.JobRecord {
	runContext, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	maxJobs := e.config.MaxParallelJobs
	if maxJobs <= 0 {
		maxJobs = runtime.NumCPU()
	}
	runSlots := semaphore.NewWeighted(int64(maxJobs))

	// Per-job matrix machinery: a shared cancel context for fail-fast
	// and a slot semaphore for max-parallel. Only multi-combination
	// jobs need either.
	combosByJob := make(map[string]int)
	for _, planned := range plan.Jobs {
		combosByJob[planned.JobID]++
	}
	matrixContexts := make(map[string]context.Context)
	matrixCancels := make(map[string]context.CancelFunc)
	matrixSlots := make(map[string]*semaphore.Weighted)
	for jobID, combos := range combosByJob {
		if combos < 2 {
			continue
		}
		job := plan.Workflow.Job(jobID)
		if job.Strategy.FailFastEnabled() {
			matrixContext, cancel := context.WithCancel(runContext)
			matrixContexts[jobID] = matrixContext
			matrixCancels[jobID] = cancel
		}
		if job.Strategy != nil && job.Strategy.MaxParallel > 0 {
			matrixSlots[jobID] = semaphore.NewWeighted(int64(job.Strategy.MaxParallel))
		}
	}
	defer func() {
		for _, cancel := range matrixCancels {
			cancel()
		}
	}()

	// Gating state, written only between waves.
	conclusionByJob := make(map[string]workflow.Conclusion)
	needsOutputs := make(map[string]map[string]string)

	var skipped []*workflow.JobRecord
	for _, wave := range plan.Waves {
		records := make([]*workflow.JobRecord, len(wave))
		var group errgroup.Group

		for i, planned := range wave {
			if planned.SkipReason != "" {
				records[i] = e.finishUnstarted(plan, planned, workflow.ConclusionSkipped, planned.SkipReason)
				skipped = append(skipped, records[i])
				continue
			}
			if reason := needBlocked(planned.Job, conclusionByJob); reason != "" {
				records[i] = e.finishUnstarted(plan, planned, workflow.ConclusionSkipped, reason)
				skipped = append(skipped, records[i])
				continue
			}
			if runContext.Err() != nil {
				records[i] = e.finishUnstarted(plan, planned, workflow.ConclusionCancelled, "")
				e.appendCompleted(records[i])
				continue
			}

			jobContext := runContext
			if matrixContext, ok := matrixContexts[planned.JobID]; ok {
				jobContext = matrixContext
			}

			group.Go(func() error {
				if err := runSlots.Acquire(jobContext, 1); err != nil {
					records[i] = e.finishUnstarted(plan, planned, workflow.ConclusionCancelled, "")
					e.appendCompleted(records[i])
					return nil
				}
				defer runSlots.Release(1)
				if slots := matrixSlots[planned.JobID]; slots != nil {
					if err := slots.Acquire(jobContext, 1); err != nil {
						records[i] = e.finishUnstarted(plan, planned, workflow.ConclusionCancelled, "")
						e.appendCompleted(records[i])
						return nil
					}
					defer slots.Release(1)
				}

				record := e.runJob(jobContext, plan, planned, runDir, needsOutputs, secretValues, masker)
				records[i] = record
				e.appendCompleted(record)

				if record.Conclusion == workflow.ConclusionFailure && !record.AllowedFailure {
					if cancel, ok := matrixCancels[planned.JobID]; ok {
						cancel()
					}
					if plan.FailFast {
						e.stopOnce.Do(cancelRun)
					}
				}
				return nil
			})
		}
		group.Wait()

		aggregateWave(wave, records, conclusionByJob, needsOutputs)
	}
	return skipped
}

// aggregateWave folds a wave's per-combination records into the
// per-job gating state. A job gates as failed when any combination
// failed without allowance, as cancelled when any was cancelled, as
// skipped when every combination skipped, and as success otherwise.
// Outputs merge across combinations in plan order, later wins.
func aggregateWave(wave []*PlannedJob, records []*workflow.JobRecord, conclusionByJob map[string]workflow.Conclusion, needsOutputs map[string]map[string]string) {
	for i, planned := range wave {
		record := records[i]
		if record == nil {
			continue
		}

		effective := record.Conclusion
		if effective == workflow.ConclusionFailure && record.AllowedFailure {
			effective = workflow.ConclusionSuccess
		}

		current, seen := conclusionByJob[planned.JobID]
		switch {
		case !seen:
			conclusionByJob[planned.JobID] = effective
		case current == workflow.ConclusionFailure || effective == workflow.ConclusionFailure:
			conclusionByJob[planned.JobID] = workflow.ConclusionFailure
		case current == workflow.ConclusionCancelled || effective == workflow.ConclusionCancelled:
			conclusionByJob[planned.JobID] = workflow.ConclusionCancelled
		case effective == workflow.ConclusionSuccess:
			conclusionByJob[planned.JobID] = workflow.ConclusionSuccess
		}

		if len(record.Outputs) > 0 {
			merged := needsOutputs[planned.JobID]
			if merged == nil {
				merged = make(map[string]string, len(record.Outputs))
				needsOutputs[planned.JobID] = merged
			}
			for name, value := range record.Outputs {
				merged[name] = value
			}
		}
	}
}

// needBlocked reports why a job's needs prevent it from running, or
// "" when every need is satisfied. A need is satisfied by success
// (allowed failures count); an absent need was dropped from the plan
// by the matrix filter.
func needBlocked(job *workflow.Job, conclusionByJob map[string]workflow.Conclusion) string {
	for _, need := range job.Needs {
		switch conclusionByJob[need] {
		case workflow.ConclusionSuccess:
		case workflow.ConclusionFailure:
			return fmt.Sprintf("needed job %q failed", need)
		case workflow.ConclusionCancelled:
			return fmt.Sprintf("needed job %q was cancelled", need)
		case workflow.ConclusionSkipped:
			return fmt.Sprintf("needed job %q was skipped", need)
		default:
			return fmt.Sprintf("needed job %q was not planned", need)
		}
	}
	return ""
}

// resolveSecrets reads the union of the plan's declared secret names
// and builds the log masker. Jobs see only the names they declare;
// the masker covers everything so no captured line leaks a value.
func (e *Engine) resolveSecrets(plan *RunPlan) (map[string]string, *secrets.Masker, error) {
	nameSet := make(map[string]bool)
	for _, planned := range plan.Jobs {
		for _, name := range planned.Job.Secrets {
			nameSet[name] = true
		}
	}
	if len(nameSet) == 0 {
		return nil, nil, nil
	}
	if e.config.Secrets == nil {
		return nil, nil, fmt.Errorf("workflow declares secrets but no secret store is configured (run \"greenlight secrets init\")")
	}

	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	values, err := e.config.Secrets.Read(names)
	if err != nil {
		return nil, nil, err
	}
	return values, secrets.NewMasker(values), nil
}

// assembleRecord builds the final run record: executed jobs in
// completion order, then skipped jobs in plan order. The first
// non-allowed failure in completion order names the run's FailedJob.
func (e *Engine) assembleRecord(plan *RunPlan, startedAt time.Time, duration time.Duration, skipped []*workflow.JobRecord) *workflow.RunRecord {
	e.completedMu.Lock()
	ordered := make([]*workflow.JobRecord, len(e.completed))
	copy(ordered, e.completed)
	e.completedMu.Unlock()
	ordered = append(ordered, skipped...)

	record := &workflow.RunRecord{
		Version:     workflow.RunRecordVersion,
		RunID:       plan.RunID,
		Workflow:    plan.Workflow.Name,
		Trigger:     plan.Event.TriggerInfo(),
		Conclusion:  workflow.ConclusionSuccess,
		StartedAt:   startedAt.UTC().Format(time.RFC3339),
		CompletedAt: startedAt.Add(duration).UTC().Format(time.RFC3339),
		DurationMS:  duration.Milliseconds(),
	}

	record.Jobs = make([]workflow.JobRecord, len(ordered))
	for i, job := range ordered {
		record.Jobs[i] = *job
	}

	for _, job := range ordered {
		if job.Conclusion == workflow.ConclusionFailure && !job.AllowedFailure {
			record.Conclusion = workflow.ConclusionFailure
			record.FailedJob = job.Key()
			record.ErrorMessage = job.Error
			break
		}
	}
	if record.Conclusion == workflow.ConclusionSuccess {
		for _, job := range ordered {
			if job.Conclusion == workflow.ConclusionCancelled {
				record.Conclusion = workflow.ConclusionCancelled
				break
			}
		}
	}
	return record
}

// finishUnstarted records a job that never executed: pre-skipped,
// blocked by a need, or cancelled before its first step.
func (e *Engine) finishUnstarted(plan *RunPlan, planned *PlannedJob, conclusion workflow.Conclusion, reason string) *workflow.JobRecord {
	record := &workflow.JobRecord{
		JobID:       planned.JobID,
		Name:        planned.Job.DisplayName(),
		MatrixLabel: planned.MatrixLabel,
		Conclusion:  conclusion,
		Reason:      reason,
	}
	e.log.WriteJob(record)
	e.emitRun(plan, RunEvent{
		Kind:    JobFinished,
		JobKey:  planned.Key,
		JobName: planned.Job.DisplayName(),
		Status:  string(conclusion),
		Reason:  reason,
	})
	return record
}

func (e *Engine) appendCompleted(record *workflow.JobRecord) {
	e.completedMu.Lock()
	e.completed = append(e.completed, record)
	e.completedMu.Unlock()
}

// emitRun stamps the run identity and time and delivers the event.
func (e *Engine) emitRun(plan *RunPlan, ev RunEvent) {
	if e.config.Events == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	ev.RunID = plan.RunID
	ev.Workflow = plan.Workflow.Name
	e.config.Events <- ev
}

func (e *Engine) closeEvents() {
	if e.config.Events == nil {
		return
	}
	e.closeOnce.Do(func() { close(e.config.Events) })
}
