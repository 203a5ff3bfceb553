// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/greenlight-ci/greenlight/lib/event"
	"github.com/greenlight-ci/greenlight/lib/matrix"
	"github.com/greenlight-ci/greenlight/lib/runid"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
	"github.com/greenlight-ci/greenlight/lib/workflowdef"
)

// Platform mismatch and remote action policies.
const (
	PolicySkip = "skip"
	PolicyFail = "fail"
)

// ErrNoTrigger is returned by Plan when the workflow's triggers do not
// accept the event. The wrapped message carries the match reason.
var ErrNoTrigger = errors.New("workflow does not trigger on this event")

// PlanOptions control how a workflow and an event become a RunPlan.
type PlanOptions struct {
	// Event is the trigger to plan for. A zero Type plans a manual
	// workflow_dispatch; a zero At uses the planning time.
	Event event.Event

	// Job restricts the plan to one job ID plus its transitive needs.
	Job string

	// Matrix restricts matrix jobs to combinations whose values match
	// every given axis=value pair. Combinations lacking a filtered
	// axis pass through, so the filter never touches unrelated jobs.
	Matrix map[string]string

	// FailFast extends matrix fail-fast across the whole run: the
	// first failed job cancels everything still in flight.
	FailFast bool

	// PlatformMismatch is the policy when a job's runs-on labels name
	// a different OS family than the host: PolicySkip (default) plans
	// the job as skipped, PolicyFail rejects the plan.
	PlatformMismatch string

	// HostOS overrides runtime.GOOS for platform checks. Tests use
	// this; production code leaves it empty.
	HostOS string

	// Now is the planning timestamp used for run ID derivation and as
	// the default event time. Zero means time.Now().
	Now time.Time
}

// PlannedJob is one schedulable unit: a job, or one matrix combination
// of a job.
type PlannedJob struct {
	// Key uniquely identifies the unit within the plan: the job ID,
	// with the matrix label appended when the job expands.
	Key string

	// JobID is the job's ID in the workflow.
	JobID string

	// Job points into the plan's workflow.
	Job *workflow.Job

	// Combination holds the matrix values for this unit. Empty for
	// non-matrix jobs.
	Combination matrix.Combination

	// MatrixLabel is Combination.Label(), kept for records and
	// display.
	MatrixLabel string

	// Wave is the topological wave index: jobs in wave N depend only
	// on jobs in waves < N.
	Wave int

	// SkipReason marks a job pre-skipped at plan time (platform
	// mismatch under the skip policy). The scheduler records it
	// without executing anything.
	SkipReason string
}

// RunPlan is the executable product of planning: the run identity, the
// resolved event, and every planned job grouped into topological
// waves.
type RunPlan struct {
	RunID    string
	Workflow *workflow.Workflow

	// Event is the resolved trigger event: dispatch inputs have
	// defaults merged and required inputs verified.
	Event event.Event

	// FailFast cancels the whole run on the first failed job.
	FailFast bool

	// Jobs lists every planned job in wave order (declaration order
	// within a wave).
	Jobs []*PlannedJob

	// Waves groups Jobs by wave index. Jobs within a wave have no
	// needs edges between them and may run concurrently.
	Waves [][]*PlannedJob
}

// Plan resolves a workflow and an event into a RunPlan. It verifies
// the trigger match (ErrNoTrigger when the event does not fire the
// workflow), resolves dispatch inputs, expands matrices, applies the
// job and matrix filters, checks runs-on platform compatibility, and
// computes topological waves from the needs graph.
func Plan(wf *workflow.Workflow, opts PlanOptions) (*RunPlan, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	hostOS := opts.HostOS
	if hostOS == "" {
		hostOS = runtime.GOOS
	}
	policy := opts.PlatformMismatch
	if policy == "" {
		policy = PolicySkip
	}

	ev := opts.Event
	if ev.Type == "" {
		ev.Type = workflow.EventWorkflowDispatch
	}
	if ev.At.IsZero() {
		ev.At = now
	}
	if len(ev.Inputs) > 0 && ev.Type != workflow.EventWorkflowDispatch {
		return nil, fmt.Errorf("inputs are only valid for workflow_dispatch events, not %s", ev.Type)
	}

	decision, err := event.Match(wf, ev)
	if err != nil {
		return nil, err
	}
	if !decision.Matched {
		return nil, fmt.Errorf("%w: %s", ErrNoTrigger, decision.Reason)
	}
	if ev.Type == workflow.EventWorkflowDispatch {
		resolved, err := event.ResolveInputs(wf.On.WorkflowDispatch, ev.Inputs)
		if err != nil {
			return nil, err
		}
		ev.Inputs = resolved
	}

	// Topological order doubles as the cycle and unknown-needs check.
	order, err := workflowdef.ExecutionOrder(wf)
	if err != nil {
		return nil, err
	}

	selected, err := selectJobs(wf, order, opts.Job)
	if err != nil {
		return nil, err
	}

	runID, err := runid.New(wf.Name, ev.Type, now)
	if err != nil {
		return nil, fmt.Errorf("deriving run ID: %w", err)
	}

	plan := &RunPlan{
		RunID:    runID,
		Workflow: wf,
		Event:    ev,
		FailFast: opts.FailFast,
	}

	waves := make(map[string]int, len(order))
	planned := make(map[string]bool, len(order))
	for _, jobID := range order {
		if !selected[jobID] {
			continue
		}
		job := wf.Job(jobID)

		var skipReason string
		if mismatch := platformMismatch(job.RunsOn, hostOS); mismatch != "" {
			if policy == PolicyFail {
				return nil, fmt.Errorf("job %q: %s", jobID, mismatch)
			}
			skipReason = mismatch
		}

		var spec *workflow.MatrixSpec
		if job.Strategy != nil {
			spec = job.Strategy.Matrix
		}
		combos, err := matrix.Expand(spec)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", jobID, err)
		}
		combos = filterCombinations(combos, opts.Matrix)
		if len(combos) == 0 {
			// The matrix filter eliminated every combination; the job
			// drops out of the plan entirely.
			continue
		}

		wave := 0
		for _, need := range job.Needs {
			if !planned[need] {
				continue
			}
			if needWave := waves[need]; needWave+1 > wave {
				wave = needWave + 1
			}
		}
		waves[jobID] = wave
		planned[jobID] = true

		for _, combo := range combos {
			label := combo.Label()
			key := jobID
			if label != "" {
				key = jobID + " (" + label + ")"
			}
			plan.Jobs = append(plan.Jobs, &PlannedJob{
				Key:         key,
				JobID:       jobID,
				Job:         job,
				Combination: combo,
				MatrixLabel: label,
				Wave:        wave,
				SkipReason:  skipReason,
			})
		}
	}

	if len(plan.Jobs) == 0 {
		return nil, errors.New("no jobs to run after applying filters")
	}

	maxWave := 0
	for _, planned := range plan.Jobs {
		if planned.Wave > maxWave {
			maxWave = planned.Wave
		}
	}
	plan.Waves = make([][]*PlannedJob, maxWave+1)
	for _, planned := range plan.Jobs {
		plan.Waves[planned.Wave] = append(plan.Waves[planned.Wave], planned)
	}

	return plan, nil
}

// selectJobs returns the set of job IDs the plan covers: all of them,
// or — when jobFilter is set — that job plus its transitive needs.
func selectJobs(wf *workflow.Workflow, order []string, jobFilter string) (map[string]bool, error) {
	selected := make(map[string]bool, len(order))
	if jobFilter == "" {
		for _, jobID := range order {
			selected[jobID] = true
		}
		return selected, nil
	}

	if wf.Job(jobFilter) == nil {
		known := strings.Join(order, ", ")
		return nil, fmt.Errorf("unknown job %q (workflow has: %s)", jobFilter, known)
	}

	// Walk needs edges from the filter root. Needs run because the
	// selected job's gating depends on their outcomes.
	queue := []string{jobFilter}
	for len(queue) > 0 {
		jobID := queue[0]
		queue = queue[1:]
		if selected[jobID] {
			continue
		}
		selected[jobID] = true
		queue = append(queue, wf.Job(jobID).Needs...)
	}
	return selected, nil
}

// filterCombinations keeps combinations compatible with the axis=value
// filter. A combination passes when every filtered axis it carries has
// the requested value; axes the combination lacks do not disqualify
// it.
func filterCombinations(combos []matrix.Combination, filter map[string]string) []matrix.Combination {
	if len(filter) == 0 {
		return combos
	}
	var kept []matrix.Combination
	for _, combo := range combos {
		match := true
		for axis, want := range filter {
			if got, present := combo.Values[axis]; present && got != want {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, combo)
		}
	}
	return kept
}

// platformMismatch reports why the host cannot satisfy the runs-on
// labels, or "" when it can. Labels map to OS families (ubuntu-* and
// linux to linux, macos-* to darwin, windows-* to windows);
// self-hosted and unrecognized labels are capabilities, not platform
// constraints.
func platformMismatch(labels []string, hostOS string) string {
	families := make(map[string]bool)
	for _, label := range labels {
		if family := platformFamily(label); family != "" {
			families[family] = true
		}
	}
	if len(families) == 0 || families[hostOS] {
		return ""
	}
	names := make([]string, 0, len(families))
	for family := range families {
		names = append(names, family)
	}
	sort.Strings(names)
	return fmt.Sprintf("runs-on [%s] requires %s, host is %s",
		strings.Join(labels, ", "), strings.Join(names, " or "), hostOS)
}

func platformFamily(label string) string {
	lower := strings.ToLower(label)
	switch {
	case lower == "self-hosted":
		return ""
	case lower == "linux" || strings.HasPrefix(lower, "ubuntu-") || strings.HasPrefix(lower, "debian-"):
		return "linux"
	case lower == "darwin" || lower == "osx" || lower == "macos" || strings.HasPrefix(lower, "macos-"):
		return "darwin"
	case lower == "windows" || strings.HasPrefix(lower, "windows-"):
		return "windows"
	default:
		return ""
	}
}
