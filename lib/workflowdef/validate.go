// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflowdef

import (
	"fmt"
	"regexp"
	"time"

	"github.com/greenlight-ci/greenlight/lib/cronspec"
	"github.com/greenlight-ci/greenlight/lib/event"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// identifierPattern matches job IDs, step IDs, matrix axis names, and
// secret names: start with a letter or underscore, followed by
// letters, digits, underscores, or dashes. Anchored to the full
// string.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// outputNamePattern matches output and input names. Same character
// set as variable names (dashes excluded, since these names embed
// into ${OUTPUT_...} and ${INPUT_...} variable references).
var outputNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks a Workflow for structural issues. Returns a list of
// human-readable issue descriptions. An empty list means the workflow
// is valid.
//
// Structural checks include:
//   - At least one trigger and at least one job are required
//   - Schedule cron expressions must parse
//   - Dispatch input names must be valid identifiers
//   - Job IDs must be valid identifiers; runs-on must be non-empty
//   - Needs must reference declared jobs, never the job itself, and
//     the needs graph must be acyclic
//   - Each step must set exactly one of run or uses; uses-only and
//     run-only fields are rejected on the wrong kind
//   - Step IDs must be unique within a job
//   - Matrix axes, outputs, secrets, and timeouts must be well-formed
func Validate(wf *workflow.Workflow) []string {
	var issues []string

	if wf.On.Empty() {
		issues = append(issues, "workflow has no triggers (declare at least one event under \"on\")")
	}
	issues = append(issues, validateTriggers(wf.On)...)

	if len(wf.Jobs) == 0 {
		issues = append(issues, "workflow has no jobs (at least one job is required)")
	}

	needsResolved := true
	for i := range wf.Jobs {
		issues = append(issues, validateJob(&wf.Jobs[i], wf)...)
		for _, need := range wf.Jobs[i].Needs {
			if need == wf.Jobs[i].ID || wf.Job(need) == nil {
				needsResolved = false
			}
		}
	}

	// Cycles are reported here rather than at plan time so greenlight
	// validate catches them without constructing a run. Only checked
	// once every needs reference resolves, so a graph error is always
	// a genuine cycle rather than a duplicate of the per-job issues.
	if needsResolved {
		if _, err := JobGraph(wf); err != nil {
			issues = append(issues, err.Error())
		}
	}

	return issues
}

func validateTriggers(triggers workflow.Triggers) []string {
	var issues []string

	if triggers.Push != nil {
		issues = append(issues, filterIssues("on.push.branches", triggers.Push.Branches)...)
		issues = append(issues, filterIssues("on.push.tags", triggers.Push.Tags)...)
		issues = append(issues, filterIssues("on.push.paths", triggers.Push.Paths)...)
	}
	if triggers.PullRequest != nil {
		issues = append(issues, filterIssues("on.pull_request.branches", triggers.PullRequest.Branches)...)
		issues = append(issues, filterIssues("on.pull_request.paths", triggers.PullRequest.Paths)...)
	}

	for index, entry := range triggers.Schedule {
		if entry.Cron == "" {
			issues = append(issues, fmt.Sprintf("on.schedule[%d]: cron is required", index))
			continue
		}
		if _, err := cronspec.Parse(entry.Cron); err != nil {
			issues = append(issues, fmt.Sprintf("on.schedule[%d]: %v", index, err))
		}
	}

	if triggers.WorkflowDispatch != nil {
		for name := range triggers.WorkflowDispatch.Inputs {
			if !outputNamePattern.MatchString(name) {
				issues = append(issues, fmt.Sprintf(
					"on.workflow_dispatch.inputs[%q]: input name must be a valid identifier ([A-Za-z_][A-Za-z0-9_]*)",
					name,
				))
			}
		}
	}

	return issues
}

func filterIssues(context string, filters []string) []string {
	var issues []string
	for _, issue := range event.ValidateFilters(filters) {
		issues = append(issues, fmt.Sprintf("%s: %s", context, issue))
	}
	return issues
}

func validateJob(job *workflow.Job, wf *workflow.Workflow) []string {
	var issues []string
	prefix := fmt.Sprintf("jobs.%s", job.ID)

	if !identifierPattern.MatchString(job.ID) {
		issues = append(issues, fmt.Sprintf("%s: job ID must be a valid identifier ([A-Za-z_][A-Za-z0-9_-]*)", prefix))
	}
	if len(job.RunsOn) == 0 {
		issues = append(issues, fmt.Sprintf("%s: runs-on is required", prefix))
	}
	if job.Timeout < 0 {
		issues = append(issues, fmt.Sprintf("%s: timeout-minutes must not be negative", prefix))
	}

	for _, need := range job.Needs {
		if need == job.ID {
			issues = append(issues, fmt.Sprintf("%s: needs references the job itself", prefix))
			continue
		}
		if wf.Job(need) == nil {
			issues = append(issues, fmt.Sprintf("%s: needs references unknown job %q", prefix, need))
		}
	}

	for _, secret := range job.Secrets {
		if !outputNamePattern.MatchString(secret) {
			issues = append(issues, fmt.Sprintf(
				"%s: secret name %q must be a valid identifier ([A-Za-z_][A-Za-z0-9_]*)",
				prefix, secret,
			))
		}
	}

	if job.Strategy != nil {
		issues = append(issues, validateStrategy(job.Strategy, prefix)...)
	}

	if job.Defaults != nil {
		switch job.Defaults.Shell {
		case "", "sh", "bash":
			// Valid.
		default:
			issues = append(issues, fmt.Sprintf("%s: defaults.shell must be \"sh\" or \"bash\", got %q", prefix, job.Defaults.Shell))
		}
	}

	if len(job.Steps) == 0 {
		issues = append(issues, fmt.Sprintf("%s: job has no steps (at least one step is required)", prefix))
	}

	// Step IDs must be unique within the job. Duplicate IDs would
	// cause OUTPUT_<id>_<name> variable collisions, silently
	// overwriting earlier step outputs with later ones.
	stepIDs := make(map[string]int, len(job.Steps))
	for index, step := range job.Steps {
		if step.ID != "" {
			if firstIndex, exists := stepIDs[step.ID]; exists {
				issues = append(issues, fmt.Sprintf(
					"%s.steps[%d] %q: duplicate step ID (first used at steps[%d])",
					prefix, index, step.ID, firstIndex,
				))
			} else {
				stepIDs[step.ID] = index
			}
		}
	}

	for index := range job.Steps {
		stepPrefix := fmt.Sprintf("%s.steps[%d]", prefix, index)
		issues = append(issues, validateStep(&job.Steps[index], stepPrefix)...)
	}

	for name, value := range job.Outputs {
		outputPrefix := fmt.Sprintf("%s.outputs[%q]", prefix, name)
		if !outputNamePattern.MatchString(name) {
			issues = append(issues, fmt.Sprintf(
				"%s: output name must be a valid identifier ([A-Za-z_][A-Za-z0-9_]*)",
				outputPrefix,
			))
		}
		if value == "" {
			issues = append(issues, fmt.Sprintf("%s: value is required", outputPrefix))
		}
	}

	for index, pattern := range job.Artifacts {
		if pattern == "" {
			issues = append(issues, fmt.Sprintf("%s.artifacts[%d]: pattern must not be empty", prefix, index))
		}
	}

	return issues
}

func validateStrategy(strategy *workflow.Strategy, prefix string) []string {
	var issues []string

	if strategy.MaxParallel < 0 {
		issues = append(issues, fmt.Sprintf("%s: strategy.max-parallel must not be negative", prefix))
	}

	matrix := strategy.Matrix
	if matrix == nil {
		return issues
	}

	for axis, values := range matrix.Axes {
		if !outputNamePattern.MatchString(axis) {
			issues = append(issues, fmt.Sprintf(
				"%s: strategy.matrix axis %q must be a valid identifier ([A-Za-z_][A-Za-z0-9_]*)",
				prefix, axis,
			))
		}
		if len(values) == 0 {
			issues = append(issues, fmt.Sprintf("%s: strategy.matrix axis %q has no values", prefix, axis))
		}
	}

	for index, entry := range matrix.Exclude {
		for key := range entry {
			if _, known := matrix.Axes[key]; !known {
				issues = append(issues, fmt.Sprintf(
					"%s: strategy.matrix.exclude[%d] references unknown axis %q",
					prefix, index, key,
				))
			}
		}
	}
	// Include entries may introduce new axes (extra keys become part
	// of the combination), so only name validity is checked.
	for index, entry := range matrix.Include {
		for key := range entry {
			if !outputNamePattern.MatchString(key) {
				issues = append(issues, fmt.Sprintf(
					"%s: strategy.matrix.include[%d] key %q must be a valid identifier",
					prefix, index, key,
				))
			}
		}
	}

	return issues
}

func validateStep(step *workflow.Step, prefix string) []string {
	var issues []string

	if step.ID != "" && !outputNamePattern.MatchString(step.ID) {
		issues = append(issues, fmt.Sprintf("%s: step ID must be a valid identifier ([A-Za-z_][A-Za-z0-9_]*)", prefix))
	}
	if label := step.DisplayName(); label != "" {
		prefix = fmt.Sprintf("%s %q", prefix, label)
	}

	hasRun := step.IsRun()
	hasUses := step.IsUses()
	switch {
	case hasRun && hasUses:
		issues = append(issues, fmt.Sprintf("%s: run and uses are mutually exclusive (set exactly one)", prefix))
	case !hasRun && !hasUses:
		issues = append(issues, fmt.Sprintf("%s: must set exactly one of run or uses", prefix))
	}

	// Fields only meaningful on run steps.
	if !hasRun {
		if step.Check != "" {
			issues = append(issues, fmt.Sprintf("%s: check is only valid on run steps", prefix))
		}
		if step.Shell != "" {
			issues = append(issues, fmt.Sprintf("%s: shell is only valid on run steps", prefix))
		}
		if step.GracePeriod != "" {
			issues = append(issues, fmt.Sprintf("%s: grace-period is only valid on run steps", prefix))
		}
	}

	// Fields only meaningful on uses steps.
	if !hasUses && len(step.With) > 0 {
		issues = append(issues, fmt.Sprintf("%s: with is only valid on uses steps", prefix))
	}

	if hasUses {
		if _, err := workflow.ParseUses(step.Uses); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", prefix, err))
		}
	}

	switch step.Shell {
	case "", "sh", "bash":
		// Valid.
	default:
		issues = append(issues, fmt.Sprintf("%s: shell must be \"sh\" or \"bash\", got %q", prefix, step.Shell))
	}

	if step.Timeout < 0 {
		issues = append(issues, fmt.Sprintf("%s: timeout-minutes must not be negative", prefix))
	}

	if step.GracePeriod != "" {
		if _, err := time.ParseDuration(step.GracePeriod); err != nil {
			issues = append(issues, fmt.Sprintf("%s: invalid grace-period %q: %v", prefix, step.GracePeriod, err))
		}
	}

	return issues
}
