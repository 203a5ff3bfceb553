// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"os"
	"sort"

	"github.com/greenlight-ci/greenlight/lib/expand"
)

// jobScope assembles the expansion scope for one planned job, layered
// lowest priority first: workflow env, job env, matrix variables,
// dispatch inputs, event context, runtime variables, needs outputs,
// and declared secrets. Step outputs overlay the scope as steps
// complete; step env is merged per step by expand.ExpandStep.
func jobScope(plan *RunPlan, planned *PlannedJob, workspace string, needsOutputs map[string]map[string]string, secrets map[string]string) expand.Scope {
	scope := expand.NewScope().
		Overlay(plan.Workflow.Env).
		Overlay(planned.Job.Env).
		Overlay(planned.Combination.Variables()).
		OverlayPrefixed("INPUT_", plan.Event.Inputs).
		Overlay(plan.Event.Variables()).
		Set("GREENLIGHT_RUN_ID", plan.RunID).
		Set("GREENLIGHT_WORKFLOW", plan.Workflow.Name).
		Set("GREENLIGHT_JOB", planned.JobID).
		Set("GREENLIGHT_WORKSPACE", workspace)

	// Needs outputs overlay in declaration order so a later need wins
	// when two needed jobs share an output name under the same prefix.
	for _, need := range planned.Job.Needs {
		if outputs := needsOutputs[need]; len(outputs) > 0 {
			scope.OverlayPrefixed("NEEDS_"+expand.VariableName(need)+"_", outputs)
		}
	}

	for _, name := range planned.Job.Secrets {
		if value, ok := secrets[name]; ok {
			scope.Set("SECRET_"+expand.VariableName(name), value)
		}
	}
	return scope
}

// overlayStepOutputs records a completed step's outputs into the job
// scope under OUTPUT_<STEPID>_. Steps without an ID cannot be
// referenced, so their outputs stay local to the record.
func overlayStepOutputs(scope expand.Scope, stepID string, outputs map[string]string) {
	if stepID == "" || len(outputs) == 0 {
		return
	}
	scope.OverlayPrefixed("OUTPUT_"+expand.VariableName(stepID)+"_", outputs)
}

// processEnv renders the scope onto the parent process environment.
// Scope variables append last, so they shadow inherited values of the
// same name.
func processEnv(scope expand.Scope) []string {
	env := os.Environ()
	names := make([]string, 0, len(scope))
	for name := range scope {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		env = append(env, name+"="+scope[name])
	}
	return env
}
