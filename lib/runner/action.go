// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/greenlight-ci/greenlight/lib/expand"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
	"github.com/greenlight-ci/greenlight/lib/workflowdef"
)

// runUsesStep executes a uses step. Local composite actions run their
// steps inline with INPUT_ variables layered over the job scope;
// remote references follow the remote-actions policy. The returned
// record's name and duration are stamped by the caller.
func (r *jobRunner) runUsesStep(ctx, stepContext context.Context, step *workflow.Step, timeout time.Duration, stdout, stderr *lineWriter) workflow.StepRecord {
	ref, err := workflow.ParseUses(step.Uses)
	if err != nil {
		return workflow.StepRecord{Status: workflow.StepFailed, Error: err.Error()}
	}

	if !ref.Local {
		policy := r.engine.config.RemoteActions
		if policy == "" {
			policy = PolicySkip
		}
		if policy == PolicyFail {
			return workflow.StepRecord{
				Status: workflow.StepFailed,
				Error:  fmt.Sprintf("remote action %s cannot run locally (remote_actions policy is fail)", ref),
			}
		}
		r.notice(fmt.Sprintf("remote action %s skipped (remote_actions policy)", ref))
		return workflow.StepRecord{Status: workflow.StepSkipped}
	}

	action, err := workflowdef.ReadActionFile(filepath.Join(r.engine.config.Workspace, ref.Path))
	if err != nil {
		return workflow.StepRecord{Status: workflow.StepFailed, Error: err.Error()}
	}
	if issues := workflowdef.ValidateAction(action); len(issues) > 0 {
		return workflow.StepRecord{
			Status: workflow.StepFailed,
			Error:  fmt.Sprintf("action %s: %s", ref, strings.Join(issues, "; ")),
		}
	}

	inputs, err := resolveActionInputs(action, step.With)
	if err != nil {
		return workflow.StepRecord{
			Status: workflow.StepFailed,
			Error:  fmt.Sprintf("action %s: %v", ref, err),
		}
	}

	// Action inputs shadow same-named dispatch inputs for the duration
	// of the composite.
	compositeScope := r.scope.Clone().OverlayPrefixed("INPUT_", inputs)

	// One outputs file spans all composite steps, so the values they
	// write surface as the uses step's outputs.
	outputPath, cleanupOutput, err := createOutputFile()
	if err != nil {
		return workflow.StepRecord{
			Status: workflow.StepFailed,
			Error:  fmt.Sprintf("creating outputs file: %v", err),
		}
	}
	defer cleanupOutput()

	for _, sub := range action.Runs.Steps {
		record := r.runCompositeStep(ctx, stepContext, sub, compositeScope, outputPath, timeout, stdout, stderr)
		if record.Status == workflow.StepFailed || record.Status == workflow.StepCancelled {
			return record
		}
	}

	outputs, err := parseOutputFile(outputPath)
	if err != nil {
		return workflow.StepRecord{
			Status: workflow.StepFailed,
			Error:  fmt.Sprintf("parsing outputs: %v", err),
		}
	}
	return workflow.StepRecord{Status: workflow.StepOK, Outputs: outputs}
}

// runCompositeStep executes one step of a composite action under the
// invoking step's deadline. A skipped guard or an allowed failure
// reports ok so the composite continues.
func (r *jobRunner) runCompositeStep(ctx, stepContext context.Context, sub workflow.Step, compositeScope expand.Scope, outputPath string, timeout time.Duration, stdout, stderr *lineWriter) workflow.StepRecord {
	subName := sub.DisplayName()

	var gracePeriod time.Duration
	if sub.GracePeriod != "" {
		parsed, err := time.ParseDuration(sub.GracePeriod)
		if err != nil {
			return workflow.StepRecord{
				Status: workflow.StepFailed,
				Error:  fmt.Sprintf("action step %q: invalid grace_period %q: %v", subName, sub.GracePeriod, err),
			}
		}
		gracePeriod = parsed
	}

	expanded, err := expand.ExpandStep(sub, compositeScope)
	if err != nil {
		return workflow.StepRecord{Status: workflow.StepFailed, Error: err.Error()}
	}

	subScope := compositeScope.Clone().Overlay(expanded.Env)
	env := append(processEnv(subScope), outputFileVariable+"="+outputPath)
	shell := r.stepShell(&expanded)
	dir := r.stepWorkdir(&expanded)

	if expanded.When != "" {
		exitCode, err := runShell(stepContext, shell, expanded.When, dir, env, 0, stdout, stderr)
		if err != nil {
			status, message := classifyShellError(ctx, stepContext, fmt.Sprintf("action step %q when guard", subName), err, timeout)
			return workflow.StepRecord{Status: status, Error: message}
		}
		if exitCode != 0 {
			r.notice(fmt.Sprintf("action step %q skipped: guard condition not met", subName))
			return workflow.StepRecord{Status: workflow.StepSkipped}
		}
	}

	exitCode, err := runShell(stepContext, shell, expanded.Run, dir, env, gracePeriod, stdout, stderr)
	if err != nil {
		status, message := classifyShellError(ctx, stepContext, fmt.Sprintf("action step %q run", subName), err, timeout)
		return workflow.StepRecord{Status: status, Error: message}
	}
	if exitCode != 0 {
		if sub.ContinueOnError {
			r.notice(fmt.Sprintf("action step %q failed with exit code %d (continue-on-error)", subName, exitCode))
			return workflow.StepRecord{Status: workflow.StepFailedAllowed}
		}
		return workflow.StepRecord{
			Status:   workflow.StepFailed,
			ExitCode: exitCode,
			Error:    fmt.Sprintf("action step %q: exit code %d", subName, exitCode),
		}
	}

	if expanded.Check != "" {
		checkExitCode, err := runShell(stepContext, shell, expanded.Check, dir, env, 0, stdout, stderr)
		if err != nil {
			status, message := classifyShellError(ctx, stepContext, fmt.Sprintf("action step %q check", subName), err, timeout)
			return workflow.StepRecord{Status: status, Error: message}
		}
		if checkExitCode != 0 {
			return workflow.StepRecord{
				Status:   workflow.StepFailed,
				ExitCode: checkExitCode,
				Error:    fmt.Sprintf("action step %q check: exit code %d", subName, checkExitCode),
			}
		}
	}

	return workflow.StepRecord{Status: workflow.StepOK}
}

// resolveActionInputs checks a step's with entries against the
// action's declared inputs and merges defaults. Unknown names and
// missing required inputs are errors.
func resolveActionInputs(action *workflow.Action, provided map[string]string) (map[string]string, error) {
	var unknown []string
	for name := range provided {
		if _, declared := action.Inputs[name]; !declared {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		declared := make([]string, 0, len(action.Inputs))
		for name := range action.Inputs {
			declared = append(declared, name)
		}
		sort.Strings(declared)
		return nil, fmt.Errorf("unknown inputs: %s (declared: %s)",
			strings.Join(unknown, ", "), strings.Join(declared, ", "))
	}

	var missing []string
	resolved := make(map[string]string, len(action.Inputs))
	for name, input := range action.Inputs {
		value, ok := provided[name]
		switch {
		case ok:
			resolved[name] = value
		case input.Default != "":
			resolved[name] = input.Default
		case input.Required:
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("required inputs not provided: %s", strings.Join(missing, ", "))
	}
	return resolved, nil
}
