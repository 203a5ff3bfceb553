// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflowdef

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// The decoder walks yaml.Node trees by hand instead of unmarshaling
// into tagged structs. Three properties require it: job declaration
// order must survive (YAML mappings decode to Go maps otherwise),
// several keys are polymorphic (on: accepts a scalar, a list, or a
// map; runs-on and needs accept a scalar or a list), and unknown keys
// must be rejected with their source line.

// decodeWorkflow decodes a parsed YAML document into a Workflow.
func decodeWorkflow(doc *yaml.Node) (*workflow.Workflow, error) {
	root, err := documentRoot(doc)
	if err != nil {
		return nil, err
	}
	if err := expectMapping(root, "workflow"); err != nil {
		return nil, err
	}
	if err := checkKeys(root, "workflow", "name", "on", "env", "jobs"); err != nil {
		return nil, err
	}

	var wf workflow.Workflow
	for key, value := range mappingPairs(root) {
		switch key.Value {
		case "name":
			if wf.Name, err = scalarValue(value); err != nil {
				return nil, fmt.Errorf("name: %w", err)
			}
		case "on":
			if wf.On, err = decodeTriggers(value); err != nil {
				return nil, err
			}
		case "env":
			if wf.Env, err = decodeStringMap(value, "env"); err != nil {
				return nil, err
			}
		case "jobs":
			if wf.Jobs, err = decodeJobs(value); err != nil {
				return nil, err
			}
		}
	}
	return &wf, nil
}

// decodeTriggers decodes the polymorphic "on" value: a single event
// name, a list of event names, or the full map form with per-event
// filters.
func decodeTriggers(node *yaml.Node) (workflow.Triggers, error) {
	var triggers workflow.Triggers

	switch {
	case isNull(node):
		return triggers, nil

	case node.Kind == yaml.ScalarNode:
		if err := addBareTrigger(&triggers, node); err != nil {
			return triggers, err
		}
		return triggers, nil

	case node.Kind == yaml.SequenceNode:
		for _, item := range node.Content {
			if err := addBareTrigger(&triggers, item); err != nil {
				return triggers, err
			}
		}
		return triggers, nil

	case node.Kind == yaml.MappingNode:
		if err := checkKeys(node, "on",
			workflow.EventPush, workflow.EventPullRequest,
			workflow.EventWorkflowDispatch, workflow.EventSchedule); err != nil {
			return triggers, err
		}
		for key, value := range mappingPairs(node) {
			var err error
			switch key.Value {
			case workflow.EventPush:
				triggers.Push, err = decodePushTrigger(value)
			case workflow.EventPullRequest:
				triggers.PullRequest, err = decodePullRequestTrigger(value)
			case workflow.EventWorkflowDispatch:
				triggers.WorkflowDispatch, err = decodeDispatchTrigger(value)
			case workflow.EventSchedule:
				triggers.Schedule, err = decodeSchedule(value)
			}
			if err != nil {
				return triggers, err
			}
		}
		return triggers, nil

	default:
		return triggers, fmt.Errorf("line %d: on: expected an event name, list, or map", node.Line)
	}
}

// addBareTrigger records an event name from the shorthand forms
// ("on: push", "on: [push, pull_request]") as a filterless trigger.
func addBareTrigger(triggers *workflow.Triggers, node *yaml.Node) error {
	name, err := scalarValue(node)
	if err != nil {
		return fmt.Errorf("on: %w", err)
	}
	switch name {
	case workflow.EventPush:
		triggers.Push = &workflow.PushTrigger{}
	case workflow.EventPullRequest:
		triggers.PullRequest = &workflow.PullRequestTrigger{}
	case workflow.EventWorkflowDispatch:
		triggers.WorkflowDispatch = &workflow.DispatchTrigger{}
	case workflow.EventSchedule:
		return fmt.Errorf("line %d: on: schedule requires the map form with cron entries", node.Line)
	default:
		return fmt.Errorf("line %d: on: unknown event %q (valid: push, pull_request, workflow_dispatch, schedule)", node.Line, name)
	}
	return nil
}

func decodePushTrigger(node *yaml.Node) (*workflow.PushTrigger, error) {
	trigger := &workflow.PushTrigger{}
	if isNull(node) {
		return trigger, nil
	}
	if err := expectMapping(node, "on.push"); err != nil {
		return nil, err
	}
	if err := checkKeys(node, "on.push", "branches", "tags", "paths"); err != nil {
		return nil, err
	}
	for key, value := range mappingPairs(node) {
		var err error
		switch key.Value {
		case "branches":
			trigger.Branches, err = decodeStringList(value, "on.push.branches")
		case "tags":
			trigger.Tags, err = decodeStringList(value, "on.push.tags")
		case "paths":
			trigger.Paths, err = decodeStringList(value, "on.push.paths")
		}
		if err != nil {
			return nil, err
		}
	}
	return trigger, nil
}

func decodePullRequestTrigger(node *yaml.Node) (*workflow.PullRequestTrigger, error) {
	trigger := &workflow.PullRequestTrigger{}
	if isNull(node) {
		return trigger, nil
	}
	if err := expectMapping(node, "on.pull_request"); err != nil {
		return nil, err
	}
	if err := checkKeys(node, "on.pull_request", "branches", "paths"); err != nil {
		return nil, err
	}
	for key, value := range mappingPairs(node) {
		var err error
		switch key.Value {
		case "branches":
			trigger.Branches, err = decodeStringList(value, "on.pull_request.branches")
		case "paths":
			trigger.Paths, err = decodeStringList(value, "on.pull_request.paths")
		}
		if err != nil {
			return nil, err
		}
	}
	return trigger, nil
}

func decodeDispatchTrigger(node *yaml.Node) (*workflow.DispatchTrigger, error) {
	trigger := &workflow.DispatchTrigger{}
	if isNull(node) {
		return trigger, nil
	}
	if err := expectMapping(node, "on.workflow_dispatch"); err != nil {
		return nil, err
	}
	if err := checkKeys(node, "on.workflow_dispatch", "inputs"); err != nil {
		return nil, err
	}
	for key, value := range mappingPairs(node) {
		if key.Value != "inputs" {
			continue
		}
		if err := expectMapping(value, "on.workflow_dispatch.inputs"); err != nil {
			return nil, err
		}
		if err := checkDuplicates(value, "on.workflow_dispatch.inputs"); err != nil {
			return nil, err
		}
		trigger.Inputs = make(map[string]workflow.DispatchInput, len(value.Content)/2)
		for name, spec := range mappingPairs(value) {
			input, err := decodeDispatchInput(spec, "on.workflow_dispatch.inputs."+name.Value)
			if err != nil {
				return nil, err
			}
			trigger.Inputs[name.Value] = input
		}
	}
	return trigger, nil
}

func decodeDispatchInput(node *yaml.Node, context string) (workflow.DispatchInput, error) {
	var input workflow.DispatchInput
	if isNull(node) {
		return input, nil
	}
	if err := expectMapping(node, context); err != nil {
		return input, err
	}
	if err := checkKeys(node, context, "description", "default", "required"); err != nil {
		return input, err
	}
	for key, value := range mappingPairs(node) {
		var err error
		switch key.Value {
		case "description":
			input.Description, err = scalarValue(value)
		case "default":
			input.Default, err = scalarValue(value)
		case "required":
			input.Required, err = boolValue(value)
		}
		if err != nil {
			return input, fmt.Errorf("%s.%s: %w", context, key.Value, err)
		}
	}
	return input, nil
}

func decodeSchedule(node *yaml.Node) ([]workflow.ScheduleTrigger, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: on.schedule: expected a list of cron entries", node.Line)
	}
	entries := make([]workflow.ScheduleTrigger, 0, len(node.Content))
	for index, item := range node.Content {
		context := fmt.Sprintf("on.schedule[%d]", index)
		if err := expectMapping(item, context); err != nil {
			return nil, err
		}
		if err := checkKeys(item, context, "cron"); err != nil {
			return nil, err
		}
		var entry workflow.ScheduleTrigger
		for key, value := range mappingPairs(item) {
			if key.Value == "cron" {
				expr, err := scalarValue(value)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", context, err)
				}
				entry.Cron = expr
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// decodeJobs decodes the jobs mapping, preserving declaration order.
func decodeJobs(node *yaml.Node) ([]workflow.Job, error) {
	if isNull(node) {
		return nil, nil
	}
	if err := expectMapping(node, "jobs"); err != nil {
		return nil, err
	}
	if err := checkDuplicates(node, "jobs"); err != nil {
		return nil, err
	}
	jobs := make([]workflow.Job, 0, len(node.Content)/2)
	for key, value := range mappingPairs(node) {
		job, err := decodeJob(key.Value, value)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func decodeJob(id string, node *yaml.Node) (workflow.Job, error) {
	job := workflow.Job{ID: id}
	context := "jobs." + id
	if err := expectMapping(node, context); err != nil {
		return job, err
	}
	if err := checkKeys(node, context,
		"name", "runs-on", "needs", "when", "env", "secrets",
		"timeout-minutes", "continue-on-error", "strategy", "defaults",
		"steps", "outputs", "artifacts"); err != nil {
		return job, err
	}

	// Helpers taking a context argument return fully prefixed errors;
	// bare scalar reads are prefixed here.
	for key, value := range mappingPairs(node) {
		var err error
		var bare error
		switch key.Value {
		case "name":
			job.Name, bare = scalarValue(value)
		case "runs-on":
			job.RunsOn, err = decodeStringList(value, context+".runs-on")
		case "needs":
			job.Needs, err = decodeStringList(value, context+".needs")
		case "when":
			job.When, bare = scalarValue(value)
		case "env":
			job.Env, err = decodeStringMap(value, context+".env")
		case "secrets":
			job.Secrets, err = decodeStringList(value, context+".secrets")
		case "timeout-minutes":
			job.Timeout, bare = intValue(value)
		case "continue-on-error":
			job.ContinueOnError, bare = boolValue(value)
		case "strategy":
			job.Strategy, err = decodeStrategy(value, context+".strategy")
		case "defaults":
			job.Defaults, err = decodeDefaults(value, context+".defaults")
		case "steps":
			job.Steps, err = decodeSteps(value, context+".steps")
		case "outputs":
			job.Outputs, err = decodeStringMap(value, context+".outputs")
		case "artifacts":
			job.Artifacts, err = decodeStringList(value, context+".artifacts")
		}
		if bare != nil {
			return job, fmt.Errorf("%s.%s: %w", context, key.Value, bare)
		}
		if err != nil {
			return job, err
		}
	}
	return job, nil
}

func decodeStrategy(node *yaml.Node, context string) (*workflow.Strategy, error) {
	strategy := &workflow.Strategy{}
	if isNull(node) {
		return strategy, nil
	}
	if err := expectMapping(node, context); err != nil {
		return nil, err
	}
	if err := checkKeys(node, context, "fail-fast", "max-parallel", "matrix"); err != nil {
		return nil, err
	}
	for key, value := range mappingPairs(node) {
		switch key.Value {
		case "fail-fast":
			enabled, err := boolValue(value)
			if err != nil {
				return nil, fmt.Errorf("%s.fail-fast: %w", context, err)
			}
			strategy.FailFast = &enabled
		case "max-parallel":
			limit, err := intValue(value)
			if err != nil {
				return nil, fmt.Errorf("%s.max-parallel: %w", context, err)
			}
			strategy.MaxParallel = limit
		case "matrix":
			matrix, err := decodeMatrix(value, context+".matrix")
			if err != nil {
				return nil, err
			}
			strategy.Matrix = matrix
		}
	}
	return strategy, nil
}

// decodeMatrix decodes a matrix spec. Every key except the reserved
// include and exclude declares an axis with a list of scalar values.
func decodeMatrix(node *yaml.Node, context string) (*workflow.MatrixSpec, error) {
	if err := expectMapping(node, context); err != nil {
		return nil, err
	}
	if err := checkDuplicates(node, context); err != nil {
		return nil, err
	}
	matrix := &workflow.MatrixSpec{}
	for key, value := range mappingPairs(node) {
		switch key.Value {
		case "include", "exclude":
			entries, err := decodeMatrixEntries(value, context+"."+key.Value)
			if err != nil {
				return nil, err
			}
			if key.Value == "include" {
				matrix.Include = entries
			} else {
				matrix.Exclude = entries
			}
		default:
			if value.Kind != yaml.SequenceNode {
				return nil, fmt.Errorf("line %d: %s.%s: axis values must be a list", value.Line, context, key.Value)
			}
			values := make([]string, 0, len(value.Content))
			for _, item := range value.Content {
				text, err := scalarValue(item)
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", context, key.Value, err)
				}
				values = append(values, text)
			}
			if matrix.Axes == nil {
				matrix.Axes = make(map[string][]string)
			}
			matrix.Axes[key.Value] = values
		}
	}
	return matrix, nil
}

func decodeMatrixEntries(node *yaml.Node, context string) ([]map[string]string, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: %s: expected a list of axis-value maps", node.Line, context)
	}
	entries := make([]map[string]string, 0, len(node.Content))
	for index, item := range node.Content {
		entry, err := decodeStringMap(item, fmt.Sprintf("%s[%d]", context, index))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeDefaults(node *yaml.Node, context string) (*workflow.JobDefaults, error) {
	defaults := &workflow.JobDefaults{}
	if isNull(node) {
		return defaults, nil
	}
	if err := expectMapping(node, context); err != nil {
		return nil, err
	}
	if err := checkKeys(node, context, "shell", "working-directory"); err != nil {
		return nil, err
	}
	for key, value := range mappingPairs(node) {
		var err error
		switch key.Value {
		case "shell":
			defaults.Shell, err = scalarValue(value)
		case "working-directory":
			defaults.WorkingDirectory, err = scalarValue(value)
		}
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", context, key.Value, err)
		}
	}
	return defaults, nil
}

func decodeSteps(node *yaml.Node, context string) ([]workflow.Step, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: %s: expected a list of steps", node.Line, context)
	}
	steps := make([]workflow.Step, 0, len(node.Content))
	for index, item := range node.Content {
		step, err := decodeStep(item, fmt.Sprintf("%s[%d]", context, index))
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func decodeStep(node *yaml.Node, context string) (workflow.Step, error) {
	var step workflow.Step
	if err := expectMapping(node, context); err != nil {
		return step, err
	}
	if err := checkKeys(node, context,
		"id", "name", "run", "uses", "with", "shell", "working-directory",
		"env", "when", "check", "timeout-minutes", "grace-period",
		"continue-on-error"); err != nil {
		return step, err
	}

	for key, value := range mappingPairs(node) {
		var err error
		var bare error
		switch key.Value {
		case "id":
			step.ID, bare = scalarValue(value)
		case "name":
			step.Name, bare = scalarValue(value)
		case "run":
			step.Run, bare = scalarValue(value)
		case "uses":
			step.Uses, bare = scalarValue(value)
		case "with":
			step.With, err = decodeStringMap(value, context+".with")
		case "shell":
			step.Shell, bare = scalarValue(value)
		case "working-directory":
			step.WorkingDirectory, bare = scalarValue(value)
		case "env":
			step.Env, err = decodeStringMap(value, context+".env")
		case "when":
			step.When, bare = scalarValue(value)
		case "check":
			step.Check, bare = scalarValue(value)
		case "timeout-minutes":
			step.Timeout, bare = intValue(value)
		case "grace-period":
			step.GracePeriod, bare = scalarValue(value)
		case "continue-on-error":
			step.ContinueOnError, bare = boolValue(value)
		}
		if bare != nil {
			return step, fmt.Errorf("%s.%s: %w", context, key.Value, bare)
		}
		if err != nil {
			return step, err
		}
	}
	return step, nil
}

// documentRoot unwraps the document node produced by yaml.Unmarshal
// into a *yaml.Node.
func documentRoot(doc *yaml.Node) (*yaml.Node, error) {
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil, fmt.Errorf("empty document")
		}
		return doc.Content[0], nil
	}
	return doc, nil
}

// mappingPairs iterates a mapping node's key/value pairs in
// declaration order.
func mappingPairs(node *yaml.Node) func(yield func(*yaml.Node, *yaml.Node) bool) {
	return func(yield func(*yaml.Node, *yaml.Node) bool) {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if !yield(node.Content[i], node.Content[i+1]) {
				return
			}
		}
	}
}

// checkKeys rejects mapping keys outside the allowed set, and
// duplicate keys within it.
func checkKeys(node *yaml.Node, context string, allowed ...string) error {
	if err := checkDuplicates(node, context); err != nil {
		return err
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = true
	}
	for key := range mappingPairs(node) {
		if !allowedSet[key.Value] {
			sorted := append([]string(nil), allowed...)
			sort.Strings(sorted)
			return fmt.Errorf(
				"line %d: %s: unknown key %q (valid keys: %s)",
				key.Line, context, key.Value, strings.Join(sorted, ", "),
			)
		}
	}
	return nil
}

// checkDuplicates rejects mappings that declare the same key twice.
// yaml.v3 enforces this when decoding into structs but not when the
// target is a Node tree, so the walk has to check it.
func checkDuplicates(node *yaml.Node, context string) error {
	seen := make(map[string]int, len(node.Content)/2)
	for key := range mappingPairs(node) {
		if firstLine, exists := seen[key.Value]; exists {
			return fmt.Errorf(
				"line %d: %s: duplicate key %q (first declared at line %d)",
				key.Line, context, key.Value, firstLine,
			)
		}
		seen[key.Value] = key.Line
	}
	return nil
}

func expectMapping(node *yaml.Node, context string) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: %s: expected a map", node.Line, context)
	}
	return nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

// scalarValue returns a scalar node's text. Numbers and booleans keep
// their source form ("1", "true"), so env values like ALL_FEATURES: 1
// and ALL_FEATURES: "1" decode identically.
func scalarValue(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("line %d: expected a scalar value", node.Line)
	}
	switch node.Tag {
	case "!!str", "!!int", "!!float", "!!bool":
		return node.Value, nil
	case "!!null":
		return "", nil
	default:
		return "", fmt.Errorf("line %d: unsupported value type %s", node.Line, node.Tag)
	}
}

func boolValue(node *yaml.Node) (bool, error) {
	if node.Kind != yaml.ScalarNode || node.Tag != "!!bool" {
		return false, fmt.Errorf("line %d: expected true or false", node.Line)
	}
	return node.Value == "true", nil
}

func intValue(node *yaml.Node) (int, error) {
	if node.Kind != yaml.ScalarNode || node.Tag != "!!int" {
		return 0, fmt.Errorf("line %d: expected an integer", node.Line)
	}
	var value int
	if err := node.Decode(&value); err != nil {
		return 0, fmt.Errorf("line %d: %w", node.Line, err)
	}
	return value, nil
}

// decodeStringList accepts a single scalar or a sequence of scalars.
func decodeStringList(node *yaml.Node, context string) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if isNull(node) {
			return nil, nil
		}
		value, err := scalarValue(node)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", context, err)
		}
		return []string{value}, nil
	case yaml.SequenceNode:
		values := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			value, err := scalarValue(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", context, err)
			}
			values = append(values, value)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("line %d: %s: expected a value or list", node.Line, context)
	}
}

// decodeStringMap decodes a mapping of scalar keys to scalar values.
func decodeStringMap(node *yaml.Node, context string) (map[string]string, error) {
	if isNull(node) {
		return nil, nil
	}
	if err := expectMapping(node, context); err != nil {
		return nil, err
	}
	if err := checkDuplicates(node, context); err != nil {
		return nil, err
	}
	result := make(map[string]string, len(node.Content)/2)
	for key, value := range mappingPairs(node) {
		text, err := scalarValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", context, key.Value, err)
		}
		result[key.Value] = text
	}
	return result, nil
}
