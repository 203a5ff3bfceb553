// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflowdef

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// actionFileNames are the recognized action definition file names
// inside a local action directory, in lookup order.
var actionFileNames = []string{"action.yml", "action.yaml"}

// FindActionFile locates the action definition file in a local action
// directory. Returns the file path, or an error naming the directory
// when none of the recognized file names exist.
func FindActionFile(dir string) (string, error) {
	for _, name := range actionFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s: no action.yml or action.yaml found", dir)
}

// ParseAction decodes an action definition. Strict like workflow
// decoding: unknown keys are rejected.
func ParseAction(data []byte) (*workflow.Action, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing action: %w", err)
	}

	root, err := documentRoot(&doc)
	if err != nil {
		return nil, fmt.Errorf("parsing action: %w", err)
	}
	if err := expectMapping(root, "action"); err != nil {
		return nil, err
	}
	if err := checkKeys(root, "action", "name", "description", "inputs", "runs"); err != nil {
		return nil, err
	}

	var action workflow.Action
	for key, value := range mappingPairs(root) {
		switch key.Value {
		case "name":
			if action.Name, err = scalarValue(value); err != nil {
				return nil, fmt.Errorf("name: %w", err)
			}
		case "description":
			if action.Description, err = scalarValue(value); err != nil {
				return nil, fmt.Errorf("description: %w", err)
			}
		case "inputs":
			if action.Inputs, err = decodeActionInputs(value); err != nil {
				return nil, err
			}
		case "runs":
			if action.Runs, err = decodeActionRuns(value); err != nil {
				return nil, err
			}
		}
	}
	return &action, nil
}

// ReadActionFile reads and parses the action definition from a local
// action directory.
func ReadActionFile(dir string) (*workflow.Action, error) {
	path, err := FindActionFile(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	action, err := ParseAction(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return action, nil
}

func decodeActionInputs(node *yaml.Node) (map[string]workflow.ActionInput, error) {
	if isNull(node) {
		return nil, nil
	}
	if err := expectMapping(node, "inputs"); err != nil {
		return nil, err
	}
	inputs := make(map[string]workflow.ActionInput, len(node.Content)/2)
	for name, spec := range mappingPairs(node) {
		context := "inputs." + name.Value
		if isNull(spec) {
			inputs[name.Value] = workflow.ActionInput{}
			continue
		}
		if err := expectMapping(spec, context); err != nil {
			return nil, err
		}
		if err := checkKeys(spec, context, "description", "default", "required"); err != nil {
			return nil, err
		}
		var input workflow.ActionInput
		for key, value := range mappingPairs(spec) {
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
				return nil, fmt.Errorf("%s.%s: %w", context, key.Value, err)
			}
		}
		inputs[name.Value] = input
	}
	return inputs, nil
}

func decodeActionRuns(node *yaml.Node) (workflow.ActionRuns, error) {
	var runs workflow.ActionRuns
	if err := expectMapping(node, "runs"); err != nil {
		return runs, err
	}
	if err := checkKeys(node, "runs", "using", "steps"); err != nil {
		return runs, err
	}
	for key, value := range mappingPairs(node) {
		var err error
		switch key.Value {
		case "using":
			if runs.Using, err = scalarValue(value); err != nil {
				return runs, fmt.Errorf("runs.using: %w", err)
			}
		case "steps":
			if runs.Steps, err = decodeSteps(value, "runs.steps"); err != nil {
				return runs, err
			}
		}
	}
	return runs, nil
}

// ValidateAction checks an action definition for structural issues.
// Returns a list of human-readable issue descriptions; an empty list
// means the action is valid.
//
// Actions are a restricted step container: only composite actions
// exist, their steps must be run steps (no nesting), and input names
// must be identifiers (they embed into INPUT_<NAME> variables).
func ValidateAction(action *workflow.Action) []string {
	var issues []string

	if action.Name == "" {
		issues = append(issues, "action: name is required")
	}
	if action.Runs.Using != workflow.UsingComposite {
		issues = append(issues, fmt.Sprintf(
			"action: runs.using must be %q, got %q",
			workflow.UsingComposite, action.Runs.Using,
		))
	}
	if len(action.Runs.Steps) == 0 {
		issues = append(issues, "action: runs.steps requires at least one step")
	}

	for name := range action.Inputs {
		if !outputNamePattern.MatchString(name) {
			issues = append(issues, fmt.Sprintf(
				"action: inputs[%q]: input name must be a valid identifier ([A-Za-z_][A-Za-z0-9_]*)",
				name,
			))
		}
	}

	for index := range action.Runs.Steps {
		step := &action.Runs.Steps[index]
		prefix := fmt.Sprintf("action: runs.steps[%d]", index)
		if step.IsUses() {
			issues = append(issues, fmt.Sprintf("%s: nested uses is not supported in composite actions", prefix))
			continue
		}
		issues = append(issues, validateStep(step, prefix)...)
	}

	return issues
}
