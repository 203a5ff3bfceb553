// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package expand implements ${NAME} variable expansion for workflow
// definitions and the layered variable scope steps resolve against.
package expand

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// variablePattern matches ${NAME} references in strings. Only the
// braced form is recognized; bare $NAME is left for shell
// interpretation, which also keeps the process environment reachable
// the shell way without greenlight resolving it. Variable names must
// start with a letter or underscore and contain only letters, digits,
// and underscores.
var variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand replaces ${NAME} references in input with values from the
// variables map.
//
// Returns an error listing all referenced variables that have no
// value in the map. This ensures workflow definitions fail fast on
// unresolvable references rather than producing broken commands.
func Expand(input string, variables map[string]string) (string, error) {
	var unresolved []string
	seen := make(map[string]bool)

	result := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		// Extract the variable name from ${NAME}.
		name := match[2 : len(match)-1]
		if value, exists := variables[name]; exists {
			return value
		}
		if !seen[name] {
			seen[name] = true
			unresolved = append(unresolved, name)
		}
		return match
	})

	if len(unresolved) > 0 {
		sort.Strings(unresolved)
		return "", fmt.Errorf("unresolved workflow variables: %s", strings.Join(unresolved, ", "))
	}

	return result, nil
}

// ExpandMap expands every value of a string map. Keys are not
// expanded. The input map is not modified; a nil input returns nil.
func ExpandMap(values map[string]string, variables map[string]string) (map[string]string, error) {
	if values == nil {
		return nil, nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		expanded, err := Expand(value, variables)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		result[key] = expanded
	}
	return result, nil
}

// ExpandStep returns a copy of step with all expandable string fields
// resolved. Step-level Env values are expanded first (against the
// surrounding scope only), then merged into the variable map for
// expanding the other fields. A run command can therefore reference
// its own env entries with ${NAME}, and those values will already
// have their own references resolved. Env entries do not
// cross-reference each other.
//
// Uses references are deliberately not expanded: action resolution
// happens at plan time, before any job runs, so the reference must be
// static.
//
// The original step and variables map are not modified.
func ExpandStep(step workflow.Step, variables map[string]string) (workflow.Step, error) {
	label := step.DisplayName()

	var expandedEnv map[string]string
	if len(step.Env) > 0 {
		expandedEnv = make(map[string]string, len(step.Env))
		for name, value := range step.Env {
			expandedValue, err := Expand(value, variables)
			if err != nil {
				return workflow.Step{}, fmt.Errorf("step %q env[%s]: %w", label, name, err)
			}
			expandedEnv[name] = expandedValue
		}
	}

	// Merged scope: surrounding variables as base, expanded step env
	// on top. Step env takes precedence.
	merged := make(map[string]string, len(variables)+len(expandedEnv))
	for name, value := range variables {
		merged[name] = value
	}
	for name, value := range expandedEnv {
		merged[name] = value
	}

	var err error
	if step.Run, err = Expand(step.Run, merged); err != nil {
		return workflow.Step{}, fmt.Errorf("step %q run: %w", label, err)
	}
	if step.Check, err = Expand(step.Check, merged); err != nil {
		return workflow.Step{}, fmt.Errorf("step %q check: %w", label, err)
	}
	if step.When, err = Expand(step.When, merged); err != nil {
		return workflow.Step{}, fmt.Errorf("step %q when: %w", label, err)
	}
	if step.WorkingDirectory, err = Expand(step.WorkingDirectory, merged); err != nil {
		return workflow.Step{}, fmt.Errorf("step %q working-directory: %w", label, err)
	}

	if len(step.With) > 0 {
		expandedWith := make(map[string]string, len(step.With))
		for name, value := range step.With {
			expandedValue, err := Expand(value, merged)
			if err != nil {
				return workflow.Step{}, fmt.Errorf("step %q with[%s]: %w", label, name, err)
			}
			expandedWith[name] = expandedValue
		}
		step.With = expandedWith
	}

	step.Env = expandedEnv
	return step, nil
}

// References returns the sorted set of variable names a string
// references. Used by validation tooling to report which variables a
// workflow expects without expanding it.
func References(input string) []string {
	matches := variablePattern.FindAllStringSubmatch(input, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var names []string
	for _, match := range matches {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	sort.Strings(names)
	return names
}
