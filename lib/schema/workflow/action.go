// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"
	"strings"
)

// Action is a composite action definition: a reusable sequence of run
// steps with declared inputs, loaded from an action.yml (or
// action.yaml) file in the directory a step's Uses references.
type Action struct {
	// Name is the action's display name.
	Name string `json:"name"`

	// Description explains what the action does.
	Description string `json:"description,omitempty"`

	// Inputs declares the accepted inputs. Step With entries must
	// name declared inputs; required inputs without defaults must be
	// provided.
	Inputs map[string]ActionInput `json:"inputs,omitempty"`

	// Runs declares how the action executes.
	Runs ActionRuns `json:"runs"`
}

// ActionInput declares one input of a composite action.
type ActionInput struct {
	// Description explains what the input is for.
	Description string `json:"description,omitempty"`

	// Default is the value used when the step's With does not provide
	// one.
	Default string `json:"default,omitempty"`

	// Required means the step must provide a value when no default
	// exists.
	Required bool `json:"required,omitempty"`
}

// ActionRuns declares a composite action's execution: the using kind
// and the steps to run. Only "composite" is supported; the steps must
// be run steps (nested uses is rejected at validation).
type ActionRuns struct {
	// Using is the action kind. Must be "composite".
	Using string `json:"using"`

	// Steps is the ordered list of run steps executed inline in the
	// invoking job, with INPUT_<NAME> variables from the step's With
	// merged over the action's input defaults.
	Steps []Step `json:"steps"`
}

// UsingComposite is the only supported ActionRuns.Using value.
const UsingComposite = "composite"

// UsesRef is a parsed step Uses reference.
type UsesRef struct {
	// Local means the reference names a directory in the workspace
	// ("./" prefix). Path holds the directory.
	Local bool `json:"local"`

	// Path is the local action directory, cleaned, for local refs.
	Path string `json:"path,omitempty"`

	// Owner, Repo, and Ref identify a remote action
	// ("owner/repo@ref"). Remote actions are not fetched; the
	// remote_actions policy decides whether the step is skipped or
	// the run fails.
	Owner string `json:"owner,omitempty"`
	Repo  string `json:"repo,omitempty"`
	Ref   string `json:"ref,omitempty"`
}

// String reassembles the reference in its source form.
func (r UsesRef) String() string {
	if r.Local {
		return "./" + r.Path
	}
	return r.Owner + "/" + r.Repo + "@" + r.Ref
}

// ParseUses parses a step's Uses string into a UsesRef. Accepted
// forms:
//   - "./path/to/action": local composite action directory
//   - "owner/repo@ref": remote action (subdirectory form
//     "owner/repo/sub@ref" folds the subdirectory into Repo)
func ParseUses(uses string) (UsesRef, error) {
	if uses == "" {
		return UsesRef{}, fmt.Errorf("empty uses reference")
	}

	if after, ok := strings.CutPrefix(uses, "./"); ok {
		cleaned := strings.Trim(after, "/")
		if cleaned == "" || cleaned == "." {
			return UsesRef{}, fmt.Errorf("local uses reference %q has no path", uses)
		}
		if strings.Contains(cleaned, "..") {
			return UsesRef{}, fmt.Errorf("local uses reference %q escapes the workspace", uses)
		}
		return UsesRef{Local: true, Path: cleaned}, nil
	}

	spec, ref, found := strings.Cut(uses, "@")
	if !found || ref == "" {
		return UsesRef{}, fmt.Errorf("remote uses reference %q is missing @ref", uses)
	}
	owner, repo, found := strings.Cut(spec, "/")
	if !found || owner == "" || repo == "" {
		return UsesRef{}, fmt.Errorf("remote uses reference %q must be owner/repo@ref", uses)
	}
	return UsesRef{Owner: owner, Repo: repo, Ref: ref}, nil
}
