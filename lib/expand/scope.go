// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package expand

import "strings"

// Scope is a variable map assembled from layers in resolution order.
// Overlaying a layer shadows earlier values, so callers build a scope
// lowest priority first:
//
//	workflow env, job env, MATRIX_*, INPUT_*, EVENT_*, GREENLIGHT_*,
//	OUTPUT_*, NEEDS_*, SECRET_*, then step env (applied by ExpandStep)
type Scope map[string]string

// NewScope returns an empty scope.
func NewScope() Scope {
	return make(Scope)
}

// Overlay copies vars into the scope, shadowing existing values.
func (s Scope) Overlay(vars map[string]string) Scope {
	for name, value := range vars {
		s[name] = value
	}
	return s
}

// OverlayPrefixed copies vars into the scope under prefix + the
// canonical variable form of each key (uppercased, dashes folded to
// underscores). INPUT_, MATRIX_, SECRET_, and the per-step OUTPUT_
// and per-job NEEDS_ families are built this way.
func (s Scope) OverlayPrefixed(prefix string, vars map[string]string) Scope {
	for name, value := range vars {
		s[prefix+VariableName(name)] = value
	}
	return s
}

// Set assigns a single variable.
func (s Scope) Set(name, value string) Scope {
	s[name] = value
	return s
}

// Clone returns an independent copy of the scope. Job and step scopes
// clone their parent so sibling branches never observe each other's
// overlays.
func (s Scope) Clone() Scope {
	clone := make(Scope, len(s))
	for name, value := range s {
		clone[name] = value
	}
	return clone
}

// VariableName converts a definition-side name (input, axis, job or
// step ID) to its variable-reference form: uppercased with dashes
// folded to underscores. Job IDs permit dashes but variable names do
// not, so "build-linux" becomes "BUILD_LINUX".
func VariableName(raw string) string {
	return strings.ToUpper(strings.ReplaceAll(raw, "-", "_"))
}
