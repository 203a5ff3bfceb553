// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package matrix expands job build matrices into concrete
// combinations. Expansion is deterministic: axes iterate in sorted
// name order (first axis varying slowest), exclude entries subtract
// from the cartesian product, include entries extend or append, and
// the result order never depends on map iteration.
package matrix

import (
	"fmt"
	"sort"
	"strings"

	"github.com/greenlight-ci/greenlight/lib/expand"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// MaxCombinations caps matrix expansion. A workflow that expands
// beyond this is almost certainly a mistake, and the scheduler's
// records and output prefixes are sized for small fan-outs.
const MaxCombinations = 256

// Combination is one expanded matrix entry: axis names (plus any
// include extras) mapped to values.
type Combination struct {
	Values map[string]string
}

// Label renders the combination for display and run records:
// "go=1.24, os=linux", keys sorted. Empty for the no-matrix
// combination.
func (c Combination) Label() string {
	if len(c.Values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(c.Values))
	for key := range c.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = key + "=" + c.Values[key]
	}
	return strings.Join(parts, ", ")
}

// Variables returns the MATRIX_<AXIS> variable map for the
// combination.
func (c Combination) Variables() map[string]string {
	vars := make(map[string]string, len(c.Values))
	for key, value := range c.Values {
		vars["MATRIX_"+expand.VariableName(key)] = value
	}
	return vars
}

// Expand produces the combination list for a matrix spec. A nil spec
// returns a single empty combination, so callers iterate uniformly
// whether or not the job declares a matrix.
//
// Expansion order: the cartesian product of sorted axes, minus
// exclude matches, plus include adjustments. An include entry whose
// axis-valued keys all match an existing combination extends the
// matched combinations with its extra keys; an entry matching nothing
// appends as a new combination. Appended duplicates of an existing
// combination are dropped, since combinations must stay addressable
// by label.
func Expand(spec *workflow.MatrixSpec) ([]Combination, error) {
	if spec == nil {
		return []Combination{{}}, nil
	}

	axes := make([]string, 0, len(spec.Axes))
	for axis := range spec.Axes {
		axes = append(axes, axis)
	}
	sort.Strings(axes)

	// Guard the product size before building it.
	size := 1
	for _, axis := range axes {
		size *= len(spec.Axes[axis])
		if size > MaxCombinations {
			return nil, fmt.Errorf("matrix expands to more than %d combinations", MaxCombinations)
		}
	}

	product := cartesian(axes, spec.Axes)

	var combos []Combination
	for _, values := range product {
		if excluded(values, spec.Exclude) {
			continue
		}
		combos = append(combos, Combination{Values: values})
	}

	for index, entry := range spec.Include {
		if len(entry) == 0 {
			return nil, fmt.Errorf("matrix include[%d] is empty", index)
		}
		combos = applyInclude(combos, entry, spec.Axes)
	}

	if len(combos) > MaxCombinations {
		return nil, fmt.Errorf("matrix expands to %d combinations (limit %d)", len(combos), MaxCombinations)
	}
	return combos, nil
}

// cartesian builds the full product of axis values, first axis
// varying slowest. A matrix with no axes has an empty product:
// include-only matrices build their combinations from the include
// list alone.
func cartesian(axes []string, values map[string][]string) []map[string]string {
	if len(axes) == 0 {
		return nil
	}

	product := []map[string]string{{}}
	for _, axis := range axes {
		next := make([]map[string]string, 0, len(product)*len(values[axis]))
		for _, partial := range product {
			for _, value := range values[axis] {
				grown := make(map[string]string, len(partial)+1)
				for k, v := range partial {
					grown[k] = v
				}
				grown[axis] = value
				next = append(next, grown)
			}
		}
		product = next
	}
	return product
}

// excluded reports whether an exclude entry matches the combination.
// Every key of the entry must match; an entry with a subset of the
// axes excludes all combinations sharing that subset.
func excluded(values map[string]string, exclude []map[string]string) bool {
	for _, entry := range exclude {
		if len(entry) == 0 {
			continue
		}
		matched := true
		for key, want := range entry {
			if values[key] != want {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func applyInclude(combos []Combination, entry map[string]string, axes map[string][]string) []Combination {
	// Split entry keys into axis keys (which select combinations) and
	// extra keys (which extend them).
	extended := false
	for i := range combos {
		matches := true
		for key, want := range entry {
			if _, isAxis := axes[key]; !isAxis {
				continue
			}
			if combos[i].Values[key] != want {
				matches = false
				break
			}
		}
		if !matches {
			continue
		}
		extended = true
		for key, value := range entry {
			if _, isAxis := axes[key]; isAxis {
				continue
			}
			if combos[i].Values == nil {
				combos[i].Values = make(map[string]string)
			}
			combos[i].Values[key] = value
		}
	}
	if extended {
		return combos
	}

	// No combination matched: the entry becomes its own combination,
	// unless an identical one already exists.
	appended := make(map[string]string, len(entry))
	for key, value := range entry {
		appended[key] = value
	}
	for _, existing := range combos {
		if equalValues(existing.Values, appended) {
			return combos
		}
	}
	return append(combos, Combination{Values: appended})
}

func equalValues(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		if b[key] != value {
			return false
		}
	}
	return true
}
