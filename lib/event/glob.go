// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter patterns support glob syntax against branch names, tag
// names, and file paths: * matches any run of characters except /,
// ** matches any run including /, ? matches a single character
// except /. A leading ! negates the pattern.
//
// A filter list is evaluated in order. A value matches when at least
// one positive pattern accepts it and the last pattern that applies
// to it is not a negation. A list containing only negations starts
// from an implicit match-all.

type filterPattern struct {
	negated bool
	source  string
	re      *regexp.Regexp
}

func compileFilter(pattern string) (filterPattern, error) {
	source := pattern
	negated := strings.HasPrefix(pattern, "!")
	if negated {
		pattern = pattern[1:]
	}
	if pattern == "" {
		return filterPattern{}, fmt.Errorf("empty filter pattern %q", source)
	}

	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				sb.WriteString(".*")
				i++
			} else {
				sb.WriteString("[^/]*")
			}
		case '?':
			sb.WriteString("[^/]")
		default:
			sb.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return filterPattern{}, fmt.Errorf("invalid filter pattern %q: %v", source, err)
	}
	return filterPattern{negated: negated, source: source, re: re}, nil
}

// matchFilters reports whether value passes the ordered filter list.
func matchFilters(filters []string, value string) (bool, error) {
	positives := false
	for _, f := range filters {
		if !strings.HasPrefix(f, "!") {
			positives = true
			break
		}
	}
	// Negation-only lists subtract from everything.
	matched := !positives

	for _, f := range filters {
		p, err := compileFilter(f)
		if err != nil {
			return false, err
		}
		if p.re.MatchString(value) {
			matched = !p.negated
		}
	}
	return matched, nil
}

// MatchGlob reports whether value matches a single positive pattern.
// Artifact capture globs share the filter dialect (*, **, ?) but have
// no list semantics, so negation is rejected.
func MatchGlob(pattern, value string) (bool, error) {
	p, err := compileFilter(pattern)
	if err != nil {
		return false, err
	}
	if p.negated {
		return false, fmt.Errorf("negated pattern %q is not valid for path globs", pattern)
	}
	return p.re.MatchString(value), nil
}

// ValidateFilters compiles every pattern, returning one message per
// invalid entry. Workflow validation calls this so bad patterns are
// reported at load time rather than at match time.
func ValidateFilters(filters []string) []string {
	var issues []string
	for _, f := range filters {
		if _, err := compileFilter(f); err != nil {
			issues = append(issues, err.Error())
		}
	}
	return issues
}
