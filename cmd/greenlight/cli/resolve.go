// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"strings"

	"github.com/junegunn/fzf/src/util"

	"github.com/greenlight-ci/greenlight/lib/tui"
)

// ResolveName maps a possibly partial query to one of names. An exact
// match always wins. Otherwise the query is fuzzy-scored against every
// name and the unique best match is taken; a tie between top-scoring
// names is ambiguous and reported with the candidates. An empty query
// resolves only when a single name exists.
func ResolveName(names []string, query string) (string, error) {
	if query == "" {
		if len(names) == 1 {
			return names[0], nil
		}
		return "", fmt.Errorf("workflow name required (have: %s)", strings.Join(names, ", "))
	}

	for _, name := range names {
		if name == query {
			return name, nil
		}
	}

	pattern := []rune(query)
	slab := util.MakeSlab(100*1024, 2048)

	best := ""
	bestScore := 0
	var tied []string
	for _, name := range names {
		result := tui.FuzzyMatch(name, pattern, slab)
		if result.Score <= 0 {
			continue
		}
		switch {
		case result.Score > bestScore:
			bestScore = result.Score
			best = name
			tied = tied[:0]
		case result.Score == bestScore:
			tied = append(tied, name)
		}
	}

	if best == "" {
		return "", fmt.Errorf("no workflow matches %q (have: %s)", query, strings.Join(names, ", "))
	}
	if len(tied) > 0 {
		candidates := append([]string{best}, tied...)
		return "", fmt.Errorf("workflow name %q is ambiguous: %s", query, strings.Join(candidates, ", "))
	}
	return best, nil
}
