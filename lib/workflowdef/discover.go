// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflowdef

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// workflowExtensions are the file extensions Discover recognizes, in
// preference order for error messages.
var workflowExtensions = []string{".yml", ".yaml", ".jsonc", ".json"}

// Discover scans a workflows directory and returns workflow names
// mapped to their file paths, names sorted for deterministic listing.
// Dotfiles and subdirectories are skipped. Two files with the same
// stem (comprehensive.yml and comprehensive.jsonc) are an error: the
// name must identify exactly one definition.
func Discover(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading workflows directory: %w", err)
	}

	found := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !hasWorkflowExtension(entry.Name()) {
			continue
		}

		name := NameFromPath(entry.Name())
		path := filepath.Join(dir, entry.Name())
		if existing, dup := found[name]; dup {
			return nil, fmt.Errorf(
				"workflow name %q is ambiguous: %s and %s",
				name, existing, path,
			)
		}
		found[name] = path
	}

	return found, nil
}

// Names returns the sorted workflow names from a Discover result.
func Names(workflows map[string]string) []string {
	names := make([]string, 0, len(workflows))
	for name := range workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func hasWorkflowExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range workflowExtensions {
		if ext == known {
			return true
		}
	}
	return false
}
