// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/greenlight-ci/greenlight/lib/artifactstore"
	"github.com/greenlight-ci/greenlight/lib/event"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// captureArtifacts stores the workspace files matching a job's
// artifact globs and returns their records. A pattern matching
// nothing raises a notice, not an error; a storage failure fails the
// capture (and with it the job).
func (e *Engine) captureArtifacts(patterns []string, jobKey string, notice func(string)) ([]workflow.JobArtifact, error) {
	if e.config.Artifacts == nil {
		return nil, errors.New("no artifact store configured")
	}

	files, err := workspaceFiles(e.config.Workspace)
	if err != nil {
		return nil, err
	}

	// First-match order: a file captured by several patterns is
	// stored once.
	seen := make(map[string]bool)
	var matched []string
	for _, pattern := range patterns {
		found := false
		for _, relative := range files {
			ok, err := event.MatchGlob(pattern, relative)
			if err != nil {
				return nil, fmt.Errorf("artifact pattern %q: %w", pattern, err)
			}
			if !ok {
				continue
			}
			found = true
			if !seen[relative] {
				seen[relative] = true
				matched = append(matched, relative)
			}
		}
		if !found {
			notice(fmt.Sprintf("artifact pattern %q matched no files", pattern))
		}
	}

	artifacts := make([]workflow.JobArtifact, 0, len(matched))
	for _, relative := range matched {
		result, err := e.config.Artifacts.WriteFile(filepath.Join(e.config.Workspace, filepath.FromSlash(relative)))
		if err != nil {
			return nil, fmt.Errorf("storing %s: %w", relative, err)
		}
		artifacts = append(artifacts, workflow.JobArtifact{
			Name:      relative,
			Ref:       result.Ref,
			SizeBytes: result.Size,
		})
		e.addIndexEntry(artifactstore.IndexEntry{
			Name:        relative,
			Job:         jobKey,
			Hash:        artifactstore.FormatHash(result.Hash),
			Ref:         result.Ref,
			Size:        result.Size,
			Compression: result.Compression.String(),
			Encrypted:   result.Encrypted,
		})
	}
	return artifacts, nil
}

// addIndexEntry accumulates an entry for the run's artifact index.
// Jobs capture concurrently.
func (e *Engine) addIndexEntry(entry artifactstore.IndexEntry) {
	e.indexMu.Lock()
	e.indexEntries = append(e.indexEntries, entry)
	e.indexMu.Unlock()
}

// workspaceFiles lists the workspace's regular files as sorted
// slash-separated paths relative to the root. Directories named .git
// or .greenlight are not descended at any depth: version control
// internals and greenlight's own run state are never artifacts.
func workspaceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			switch entry.Name() {
			case ".git", ".greenlight":
				if path != root {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		relative, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(relative))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// writeArtifactIndex persists the accumulated entries as the run's
// artifacts.cbor. No entries means no index file.
func (e *Engine) writeArtifactIndex(runDir, runID string) error {
	e.indexMu.Lock()
	entries := make([]artifactstore.IndexEntry, len(e.indexEntries))
	copy(entries, e.indexEntries)
	e.indexMu.Unlock()

	if len(entries) == 0 {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Job != entries[j].Job {
			return entries[i].Job < entries[j].Job
		}
		return entries[i].Name < entries[j].Name
	})
	return artifactstore.WriteIndex(runDir, &artifactstore.Index{
		Version: artifactstore.IndexVersion,
		RunID:   runID,
		Entries: entries,
	})
}
