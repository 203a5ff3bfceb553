// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package content provides embedded starter workflow definitions.
// Files are embedded at compile time via go:embed. The primary
// consumer is "greenlight init", which writes a starter workflow
// into a project's .greenlight/workflows directory; the embedded
// definitions also anchor regression tests for the workflow parser,
// since they exercise every construct the starter uses.
package content

import (
	"embed"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
	"github.com/greenlight-ci/greenlight/lib/workflowdef"
)

//go:embed workflow/*.yml
var workflowFiles embed.FS

// StarterName is the workflow written by "greenlight init" when no
// template is named.
const StarterName = "comprehensive"

// Workflow is an embedded workflow definition with its name (derived
// from the filename), raw source, and parsed form.
type Workflow struct {
	// Name is the workflow name used on disk and in command output.
	// Derived from the filename without extension (e.g.
	// "comprehensive" from "comprehensive.yml").
	Name string

	// Source is the raw embedded file. "greenlight init" writes these
	// exact bytes so comments and formatting survive.
	Source []byte

	// Definition is the parsed workflow.
	Definition workflow.Workflow

	// SourceHash is the BLAKE3 hex digest of Source. Init compares it
	// against an existing file to distinguish "already initialized"
	// from "locally modified".
	SourceHash string
}

// Workflows returns all embedded workflow definitions, parsed and
// validated. An error here indicates a bug in the embedded content,
// not a runtime condition.
func Workflows() ([]Workflow, error) {
	entries, err := workflowFiles.ReadDir("workflow")
	if err != nil {
		return nil, fmt.Errorf("reading embedded workflow directory: %w", err)
	}

	var workflows []Workflow
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := "workflow/" + entry.Name()
		data, err := workflowFiles.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading embedded workflow %s: %w", path, err)
		}

		parsed, err := workflowdef.Parse(data, workflowdef.FormatFromPath(entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("parsing embedded workflow %s: %w", path, err)
		}
		if parsed.Name == "" {
			parsed.Name = workflowdef.NameFromPath(entry.Name())
		}

		issues := workflowdef.Validate(parsed)
		if len(issues) > 0 {
			return nil, fmt.Errorf("validating embedded workflow %s: %s", path, strings.Join(issues, "; "))
		}

		hash := blake3.Sum256(data)

		workflows = append(workflows, Workflow{
			Name:       workflowdef.NameFromPath(entry.Name()),
			Source:     data,
			Definition: *parsed,
			SourceHash: hex.EncodeToString(hash[:]),
		})
	}

	return workflows, nil
}

// Starter returns the default starter workflow.
func Starter() (Workflow, error) {
	workflows, err := Workflows()
	if err != nil {
		return Workflow{}, err
	}
	for _, wf := range workflows {
		if wf.Name == StarterName {
			return wf, nil
		}
	}
	return Workflow{}, fmt.Errorf("embedded starter workflow %q not found", StarterName)
}
