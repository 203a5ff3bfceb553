// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflowdef

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// Format identifies a workflow source format.
type Format int

const (
	// FormatYAML is the primary authoring format.
	FormatYAML Format = iota

	// FormatJSONC is JSON extended with // line comments, /* block
	// comments */, and trailing commas. Stripped to plain JSON before
	// decoding (JSON is a YAML subset, so one decoder serves both).
	FormatJSONC
)

// FormatFromPath returns the format implied by a file extension.
// Unrecognized extensions default to YAML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSONC
	default:
		return FormatYAML
	}
}

// Parse decodes workflow source bytes into a Workflow. JSONC input is
// stripped of comments and trailing commas first. Decoding is strict:
// unknown keys, malformed values, and unsupported trigger names are
// errors carrying the offending line number.
//
// Parse performs syntactic decoding only; call Validate for
// structural checks.
func Parse(data []byte, format Format) (*workflow.Workflow, error) {
	if format == FormatJSONC {
		data = jsonc.ToJSON(data)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing workflow: %w", err)
	}

	wf, err := decodeWorkflow(&doc)
	if err != nil {
		return nil, fmt.Errorf("parsing workflow: %w", err)
	}
	return wf, nil
}

// ReadFile reads a workflow file from disk and parses it. The format
// follows the file extension. When the definition carries no name,
// the file's basename (extension stripped) fills it in.
func ReadFile(path string) (*workflow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	wf, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if wf.Name == "" {
		wf.Name = NameFromPath(path)
	}
	return wf, nil
}

// NameFromPath extracts a workflow name from a file path by stripping
// the directory prefix and the file extension. For example,
// ".greenlight/workflows/comprehensive.yml" returns "comprehensive".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	extension := filepath.Ext(base)
	return strings.TrimSuffix(base, extension)
}
