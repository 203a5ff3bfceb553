// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/greenlight-ci/greenlight/lib/config"
)

// testLogger returns a logger that discards all output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const buildWorkflowYAML = `name: build
on:
  push:
    branches: [main]
  workflow_dispatch: {}
jobs:
  build:
    runs-on: [ubuntu-latest]
    steps:
      - run: echo building
`

const nightlyWorkflowYAML = `name: nightly
on:
  schedule:
    - cron: "0 3 * * *"
jobs:
  sweep:
    runs-on: [ubuntu-latest]
    steps:
      - run: echo sweeping
`

// brokenWorkflowYAML parses but fails validation: no triggers, and a
// needs reference to an undeclared job.
const brokenWorkflowYAML = `name: broken
jobs:
  test:
    runs-on: [ubuntu-latest]
    needs: [missing]
    steps:
      - run: echo test
`

// initWorkspace creates a temp directory with a .greenlight/workflows
// layout and chdirs into it for the duration of the test.
func initWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	workflowsDir := filepath.Join(root, config.DefaultDir, "workflows")
	if err := os.MkdirAll(workflowsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(root)
	return root
}

// writeWorkflow writes a workflow file into the workspace and returns
// its path.
func writeWorkflow(t *testing.T, root, name, body string) string {
	t.Helper()
	path := filepath.Join(root, config.DefaultDir, "workflows", name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
