// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package artifacts

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/greenlight-ci/greenlight/lib/artifactstore"
	"github.com/greenlight-ci/greenlight/lib/config"
	"github.com/greenlight-ci/greenlight/lib/history"
	"github.com/greenlight-ci/greenlight/lib/runid"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// testLogger returns a logger that discards all output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// initWorkspace creates a temp workspace with a workflows directory
// and chdirs into it for the duration of the test.
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

// fixtureID builds a deterministic run ID: the stem padded with zeros
// to the full 25-digit width.
func fixtureID(stem string) string {
	const digits = 25
	return runid.Prefix + stem + strings.Repeat("0", digits-len(stem))
}

// fixtureArtifact describes one artifact to seed into a run.
type fixtureArtifact struct {
	name    string
	job     string
	content string
}

// seedArtifacts records a finished run, stores the given artifact
// contents in the blob store, and writes the run's index the way the
// engine leaves things after capture. Returns the run directory.
func seedArtifacts(t *testing.T, root, runID string, artifacts []fixtureArtifact) string {
	t.Helper()

	record := &workflow.RunRecord{
		Version:     workflow.RunRecordVersion,
		RunID:       runID,
		Workflow:    "build",
		Trigger:     workflow.TriggerInfo{Type: workflow.EventWorkflowDispatch},
		Conclusion:  workflow.ConclusionSuccess,
		StartedAt:   time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
		DurationMS:  60_000,
		Jobs: []workflow.JobRecord{
			{
				JobID:      "build",
				Name:       "Build",
				Conclusion: workflow.ConclusionSuccess,
				DurationMS: 59_000,
				Steps: []workflow.StepRecord{
					{Name: "compile", Status: workflow.StepOK, DurationMS: 58_000},
				},
			},
		},
	}

	historyStore, err := history.Open(history.Config{
		Path:   filepath.Join(root, config.DefaultDir, "history.db"),
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer historyStore.Close()
	if err := historyStore.Record(context.Background(), record); err != nil {
		t.Fatalf("record run: %v", err)
	}

	runDir := filepath.Join(root, config.DefaultDir, "runs", runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if len(artifacts) == 0 {
		return runDir
	}

	store, err := artifactstore.Open(artifactstore.Config{
		Dir:    filepath.Join(root, config.DefaultDir, "artifacts"),
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("open artifact store: %v", err)
	}
	defer store.Close()

	index := &artifactstore.Index{Version: artifactstore.IndexVersion, RunID: runID}
	for _, artifact := range artifacts {
		result, err := store.Write(strings.NewReader(artifact.content))
		if err != nil {
			t.Fatalf("store artifact %s: %v", artifact.name, err)
		}
		index.Entries = append(index.Entries, artifactstore.IndexEntry{
			Name:        artifact.name,
			Job:         artifact.job,
			Hash:        artifactstore.FormatHash(result.Hash),
			Ref:         result.Ref,
			Size:        result.Size,
			Compression: result.Compression.String(),
			Encrypted:   result.Encrypted,
		})
	}
	if err := artifactstore.WriteIndex(runDir, index); err != nil {
		t.Fatalf("write artifact index: %v", err)
	}
	return runDir
}
