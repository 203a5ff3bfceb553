// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/greenlight-ci/greenlight/lib/config"
	"github.com/greenlight-ci/greenlight/lib/history"
	"github.com/greenlight-ci/greenlight/lib/runid"
	"github.com/greenlight-ci/greenlight/lib/runner"
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

// makeRecord builds a valid run record fixture. Failure records get a
// failed step, a failed-job marker, and an error message; everything
// else is a clean single-job run.
func makeRecord(runID, workflowName string, conclusion workflow.Conclusion, startedAt time.Time) *workflow.RunRecord {
	record := &workflow.RunRecord{
		Version:     workflow.RunRecordVersion,
		RunID:       runID,
		Workflow:    workflowName,
		Trigger:     workflow.TriggerInfo{Type: workflow.EventWorkflowDispatch},
		Conclusion:  conclusion,
		StartedAt:   startedAt.UTC().Format(time.RFC3339),
		CompletedAt: startedAt.Add(3 * time.Second).UTC().Format(time.RFC3339),
		DurationMS:  3000,
		Jobs: []workflow.JobRecord{
			{
				JobID:      "build",
				Name:       "Build",
				Conclusion: workflow.ConclusionSuccess,
				DurationMS: 2500,
				Steps: []workflow.StepRecord{
					{Name: "compile", Status: workflow.StepOK, DurationMS: 2400},
				},
			},
		},
	}
	if conclusion == workflow.ConclusionFailure {
		record.Jobs[0].Conclusion = workflow.ConclusionFailure
		record.Jobs[0].Error = "compile: exit status 1"
		record.Jobs[0].Steps = []workflow.StepRecord{
			{Name: "compile", Status: workflow.StepFailed, DurationMS: 2400, ExitCode: 1, Error: "exit status 1"},
		}
		record.FailedJob = "build"
		record.ErrorMessage = "compile: exit status 1"
	}
	return record
}

// seedRun records a run in the history database and writes its run
// directory with the canonical record, the way a finished engine run
// leaves the workspace. Returns the run directory.
func seedRun(t *testing.T, root string, record *workflow.RunRecord) string {
	t.Helper()

	store, err := history.Open(history.Config{
		Path:   filepath.Join(root, config.DefaultDir, "history.db"),
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	if err := store.Record(context.Background(), record); err != nil {
		t.Fatalf("record run: %v", err)
	}

	runDir := filepath.Join(root, config.DefaultDir, "runs", record.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := runner.WriteRecord(runDir, record); err != nil {
		t.Fatalf("write record: %v", err)
	}
	return runDir
}
