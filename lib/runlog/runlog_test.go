// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

func createTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	log, err := Create(path, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log, path
}

func readResultLog(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading result log: %v", err)
	}
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("parsing JSONL line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func assertField(t *testing.T, entry map[string]any, key, expected string) {
	t.Helper()
	value, ok := entry[key].(string)
	if !ok {
		t.Errorf("entry missing string field %q (entry: %v)", key, entry)
		return
	}
	if value != expected {
		t.Errorf("entry[%q] = %q, want %q", key, value, expected)
	}
}

func assertFieldFloat(t *testing.T, entry map[string]any, key string, expected float64) {
	t.Helper()
	value, ok := entry[key].(float64)
	if !ok {
		t.Errorf("entry missing numeric field %q (entry: %v)", key, entry)
		return
	}
	if value != expected {
		t.Errorf("entry[%q] = %v, want %v", key, value, expected)
	}
}

func TestSuccessfulRun(t *testing.T) {
	log, path := createTestLog(t)

	log.WriteStart("run-0000000000000000000000001", "ci", workflow.EventPush, 2)
	log.WriteStep("build", "", 0, &workflow.StepRecord{
		Name:       "compile",
		Status:     workflow.StepOK,
		DurationMS: 1200,
		Outputs:    map[string]string{"binary": "out/app"},
	})
	log.WriteJob(&workflow.JobRecord{
		JobID:      "build",
		Name:       "Build",
		Conclusion: workflow.ConclusionSuccess,
		DurationMS: 1250,
	})
	log.WriteStep("lint", "", 0, &workflow.StepRecord{
		Name:       "vet",
		Status:     workflow.StepOK,
		DurationMS: 400,
	})
	log.WriteJob(&workflow.JobRecord{
		JobID:      "lint",
		Name:       "Lint",
		Conclusion: workflow.ConclusionSuccess,
		DurationMS: 430,
	})
	log.WriteComplete(1700)

	entries := readResultLog(t, path)
	if len(entries) != 6 {
		t.Fatalf("expected 6 JSONL entries, got %d", len(entries))
	}

	assertField(t, entries[0], "type", "start")
	assertField(t, entries[0], "run_id", "run-0000000000000000000000001")
	assertField(t, entries[0], "workflow", "ci")
	assertField(t, entries[0], "event", "push")
	assertFieldFloat(t, entries[0], "job_count", 2)
	if _, ok := entries[0]["timestamp"].(string); !ok {
		t.Error("start entry missing timestamp")
	}

	assertField(t, entries[1], "type", "step")
	assertField(t, entries[1], "job", "build")
	assertField(t, entries[1], "name", "compile")
	assertField(t, entries[1], "status", "ok")
	assertFieldFloat(t, entries[1], "duration_ms", 1200)
	outputs, ok := entries[1]["outputs"].(map[string]any)
	if !ok {
		t.Fatal("step entry missing outputs")
	}
	if outputs["binary"] != "out/app" {
		t.Errorf("step outputs = %v, want binary=out/app", outputs)
	}

	assertField(t, entries[2], "type", "job")
	assertField(t, entries[2], "job", "build")
	assertField(t, entries[2], "conclusion", "success")

	assertField(t, entries[5], "type", "complete")
	assertField(t, entries[5], "status", "ok")
	assertFieldFloat(t, entries[5], "duration_ms", 1700)
}

func TestFailedRun(t *testing.T) {
	log, path := createTestLog(t)

	log.WriteStart("run-0000000000000000000000002", "ci", workflow.EventPush, 1)
	log.WriteStep("test", "", 0, &workflow.StepRecord{
		Name:       "unit tests",
		Status:     workflow.StepFailed,
		DurationMS: 900,
		ExitCode:   1,
		Error:      "exit status 1",
	})
	log.WriteJob(&workflow.JobRecord{
		JobID:      "test",
		Name:       "Test",
		Conclusion: workflow.ConclusionFailure,
		DurationMS: 920,
		Error:      `step "unit tests" failed: exit status 1`,
	})
	log.WriteFailed("test", `job "test" failed`, 950)

	entries := readResultLog(t, path)
	if len(entries) != 4 {
		t.Fatalf("expected 4 JSONL entries, got %d", len(entries))
	}

	assertField(t, entries[1], "status", "failed")
	assertField(t, entries[1], "error", "exit status 1")
	assertField(t, entries[2], "conclusion", "failure")
	assertField(t, entries[3], "type", "failed")
	assertField(t, entries[3], "status", "failed")
	assertField(t, entries[3], "failed_job", "test")
}

func TestCancelledRun(t *testing.T) {
	log, path := createTestLog(t)

	log.WriteStart("run-0000000000000000000000003", "deploy", workflow.EventWorkflowDispatch, 1)
	log.WriteCancelled("interrupt", 300)

	entries := readResultLog(t, path)
	if len(entries) != 2 {
		t.Fatalf("expected 2 JSONL entries, got %d", len(entries))
	}
	assertField(t, entries[1], "type", "cancelled")
	assertField(t, entries[1], "status", "cancelled")
	assertField(t, entries[1], "reason", "interrupt")
}

func TestMatrixLabelRecorded(t *testing.T) {
	log, path := createTestLog(t)

	log.WriteStart("run-0000000000000000000000004", "ci", workflow.EventPush, 2)
	log.WriteStep("test", "go=1.24", 0, &workflow.StepRecord{
		Name:   "unit tests",
		Status: workflow.StepOK,
	})
	log.WriteJob(&workflow.JobRecord{
		JobID:       "test",
		Name:        "Test",
		MatrixLabel: "go=1.24",
		Conclusion:  workflow.ConclusionSuccess,
	})
	log.WriteComplete(100)

	entries := readResultLog(t, path)
	assertField(t, entries[1], "matrix_label", "go=1.24")
	assertField(t, entries[2], "matrix_label", "go=1.24")
}

func TestOmittedFieldsAbsent(t *testing.T) {
	log, path := createTestLog(t)

	log.WriteStep("build", "", 0, &workflow.StepRecord{
		Name:   "compile",
		Status: workflow.StepOK,
	})

	entries := readResultLog(t, path)
	entry := entries[0]
	for _, key := range []string{"matrix_label", "error", "outputs"} {
		if _, present := entry[key]; present {
			t.Errorf("zero-valued field %q should be omitted, entry: %v", key, entry)
		}
	}
}

func TestNilLogIsSafe(t *testing.T) {
	var log *Log
	log.WriteStart("run-x", "ci", workflow.EventPush, 1)
	log.WriteStep("build", "", 0, &workflow.StepRecord{Name: "compile"})
	log.WriteJob(&workflow.JobRecord{JobID: "build"})
	log.WriteComplete(0)
	log.WriteFailed("build", "boom", 0)
	log.WriteCancelled("interrupt", 0)
	if err := log.Close(); err != nil {
		t.Errorf("Close on nil log: %v", err)
	}
}

func TestConcurrentWritersProduceWholeLines(t *testing.T) {
	log, path := createTestLog(t)

	const writers = 8
	const stepsPerWriter = 25
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			jobID := fmt.Sprintf("job-%d", w)
			for i := range stepsPerWriter {
				log.WriteStep(jobID, "", i, &workflow.StepRecord{
					Name:   fmt.Sprintf("step-%d", i),
					Status: workflow.StepOK,
				})
			}
		}()
	}
	wg.Wait()

	// Every line must parse: interleaved partial writes would corrupt
	// the JSONL stream.
	entries := readResultLog(t, path)
	if len(entries) != writers*stepsPerWriter {
		t.Fatalf("expected %d entries, got %d", writers*stepsPerWriter, len(entries))
	}
	for _, entry := range entries {
		assertField(t, entry, "type", "step")
	}
}
