// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/greenlight-ci/greenlight/lib/artifactstore"
)

func TestGetArtifact(t *testing.T) {
	root := initWorkspace(t)
	runID := fixtureID("aa")
	seedArtifacts(t, root, runID, []fixtureArtifact{
		{name: "dist/app.tar.gz", job: "build", content: "binary payload"},
	})

	cmd := getCommand()
	if err := cmd.Flags().Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), []string{runID, "dist/app.tar.gz"}, testLogger()); err != nil {
		t.Fatalf("artifacts get: %v", err)
	}

	// Default output is the artifact's base name in the current
	// directory, which initWorkspace pointed at the workspace root.
	content, err := os.ReadFile(filepath.Join(root, "app.tar.gz"))
	if err != nil {
		t.Fatalf("reading retrieved artifact: %v", err)
	}
	if string(content) != "binary payload" {
		t.Errorf("retrieved content = %q, want the stored payload", content)
	}
}

func TestGetOutputPath(t *testing.T) {
	root := initWorkspace(t)
	runID := fixtureID("aa")
	seedArtifacts(t, root, runID, []fixtureArtifact{
		{name: "coverage.out", job: "test", content: "mode: set\n"},
	})

	output := filepath.Join(t.TempDir(), "cov.out")
	cmd := getCommand()
	if err := cmd.Flags().Parse([]string{"-o", output}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), []string{"aa", "coverage.out"}, testLogger()); err != nil {
		t.Fatalf("artifacts get -o: %v", err)
	}

	content, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading retrieved artifact: %v", err)
	}
	if string(content) != "mode: set\n" {
		t.Errorf("retrieved content = %q", content)
	}
}

func TestGetUnknownName(t *testing.T) {
	root := initWorkspace(t)
	runID := fixtureID("aa")
	seedArtifacts(t, root, runID, []fixtureArtifact{
		{name: "coverage.out", job: "test", content: "mode: set\n"},
	})

	cmd := getCommand()
	if err := cmd.Flags().Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	err := cmd.Run(context.Background(), []string{runID, "missing.txt"}, testLogger())
	if err == nil || !strings.Contains(err.Error(), "coverage.out") {
		t.Fatalf("error should name the captured artifacts, got %v", err)
	}
}

func TestGetMatrixDuplicate(t *testing.T) {
	root := initWorkspace(t)
	runID := fixtureID("aa")
	seedArtifacts(t, root, runID, []fixtureArtifact{
		{name: "coverage.out", job: "test (go: 1.24)", content: "coverage for 1.24"},
		{name: "coverage.out", job: "test (go: 1.25)", content: "coverage for 1.25"},
	})

	// Without --job the name is ambiguous.
	cmd := getCommand()
	if err := cmd.Flags().Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	err := cmd.Run(context.Background(), []string{runID, "coverage.out"}, testLogger())
	if err == nil || !strings.Contains(err.Error(), "--job") {
		t.Fatalf("ambiguous name should point at --job, got %v", err)
	}

	cmd = getCommand()
	if err := cmd.Flags().Parse([]string{"--job", "test (go: 1.25)"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), []string{runID, "coverage.out"}, testLogger()); err != nil {
		t.Fatalf("artifacts get --job: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(root, "coverage.out"))
	if err != nil {
		t.Fatalf("reading retrieved artifact: %v", err)
	}
	if string(content) != "coverage for 1.25" {
		t.Errorf("retrieved content = %q, want the 1.25 combination's copy", content)
	}
}

func TestGetNoArtifacts(t *testing.T) {
	root := initWorkspace(t)
	runID := fixtureID("aa")
	seedArtifacts(t, root, runID, nil)

	cmd := getCommand()
	if err := cmd.Flags().Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	err := cmd.Run(context.Background(), []string{runID, "anything"}, testLogger())
	if err == nil || !strings.Contains(err.Error(), "captured no artifacts") {
		t.Fatalf("expected a no-artifacts error, got %v", err)
	}
}

func TestGetWrongArgumentCount(t *testing.T) {
	t.Parallel()

	cmd := getCommand()
	if err := cmd.Flags().Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), []string{"only-run-id"}, testLogger()); err == nil {
		t.Fatal("expected error without an artifact name")
	}
}

func TestPickEntry(t *testing.T) {
	t.Parallel()

	index := &artifactstore.Index{
		Version: artifactstore.IndexVersion,
		RunID:   fixtureID("aa"),
		Entries: []artifactstore.IndexEntry{
			{Name: "coverage.out", Job: "test (go: 1.24)", Hash: "24"},
			{Name: "coverage.out", Job: "test (go: 1.25)", Hash: "25"},
			{Name: "dist/app", Job: "build", Hash: "aa"},
		},
	}

	entry, err := pickEntry(index, "dist/app", "")
	if err != nil || entry.Job != "build" {
		t.Fatalf("pickEntry unique = %+v, %v", entry, err)
	}

	entry, err = pickEntry(index, "coverage.out", "test (go: 1.24)")
	if err != nil || entry.Hash != "24" {
		t.Fatalf("pickEntry with job = %+v, %v", entry, err)
	}

	if _, err := pickEntry(index, "coverage.out", ""); err == nil {
		t.Fatal("duplicate name without a job filter should error")
	}
	if _, err := pickEntry(index, "coverage.out", "lint"); err == nil {
		t.Fatal("job filter matching nothing should error")
	}
	if _, err := pickEntry(index, "nope", ""); err == nil {
		t.Fatal("unknown name should error")
	}
}
