// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// lz4FrameMagic starts every lz4-framed stream.
var lz4FrameMagic = []byte{0x04, 0x22, 0x4d, 0x18}

func TestExportRun(t *testing.T) {
	root := initWorkspace(t)
	record := makeRecord(fixtureID("aa"), "build", workflow.ConclusionSuccess, time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC))
	seedRun(t, root, record)

	output := filepath.Join(root, "bundle.tar.lz4")
	cmd := exportCommand()
	if err := cmd.Flags().Parse([]string{"-o", output}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), []string{"aa"}, testLogger()); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading bundle: %v", err)
	}
	if len(data) < len(lz4FrameMagic) || !bytes.Equal(data[:len(lz4FrameMagic)], lz4FrameMagic) {
		t.Errorf("bundle does not start with the lz4 frame magic: % x", data[:min(8, len(data))])
	}
}

func TestExportDefaultFileName(t *testing.T) {
	root := initWorkspace(t)
	record := makeRecord(fixtureID("aa"), "build", workflow.ConclusionSuccess, time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC))
	seedRun(t, root, record)

	cmd := exportCommand()
	if err := cmd.Flags().Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	if err := cmd.Run(context.Background(), []string{"aa"}, testLogger()); err != nil {
		t.Fatalf("export: %v", err)
	}

	// Written into the working directory, named after the run.
	if _, err := os.Stat(filepath.Join(root, record.RunID+".tar.lz4")); err != nil {
		t.Errorf("default bundle file: %v", err)
	}
}

func TestExportMissingRunDir(t *testing.T) {
	root := initWorkspace(t)
	record := makeRecord(fixtureID("aa"), "build", workflow.ConclusionSuccess, time.Now())
	runDir := seedRun(t, root, record)
	if err := os.RemoveAll(runDir); err != nil {
		t.Fatal(err)
	}

	cmd := exportCommand()
	if err := cmd.Flags().Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	err := cmd.Run(context.Background(), []string{"aa"}, testLogger())
	if err == nil {
		t.Fatal("expected error when the run directory is gone")
	}
	if !strings.Contains(err.Error(), "nothing to export") {
		t.Errorf("error %q should explain there is nothing to export", err.Error())
	}
}
