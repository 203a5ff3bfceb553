// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/greenlight-ci/greenlight/lib/codec"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// RecordFileName is the canonical run record's name inside a run
// directory. The record is the durable source of truth; result.jsonl
// beside it is the crash-readable append log.
const RecordFileName = "run.cbor"

// WriteRecord writes the canonical run record into a run directory,
// atomically replacing any previous record.
func WriteRecord(runDir string, record *workflow.RunRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding run record: %w", err)
	}

	path := filepath.Join(runDir, RecordFileName)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("writing temporary run record: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming run record into place: %w", err)
	}
	return nil
}

// ReadRecord reads the canonical run record from a run directory.
// Returns an error wrapping os.ErrNotExist when the run never
// completed (crash or still in progress).
func ReadRecord(runDir string) (*workflow.RunRecord, error) {
	path := filepath.Join(runDir, RecordFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no run record in %s (run incomplete?): %w", runDir, err)
		}
		return nil, fmt.Errorf("reading run record: %w", err)
	}

	var record workflow.RunRecord
	if err := codec.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding run record %s: %w", path, err)
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("run record %s: %w", path, err)
	}
	return &record, nil
}
