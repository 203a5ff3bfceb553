// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package artifactstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/greenlight-ci/greenlight/lib/codec"
)

// IndexFileName is the artifact index's name inside a run directory.
const IndexFileName = "artifacts.cbor"

// IndexVersion is the current index format version.
const IndexVersion = 1

// IndexEntry describes one captured artifact. Entries use cbor struct
// tags; json tags serve as fallback for the CBOR library and for
// --json CLI output.
type IndexEntry struct {
	// Name is the artifact's name: the captured path relative to the
	// workspace root, slash-separated.
	Name string `cbor:"name" json:"name"`

	// Job is the ID of the job whose artifact glob captured the file,
	// including the matrix label when the job has a matrix.
	Job string `cbor:"job" json:"job"`

	// Hash is the full hex blob hash.
	Hash string `cbor:"hash" json:"hash"`

	// Ref is the short artifact reference (art-<12 hex chars>).
	Ref string `cbor:"ref" json:"ref"`

	// Size is the uncompressed content size in bytes.
	Size int64 `cbor:"size" json:"size"`

	// Compression names the algorithm the blob was stored with.
	Compression string `cbor:"compression" json:"compression"`

	// Encrypted reports whether the blob is encrypted at rest.
	Encrypted bool `cbor:"encrypted" json:"encrypted"`
}

// Index is the per-run artifact index, stored as artifacts.cbor in
// the run directory.
type Index struct {
	Version int          `cbor:"version" json:"version"`
	RunID   string       `cbor:"run_id"  json:"run_id"`
	Entries []IndexEntry `cbor:"entries" json:"entries"`
}

// Find returns all entries captured under the given name. Multiple
// entries share a name when several matrix combinations capture the
// same path.
func (x *Index) Find(name string) []IndexEntry {
	var matches []IndexEntry
	for _, entry := range x.Entries {
		if entry.Name == name {
			matches = append(matches, entry)
		}
	}
	return matches
}

// WriteIndex writes the artifact index into a run directory,
// atomically replacing any existing index.
func WriteIndex(runDir string, index *Index) error {
	data, err := codec.Marshal(index)
	if err != nil {
		return fmt.Errorf("encoding artifact index: %w", err)
	}

	path := filepath.Join(runDir, IndexFileName)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("writing temporary artifact index: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming artifact index into place: %w", err)
	}
	return nil
}

// ReadIndex reads the artifact index from a run directory. Returns an
// error wrapping os.ErrNotExist when the run captured no artifacts.
func ReadIndex(runDir string) (*Index, error) {
	path := filepath.Join(runDir, IndexFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no artifact index in %s: %w", runDir, err)
		}
		return nil, fmt.Errorf("reading artifact index: %w", err)
	}

	var index Index
	if err := codec.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decoding artifact index %s: %w", path, err)
	}
	if index.Version != IndexVersion {
		return nil, fmt.Errorf("artifact index %s has version %d, want %d", path, index.Version, IndexVersion)
	}
	return &index, nil
}
