// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package artifactstore

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pierrec/lz4/v4"
)

// ExportRun streams a portable bundle of a run as an lz4-framed tar:
// every file in the run directory under run/, and every blob the
// run's artifact index references under blobs/<full hex>. Blob
// envelopes are copied verbatim, so an export of an encrypted store
// stays encrypted.
func ExportRun(runDir string, store *Store, w io.Writer) error {
	lzWriter := lz4.NewWriter(w)
	tarWriter := tar.NewWriter(lzWriter)

	if err := addRunFiles(tarWriter, runDir); err != nil {
		return err
	}
	if err := addReferencedBlobs(tarWriter, runDir, store); err != nil {
		return err
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("finalizing tar stream: %w", err)
	}
	if err := lzWriter.Close(); err != nil {
		return fmt.Errorf("finalizing lz4 stream: %w", err)
	}
	return nil
}

// addRunFiles walks the run directory and adds every regular file to
// the tar under run/. WalkDir visits in lexical order, so the bundle
// layout is deterministic.
func addRunFiles(tarWriter *tar.Writer, runDir string) error {
	return filepath.WalkDir(runDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking run directory: %w", err)
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		relative, err := filepath.Rel(runDir, path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("building tar header for %s: %w", path, err)
		}
		header.Name = "run/" + filepath.ToSlash(relative)

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("writing tar header for %s: %w", relative, err)
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		if _, err := io.Copy(tarWriter, file); err != nil {
			file.Close()
			return fmt.Errorf("copying %s into bundle: %w", relative, err)
		}
		return file.Close()
	})
}

// addReferencedBlobs adds the stored envelope of every blob the run's
// artifact index references. A run without an index exports cleanly
// with no blobs section.
func addReferencedBlobs(tarWriter *tar.Writer, runDir string, store *Store) error {
	index, err := ReadIndex(runDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	// Deduplicate: several entries may reference the same blob.
	seen := make(map[string]Hash)
	for _, entry := range index.Entries {
		hash, err := ParseHash(entry.Hash)
		if err != nil {
			return fmt.Errorf("artifact %q: %w", entry.Name, err)
		}
		seen[entry.Hash] = hash
	}

	hexes := make([]string, 0, len(seen))
	for hex := range seen {
		hexes = append(hexes, hex)
	}
	sort.Strings(hexes)

	for _, hex := range hexes {
		hash := seen[hex]
		path := store.BlobPath(hash)

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("blob %s referenced by index is missing: %w", FormatRef(hash), err)
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("building tar header for blob %s: %w", FormatRef(hash), err)
		}
		header.Name = "blobs/" + hex

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("writing tar header for blob %s: %w", FormatRef(hash), err)
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening blob %s: %w", FormatRef(hash), err)
		}
		if _, err := io.Copy(tarWriter, file); err != nil {
			file.Close()
			return fmt.Errorf("copying blob %s into bundle: %w", FormatRef(hash), err)
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("closing blob %s: %w", FormatRef(hash), err)
		}
	}
	return nil
}
