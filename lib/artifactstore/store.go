// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package artifactstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Directory names within the artifact store root.
const (
	blobDir = "blobs"
	tmpDir  = "tmp"
)

// Blob envelope format. Every stored blob opens with a format byte:
// blobFormatPlain for a plain envelope, EncryptedBlobVersion for an
// encrypted one (which wraps a plain envelope).
const (
	blobFormatPlain byte = 0x01

	// plainHeaderSize is the plain envelope header: format byte,
	// compression tag byte, 8-byte big-endian uncompressed size.
	plainHeaderSize = 1 + 1 + 8
)

// maxBlobSize bounds the uncompressed size accepted from an envelope
// header, so a corrupted header cannot trigger an absurd allocation.
const maxBlobSize = 1 << 40

// Store manages the local blob directory. Writes are atomic
// (temp file + rename) and content-addressed, so the store is safe
// for concurrent use by jobs capturing artifacts in parallel: two
// writers storing the same content race benignly toward the same
// final path.
type Store struct {
	root   string
	keys   *KeySet
	logger *slog.Logger
}

// Config configures a Store.
type Config struct {
	// Dir is the store root, typically .greenlight/artifacts.
	Dir string

	// KeyFile is the path to a 32-byte master key (raw or hex). When
	// set, every blob written is encrypted at rest and encrypted
	// blobs can be read back. Empty disables encryption.
	KeyFile string

	// Logger receives store diagnostics. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

// Open creates a Store rooted at cfg.Dir, creating the directory
// structure if needed and loading the master key when configured.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("artifactstore: dir is required")
	}
	for _, dir := range []string{
		cfg.Dir,
		filepath.Join(cfg.Dir, blobDir),
		filepath.Join(cfg.Dir, tmpDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store := &Store{root: cfg.Dir, logger: logger}
	if cfg.KeyFile != "" {
		keys, err := LoadKeySet(cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		store.keys = keys
	}
	return store, nil
}

// Encrypting reports whether the store encrypts new blobs at rest.
func (s *Store) Encrypting() bool {
	return s.keys != nil
}

// Close releases the master key, if any.
func (s *Store) Close() error {
	if s.keys == nil {
		return nil
	}
	return s.keys.Close()
}

// StoreResult is returned by [Store.Write] with metadata about the
// stored blob.
type StoreResult struct {
	// Hash is the blob-domain BLAKE3 hash (the blob identity).
	Hash Hash

	// Ref is the short artifact reference (art-<12 hex chars>).
	Ref string

	// Size is the uncompressed content size in bytes.
	Size int64

	// StoredSize is the size of the envelope on disk.
	StoredSize int64

	// Compression is the algorithm the content was stored with.
	// CompressionNone when the selected algorithm could not shrink
	// the content.
	Compression CompressionTag

	// Encrypted reports whether the on-disk envelope is encrypted.
	Encrypted bool

	// Deduplicated reports whether an identical blob already existed,
	// making this write a no-op.
	Deduplicated bool
}

// Write ingests content from r, compresses it, optionally encrypts
// it, and stores it under its content hash. Storing content that
// already exists is a no-op that returns the existing blob's metadata
// with Deduplicated set.
func (s *Store) Write(r io.Reader) (*StoreResult, error) {
	// The whole blob is read into memory: artifacts from local CI
	// jobs are modest, and hashing before writing requires the full
	// content anyway.
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if len(content) == 0 {
		return nil, errors.New("cannot store empty content")
	}

	hash := HashBlob(content)
	path := s.BlobPath(hash)

	if _, err := os.Stat(path); err == nil {
		result, err := s.inspect(hash)
		if err != nil {
			return nil, fmt.Errorf("inspecting existing blob %s: %w", FormatRef(hash), err)
		}
		result.Deduplicated = true
		s.logger.Debug("blob already stored", "ref", result.Ref, "size", result.Size)
		return result, nil
	}

	payload, tag, err := compressWithFallback(content, SelectCompression(content))
	if err != nil {
		return nil, fmt.Errorf("compressing blob: %w", err)
	}

	envelope := encodePlainEnvelope(tag, int64(len(content)), payload)
	encrypted := false
	if s.keys != nil {
		envelope, err = s.keys.Encrypt(envelope, hash)
		if err != nil {
			return nil, fmt.Errorf("encrypting blob %s: %w", FormatRef(hash), err)
		}
		encrypted = true
	}

	if err := s.writeBlobFile(path, envelope); err != nil {
		return nil, err
	}

	result := &StoreResult{
		Hash:        hash,
		Ref:         FormatRef(hash),
		Size:        int64(len(content)),
		StoredSize:  int64(len(envelope)),
		Compression: tag,
		Encrypted:   encrypted,
	}
	s.logger.Debug("stored blob",
		"ref", result.Ref,
		"size", result.Size,
		"stored_size", result.StoredSize,
		"compression", tag.String(),
		"encrypted", encrypted)
	return result, nil
}

// WriteFile stores the contents of the file at path.
func (s *Store) WriteFile(path string) (*StoreResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()
	return s.Write(file)
}

// Read returns the uncompressed, decrypted content of a blob. The
// content is verified against the requested hash before returning.
func (s *Store) Read(hash Hash) ([]byte, error) {
	envelope, err := s.readEnvelope(hash)
	if err != nil {
		return nil, err
	}

	tag, size, payload, err := parsePlainEnvelope(envelope)
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", FormatRef(hash), err)
	}

	content, err := DecompressBlob(payload, tag, int(size))
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", FormatRef(hash), err)
	}

	if HashBlob(content) != hash {
		return nil, fmt.Errorf("blob %s: content hash mismatch (corrupted store)", FormatRef(hash))
	}
	return content, nil
}

// WriteTo writes a blob's content to w. Returns the number of bytes
// written.
func (s *Store) WriteTo(hash Hash, w io.Writer) (int64, error) {
	content, err := s.Read(hash)
	if err != nil {
		return 0, err
	}
	written, err := w.Write(content)
	return int64(written), err
}

// Has reports whether a blob exists in the store.
func (s *Store) Has(hash Hash) bool {
	_, err := os.Stat(s.BlobPath(hash))
	return err == nil
}

// BlobPath returns the on-disk path for a blob: a two-level fanout
// keyed by the first hex byte, keeping directory sizes manageable.
func (s *Store) BlobPath(hash Hash) string {
	hex := FormatHash(hash)
	return filepath.Join(s.root, blobDir, hex[:2], hex)
}

// inspect reads a stored blob's envelope metadata without
// decompressing the content. For encrypted envelopes this requires a
// full decrypt (AEAD authenticates the whole envelope), which also
// verifies integrity.
func (s *Store) inspect(hash Hash) (*StoreResult, error) {
	raw, err := os.ReadFile(s.BlobPath(hash))
	if err != nil {
		return nil, err
	}
	storedSize := int64(len(raw))

	envelope := raw
	encrypted := false
	if len(raw) > 0 && raw[0] == EncryptedBlobVersion {
		if s.keys == nil {
			return nil, fmt.Errorf("blob is encrypted and no key file is configured")
		}
		envelope, err = s.keys.Decrypt(raw, hash)
		if err != nil {
			return nil, err
		}
		encrypted = true
	}

	tag, size, _, err := parsePlainEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	return &StoreResult{
		Hash:        hash,
		Ref:         FormatRef(hash),
		Size:        size,
		StoredSize:  storedSize,
		Compression: tag,
		Encrypted:   encrypted,
	}, nil
}

// readEnvelope reads a blob file and strips the encryption layer if
// present, returning the plain envelope.
func (s *Store) readEnvelope(hash Hash) ([]byte, error) {
	raw, err := os.ReadFile(s.BlobPath(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %s not found: %w", FormatRef(hash), err)
		}
		return nil, fmt.Errorf("reading blob %s: %w", FormatRef(hash), err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("blob %s: empty blob file (corrupted store)", FormatRef(hash))
	}

	switch raw[0] {
	case blobFormatPlain:
		return raw, nil
	case EncryptedBlobVersion:
		if s.keys == nil {
			return nil, fmt.Errorf("blob %s is encrypted and no key file is configured", FormatRef(hash))
		}
		envelope, err := s.keys.Decrypt(raw, hash)
		if err != nil {
			return nil, fmt.Errorf("blob %s: %w", FormatRef(hash), err)
		}
		return envelope, nil
	default:
		return nil, fmt.Errorf("blob %s: unknown envelope format %d", FormatRef(hash), raw[0])
	}
}

// writeBlobFile writes an envelope atomically: into the tmp
// directory first, synced, then renamed to its final fanout path.
func (s *Store) writeBlobFile(path string, envelope []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating fanout directory: %w", err)
	}

	temp, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "blob-*")
	if err != nil {
		return fmt.Errorf("creating temporary blob file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(envelope); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("writing temporary blob file: %w", err)
	}
	if err := temp.Sync(); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("syncing temporary blob file: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing temporary blob file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming blob into place: %w", err)
	}
	return nil
}

// encodePlainEnvelope builds a plain blob envelope: format byte,
// compression tag, 8-byte big-endian uncompressed size, payload.
func encodePlainEnvelope(tag CompressionTag, size int64, payload []byte) []byte {
	envelope := make([]byte, plainHeaderSize+len(payload))
	envelope[0] = blobFormatPlain
	envelope[1] = byte(tag)
	binary.BigEndian.PutUint64(envelope[2:plainHeaderSize], uint64(size))
	copy(envelope[plainHeaderSize:], payload)
	return envelope
}

// parsePlainEnvelope splits a plain envelope into its compression
// tag, uncompressed size, and payload.
func parsePlainEnvelope(envelope []byte) (CompressionTag, int64, []byte, error) {
	if len(envelope) < plainHeaderSize {
		return 0, 0, nil, fmt.Errorf("envelope is %d bytes, minimum is %d", len(envelope), plainHeaderSize)
	}
	if envelope[0] != blobFormatPlain {
		return 0, 0, nil, fmt.Errorf("unknown envelope format %d", envelope[0])
	}
	size := binary.BigEndian.Uint64(envelope[2:plainHeaderSize])
	if size > maxBlobSize {
		return 0, 0, nil, fmt.Errorf("envelope declares %d bytes, limit is %d", size, int64(maxBlobSize))
	}
	return CompressionTag(envelope[1]), int64(size), envelope[plainHeaderSize:], nil
}
