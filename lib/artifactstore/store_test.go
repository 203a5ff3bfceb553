// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package artifactstore

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Dir: filepath.Join(t.TempDir(), "artifacts")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func openEncryptedTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "master.key")
	key := bytes.Repeat([]byte{0x5A}, KeySize)
	if err := os.WriteFile(keyPath, key, 0600); err != nil {
		t.Fatal(err)
	}

	store, err := Open(Config{
		Dir:     filepath.Join(dir, "artifacts"),
		KeyFile: keyPath,
	})
	if err != nil {
		t.Fatalf("Open with key file: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	content := []byte("test output from a build step\nall checks passed\n")

	result, err := store.Write(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if result.Hash != HashBlob(content) {
		t.Error("result hash does not match content hash")
	}
	if result.Ref != FormatRef(result.Hash) {
		t.Errorf("result ref %q does not match hash", result.Ref)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("result size %d, want %d", result.Size, len(content))
	}
	if result.Encrypted {
		t.Error("store without key file should not encrypt")
	}
	if result.Deduplicated {
		t.Error("first write should not be deduplicated")
	}

	read, err := store.Read(result.Hash)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(read, content) {
		t.Error("read content does not match written content")
	}
}

func TestWriteDeduplicates(t *testing.T) {
	store := openTestStore(t)
	content := []byte("identical artifact captured by two jobs")

	first, err := store.Write(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	second, err := store.Write(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	if !second.Deduplicated {
		t.Error("second write of identical content should be deduplicated")
	}
	if second.Hash != first.Hash {
		t.Error("deduplicated write returned a different hash")
	}
	if second.Size != first.Size || second.Compression != first.Compression {
		t.Error("deduplicated metadata does not match the original write")
	}
}

func TestWriteSelectsCompression(t *testing.T) {
	store := openTestStore(t)

	t.Run("text gets zstd", func(t *testing.T) {
		text := bytes.Repeat([]byte("line of log output\n"), 1000)
		result, err := store.Write(bytes.NewReader(text))
		if err != nil {
			t.Fatal(err)
		}
		if result.Compression != CompressionZstd {
			t.Errorf("compression = %s, want zstd", result.Compression)
		}
		if result.StoredSize >= result.Size {
			t.Error("text blob did not shrink on disk")
		}
	})

	t.Run("random falls back to none", func(t *testing.T) {
		random := make([]byte, 64*1024)
		rand.Read(random)
		result, err := store.Write(bytes.NewReader(random))
		if err != nil {
			t.Fatal(err)
		}
		if result.Compression != CompressionNone {
			t.Errorf("compression = %s, want none", result.Compression)
		}
	})
}

func TestWriteRejectsEmpty(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Write(bytes.NewReader(nil)); err == nil {
		t.Error("Write of empty content should fail")
	}
}

func TestWriteFile(t *testing.T) {
	store := openTestStore(t)
	path := filepath.Join(t.TempDir(), "report.txt")
	content := []byte("coverage: 81.4% of statements\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	result, err := store.WriteFile(path)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	read, err := store.Read(result.Hash)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(read, content) {
		t.Error("WriteFile roundtrip mismatch")
	}
}

func TestWriteFileMissing(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.WriteFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("WriteFile of missing path should fail")
	}
}

func TestReadMissingBlob(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Read(HashBlob([]byte("never stored")))
	if err == nil {
		t.Fatal("Read of missing blob should fail")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error should mention not found, got: %v", err)
	}
}

func TestHas(t *testing.T) {
	store := openTestStore(t)
	content := []byte("presence check")

	hash := HashBlob(content)
	if store.Has(hash) {
		t.Error("Has should be false before writing")
	}
	if _, err := store.Write(bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}
	if !store.Has(hash) {
		t.Error("Has should be true after writing")
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	store := openTestStore(t)
	content := bytes.Repeat([]byte("stable bytes "), 100)

	result, err := store.Write(bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}

	// Flip a payload byte on disk.
	path := store.BlobPath(result.Hash)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-1] ^= 0xFF
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Read(result.Hash); err == nil {
		t.Error("Read of corrupted blob should fail")
	}
}

func TestEncryptedWriteReadRoundTrip(t *testing.T) {
	store := openEncryptedTestStore(t)
	content := []byte("secret build output")

	result, err := store.Write(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !result.Encrypted {
		t.Error("store with key file should encrypt")
	}

	// The on-disk envelope must not contain the plaintext.
	raw, err := os.ReadFile(store.BlobPath(result.Hash))
	if err != nil {
		t.Fatal(err)
	}
	if raw[0] != EncryptedBlobVersion {
		t.Errorf("envelope format byte = %#x, want %#x", raw[0], EncryptedBlobVersion)
	}
	if bytes.Contains(raw, content) {
		t.Error("plaintext visible in encrypted envelope")
	}

	read, err := store.Read(result.Hash)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(read, content) {
		t.Error("encrypted roundtrip mismatch")
	}
}

func TestEncryptedDeduplicates(t *testing.T) {
	store := openEncryptedTestStore(t)
	content := []byte("encrypted and deduplicated")

	if _, err := store.Write(bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}
	second, err := store.Write(bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if !second.Deduplicated {
		t.Error("second write should be deduplicated")
	}
	if !second.Encrypted {
		t.Error("deduplicated result should report the stored encryption state")
	}
}

func TestEncryptedBlobUnreadableWithoutKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "master.key")
	if err := os.WriteFile(keyPath, bytes.Repeat([]byte{0x77}, KeySize), 0600); err != nil {
		t.Fatal(err)
	}

	storeDir := filepath.Join(dir, "artifacts")
	encrypting, err := Open(Config{Dir: storeDir, KeyFile: keyPath})
	if err != nil {
		t.Fatal(err)
	}
	result, err := encrypting.Write(strings.NewReader("locked away"))
	if err != nil {
		t.Fatal(err)
	}
	encrypting.Close()

	// Reopen the same directory without the key.
	plain, err := Open(Config{Dir: storeDir})
	if err != nil {
		t.Fatal(err)
	}
	defer plain.Close()

	_, err = plain.Read(result.Hash)
	if err == nil {
		t.Fatal("Read of encrypted blob without key should fail")
	}
	if !strings.Contains(err.Error(), "no key file") {
		t.Errorf("error should mention the missing key file, got: %v", err)
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open without Dir should fail")
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Write(strings.NewReader("tidy")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(store.root, tmpDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("tmp directory has %d leftover files", len(entries))
	}
}

func TestBlobPathFanout(t *testing.T) {
	store := openTestStore(t)
	hash := HashBlob([]byte("fanout"))
	path := store.BlobPath(hash)

	hex := FormatHash(hash)
	wantSuffix := filepath.Join(blobDir, hex[:2], hex)
	if !strings.HasSuffix(path, wantSuffix) {
		t.Errorf("blob path %q does not end with fanout %q", path, wantSuffix)
	}
}
