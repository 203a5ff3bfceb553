// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestReadFromPath_File(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "plain value",
			content:  "my-secret-token",
			expected: "my-secret-token",
		},
		{
			name:     "trailing newline",
			content:  "my-secret-token\n",
			expected: "my-secret-token",
		},
		{
			name:     "trailing whitespace",
			content:  "my-secret-token  \n",
			expected: "my-secret-token",
		},
		{
			name:     "leading whitespace",
			content:  "  my-secret-token",
			expected: "my-secret-token",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(tempDir, test.name)
			if err := os.WriteFile(path, []byte(test.content), 0600); err != nil {
				t.Fatalf("writing test file: %v", err)
			}

			result, err := ReadFromPath(path)
			if err != nil {
				t.Fatalf("ReadFromPath() error: %v", err)
			}
			defer result.Close()
			if result.String() != test.expected {
				t.Errorf("ReadFromPath() = %q, want %q", result.String(), test.expected)
			}
		})
	}
}

func TestReadFromPath_FileNotFound(t *testing.T) {
	_, err := ReadFromPath("/nonexistent/path/to/secret")
	if err == nil {
		t.Error("ReadFromPath() with nonexistent file should return error")
	}
}

func TestReadFromPath_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, []byte(""), 0600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	_, err := ReadFromPath(path)
	if err == nil {
		t.Error("ReadFromPath() with empty file should return error")
	}
}

func TestReadFromPath_WhitespaceOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitespace")
	if err := os.WriteFile(path, []byte("   \n\t\n"), 0600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	_, err := ReadFromPath(path)
	if err == nil {
		t.Error("ReadFromPath() with whitespace-only file should return error")
	}
}

func TestReadKeyFile_Raw(t *testing.T) {
	key := bytes.Repeat([]byte{0xAB}, 32)
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, key, 0600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	buffer, err := ReadKeyFile(path, 32)
	if err != nil {
		t.Fatalf("ReadKeyFile() error: %v", err)
	}
	defer buffer.Close()

	if !buffer.Equal(bytes.Repeat([]byte{0xAB}, 32)) {
		t.Error("raw key content mismatch")
	}
}

func TestReadKeyFile_Hex(t *testing.T) {
	key := bytes.Repeat([]byte{0x5C}, 32)
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	buffer, err := ReadKeyFile(path, 32)
	if err != nil {
		t.Fatalf("ReadKeyFile() error: %v", err)
	}
	defer buffer.Close()

	if !buffer.Equal(key) {
		t.Error("hex key content mismatch")
	}
}

func TestReadKeyFile_WrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("too short"), 0600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	_, err := ReadKeyFile(path, 32)
	if err == nil {
		t.Fatal("expected error for wrong-size key file")
	}
}

func TestReadKeyFile_BadHex(t *testing.T) {
	content := bytes.Repeat([]byte{'z'}, hex.EncodedLen(32))
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	_, err := ReadKeyFile(path, 32)
	if err == nil {
		t.Fatal("expected error for non-hex key file")
	}
}
