// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package artifactstore

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/greenlight-ci/greenlight/lib/secret"
)

// KeySize is the size in bytes of all symmetric keys in the artifact
// encryption system: the master key read from the configured key file
// and the per-blob keys derived from it.
const KeySize = 32

// EncryptedBlobVersion is the version byte that opens every encrypted
// blob envelope. It doubles as the envelope discriminator on disk
// (plain envelopes open with blobFormatPlain) and is included as
// additional authenticated data in the AEAD Seal/Open call, so
// tampering with it causes authentication failure.
const EncryptedBlobVersion byte = 0x02

// EncryptedBlobOverhead is the total byte overhead per encrypted blob:
// 1 (version) + 24 (XChaCha20-Poly1305 nonce) + 16 (Poly1305 tag).
const EncryptedBlobOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// hkdfInfoBlobEncryption is the "info" parameter to HKDF-SHA256 for
// per-blob key derivation, providing domain separation from any other
// use of the master key. Changing it invalidates all encrypted blobs.
var hkdfInfoBlobEncryption = []byte("greenlight.artifact.blob.enc.v1")

// DeriveBlobKey derives the encryption key for one blob from the
// master key and the blob hash. The same blob always derives the same
// key, preserving deduplication: rewriting an identical artifact
// produces an envelope that decrypts with the same derivation.
//
// The masterKey is borrowed (read via Bytes) and NOT closed. The
// returned buffer must be closed by the caller.
func DeriveBlobKey(masterKey *secret.Buffer, blobHash Hash) (*secret.Buffer, error) {
	info := make([]byte, len(hkdfInfoBlobEncryption)+len(blobHash))
	copy(info, hkdfInfoBlobEncryption)
	copy(info[len(hkdfInfoBlobEncryption):], blobHash[:])

	reader := hkdf.New(sha256.New, masterKey.Bytes(), nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	// NewFromBytes copies into mmap and zeros the heap slice.
	return secret.NewFromBytes(derived)
}

// EncryptBlob encrypts plaintext using XChaCha20-Poly1305 and returns
// the encrypted envelope:
//
//	[Version: 1 byte (0x02)] [Nonce: 24 bytes (random)] [Ciphertext+Tag: N+16 bytes]
//
// The version byte and the blob hash are included as additional
// authenticated data. Binding the hash prevents swapping envelopes
// between blobs in the store.
//
// The encryptionKey is borrowed and NOT closed. It must be exactly 32
// bytes (the output of [DeriveBlobKey]).
func EncryptBlob(plaintext []byte, encryptionKey *secret.Buffer, blobHash Hash) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(encryptionKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	aad := buildAAD(EncryptedBlobVersion, blobHash)

	// Allocate output: version + nonce + ciphertext + tag.
	output := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	output[0] = EncryptedBlobVersion
	copy(output[1:], nonce[:])

	// Seal appends the ciphertext+tag to output.
	output = aead.Seal(output, nonce[:], plaintext, aad)
	return output, nil
}

// DecryptBlob decrypts an encrypted envelope produced by EncryptBlob.
// It verifies the version byte, extracts the nonce, and authenticates
// the ciphertext against the AAD (version byte + blob hash).
//
// Returns an error if:
//   - The envelope is too short to contain version + nonce + tag
//   - The version byte is not EncryptedBlobVersion
//   - AEAD authentication fails (wrong key, tampered ciphertext,
//     wrong blob hash)
//
// The encryptionKey is borrowed and NOT closed.
func DecryptBlob(envelope []byte, encryptionKey *secret.Buffer, blobHash Hash) ([]byte, error) {
	if len(envelope) < EncryptedBlobOverhead {
		return nil, fmt.Errorf("encrypted blob is %d bytes, minimum is %d (version + nonce + tag)",
			len(envelope), EncryptedBlobOverhead)
	}

	version := envelope[0]
	if version != EncryptedBlobVersion {
		return nil, fmt.Errorf("encrypted blob version %d is not supported (expected %d)",
			version, EncryptedBlobVersion)
	}

	nonce := envelope[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := envelope[1+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(encryptionKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	aad := buildAAD(version, blobHash)

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("AEAD decryption failed (wrong key, tampered data, or mismatched blob hash): %w", err)
	}

	return plaintext, nil
}

// KeySet holds the artifact encryption master key in guarded memory
// and derives per-blob keys on demand. Derivation is not cached:
// HKDF-SHA256 takes about a microsecond, negligible next to the AEAD
// pass and disk I/O that follow.
//
// Close zeroes and releases the master key. After Close, all methods
// panic (via secret.Buffer's closed check).
type KeySet struct {
	masterKey *secret.Buffer
}

// NewKeySet creates a key set from a master key. The masterKey buffer
// is owned by the KeySet and closed when Close is called. The caller
// must not use masterKey after passing it in.
//
// Returns an error if masterKey is not exactly KeySize (32) bytes.
func NewKeySet(masterKey *secret.Buffer) (*KeySet, error) {
	if masterKey.Len() != KeySize {
		return nil, fmt.Errorf("artifact encryption key must be %d bytes, got %d", KeySize, masterKey.Len())
	}
	return &KeySet{masterKey: masterKey}, nil
}

// LoadKeySet reads the master key from a file (raw bytes or hex) and
// returns a key set over it.
func LoadKeySet(path string) (*KeySet, error) {
	masterKey, err := secret.ReadKeyFile(path, KeySize)
	if err != nil {
		return nil, fmt.Errorf("loading artifact encryption key: %w", err)
	}
	return NewKeySet(masterKey)
}

// Close zeroes and releases the master key. Idempotent.
func (keySet *KeySet) Close() error {
	return keySet.masterKey.Close()
}

// Encrypt encrypts a plain blob envelope for storage. Derives the
// per-blob key and seals with the blob hash as AAD.
func (keySet *KeySet) Encrypt(plaintext []byte, blobHash Hash) ([]byte, error) {
	blobKey, err := DeriveBlobKey(keySet.masterKey, blobHash)
	if err != nil {
		return nil, fmt.Errorf("deriving blob encryption key: %w", err)
	}
	defer blobKey.Close()

	return EncryptBlob(plaintext, blobKey, blobHash)
}

// Decrypt decrypts a stored blob envelope.
func (keySet *KeySet) Decrypt(envelope []byte, blobHash Hash) ([]byte, error) {
	blobKey, err := DeriveBlobKey(keySet.masterKey, blobHash)
	if err != nil {
		return nil, fmt.Errorf("deriving blob encryption key: %w", err)
	}
	defer blobKey.Close()

	return DecryptBlob(envelope, blobKey, blobHash)
}

// buildAAD constructs the additional authenticated data for AEAD
// operations: the version byte followed by the blob hash.
func buildAAD(version byte, blobHash Hash) []byte {
	aad := make([]byte, 1+len(blobHash))
	aad[0] = version
	copy(aad[1:], blobHash[:])
	return aad
}
