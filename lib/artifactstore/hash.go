// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package artifactstore

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest. All blob identities are this size.
type Hash [32]byte

// blobDomainKey is the 32-byte key for BLAKE3 keyed hashing of blob
// content. Domain separation keeps blob hashes from ever colliding
// with hashes of the same bytes computed elsewhere. The value is the
// ASCII encoding of the domain name, zero-padded to 32 bytes: keyed
// mode treats the key as an opaque value, and readable ASCII makes it
// inspectable in hex dumps. Changing it invalidates every stored blob.
var blobDomainKey = [32]byte{
	'g', 'r', 'e', 'e', 'n', 'l', 'i', 'g', 'h', 't', '.', 'a', 'r', 't', 'i', 'f',
	'a', 'c', 't', '.', 'b', 'l', 'o', 'b', '.', 'v', '1', 0, 0, 0, 0, 0,
}

// HashBlob computes the blob-domain BLAKE3 keyed hash of the given
// content. Always computed on uncompressed, unencrypted bytes so that
// deduplication works across compression and encryption changes.
func HashBlob(content []byte) Hash {
	// NewKeyed only fails for a wrong key length, which the fixed-size
	// array rules out.
	hasher, err := blake3.NewKeyed(blobDomainKey[:])
	if err != nil {
		panic("artifactstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(content)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// FormatHash returns the hex-encoded string representation of a hash.
// This is the canonical format used in indexes, logs, and CLI output.
func FormatHash(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing blob hash: %w", err)
	}
	if len(decoded) != 32 {
		return hash, fmt.Errorf("blob hash is %d bytes, want 32", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}

// FormatRef returns the short artifact reference for a blob hash: the
// "art-" prefix followed by the first 12 hex characters. Refs appear
// in run records and CLI listings; the full hash is kept in the
// artifact index.
func FormatRef(hash Hash) string {
	return "art-" + hex.EncodeToString(hash[:6])
}
