// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package runid derives run identifiers. A run ID is a BLAKE3 keyed
// hash over the workflow name, event type, start time, and a random
// nonce, truncated to 128 bits and rendered in base 36 with a "run-"
// prefix. The hash input makes IDs traceable to a specific run
// attempt while the nonce keeps retries of the same workflow and
// instant distinct. The rendered form is fixed width so IDs sort
// stably in listings.
package runid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/greenlight-ci/greenlight/lib/radix"
)

// Prefix starts every run identifier.
const Prefix = "run-"

// runDomainKey is the BLAKE3 keyed-hash domain for run identifiers.
// The byte values are the ASCII encoding of the domain name, zero
// padded to 32 bytes, so the key is inspectable in hex dumps without
// sacrificing any cryptographic property.
var runDomainKey = [32]byte{
	'g', 'r', 'e', 'e', 'n', 'l', 'i', 'g', 'h', 't', '.', 'r', 'u', 'n', '.', 'v',
	'1', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// width is the digit count of the largest 128-bit value in base 36.
// Every ID is zero padded to this width.
var width = radix.MaxDigits(36)

// New derives a fresh run identifier for one attempt at running the
// named workflow.
func New(workflow, eventType string, startedAt time.Time) (string, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("reading run ID nonce: %w", err)
	}
	return derive(workflow, eventType, startedAt, nonce), nil
}

func derive(workflow, eventType string, startedAt time.Time, nonce [16]byte) string {
	hasher, err := blake3.NewKeyed(runDomainKey[:])
	if err != nil {
		panic("runid: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	// NUL separators keep the variable-length fields from colliding
	// by shifting bytes between them.
	hasher.Write([]byte(workflow))
	hasher.Write([]byte{0})
	hasher.Write([]byte(eventType))
	hasher.Write([]byte{0})
	var stamp [8]byte
	binary.BigEndian.PutUint64(stamp[:], uint64(startedAt.UnixNano()))
	hasher.Write(stamp[:])
	hasher.Write(nonce[:])

	sum := hasher.Sum(nil)
	return encode(binary.BigEndian.Uint64(sum[0:8]), binary.BigEndian.Uint64(sum[8:16]))
}

func encode(hi, lo uint64) string {
	digits := radix.AppendUint128(nil, hi, lo, 36)
	id := make([]byte, 0, len(Prefix)+width)
	id = append(id, Prefix...)
	for i := len(digits); i < width; i++ {
		id = append(id, '0')
	}
	return string(append(id, digits...))
}

// Short abbreviates a run ID for display: the prefix plus the first
// eight digits. Short IDs stay valid lookup keys because history
// resolution accepts any unique prefix. IDs at or under that length
// come back unchanged.
func Short(id string) string {
	const visible = len(Prefix) + 8
	if len(id) <= visible {
		return id
	}
	return id[:visible]
}

// Valid reports whether id has the run identifier shape: the "run-"
// prefix followed by exactly 25 lowercase base-36 digits.
func Valid(id string) bool {
	if !strings.HasPrefix(id, Prefix) {
		return false
	}
	digits := id[len(Prefix):]
	if len(digits) != width {
		return false
	}
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}
