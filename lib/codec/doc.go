// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides greenlight's standard CBOR encoding
// configuration.
//
// Greenlight uses its serialization formats with a clear boundary:
//
//   - YAML and JSONC for workflow definitions, the human-authored
//     surface.
//   - JSON for CLI --json output and the live result.jsonl stream,
//     which external tooling tails.
//   - CBOR for internal on-disk records: the final run record
//     (run.cbor), the per-run artifact index (artifacts.cbor), and
//     export framing.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every greenlight package encodes identically without
// duplicating configuration. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes, which keeps record hashes stable.
//
// For buffer-oriented operations (record files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (export archives):
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// # Struct Tag Rules
//
// The struct tag on a type documents its serialization format:
//
//   - `cbor` tag: this type is ONLY ever serialized as CBOR. It will
//     never be marshaled to JSON or printed by CLI tooling. Examples:
//     the artifact index entries, export frame headers.
//   - `json` tag: this type may be serialized as BOTH JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags as fallback when `cbor`
//     tags are absent, so a single `json` tag controls field naming
//     and omitempty for both formats. Examples: run records, which
//     land in run.cbor and also back `runs show --json`.
//
// Never use both `cbor` and `json` tags on the same field. The tag
// choice documents the contract, and doubling up obscures whether a
// type participates in JSON serialization.
package codec
