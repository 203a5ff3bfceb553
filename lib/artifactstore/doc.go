// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifactstore implements content-addressed storage for files
// captured from job artifact globs.
//
// Each captured file is stored as a single blob addressed by its
// BLAKE3 keyed hash (computed over the uncompressed content, so
// identical artifacts deduplicate across runs regardless of
// compression settings). Blobs live under a two-level fanout:
//
//	.greenlight/artifacts/blobs/<first 2 hex>/<full 64 hex>
//
// On disk every blob is a self-describing envelope. The first byte
// selects the format: a plain envelope carries a compression tag and
// the uncompressed size, an encrypted envelope wraps a plain envelope
// in XChaCha20-Poly1305 with a key derived per blob from the master
// key file. Compression is chosen per blob by content sniffing: text
// compresses with zstd, binary with lz4, and anything the chosen
// algorithm cannot shrink is stored verbatim.
//
// Each run directory carries an artifacts.cbor index mapping artifact
// names to blob hashes; [ExportRun] bundles a run directory and its
// referenced blobs into an lz4-framed tar.
package artifactstore
