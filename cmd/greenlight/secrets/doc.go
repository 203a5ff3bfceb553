// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package secrets implements the "greenlight secrets" command group
// over the workspace's age-encrypted secret store: generate the
// identity, set and remove values, and list stored names. Values are
// only ever decrypted in memory; no subcommand prints one.
package secrets
