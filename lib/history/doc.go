// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package history maintains the queryable run-history database.
//
// Every completed run is summarized into two SQLite tables: one row per
// run and one row per executed job (per matrix combination). The
// database is an index for the `runs` command family — listing recent
// runs, filtering by workflow or conclusion, and joining job outcomes
// for `runs show`. It is not the source of truth: the per-run record
// files (run.cbor) under the runs directory hold the complete records,
// and step-level detail is always read from there.
//
// The store is backed by [lib/sqlitepool] with its standard pragmas.
// Writes happen once per run, at completion, in a single immediate
// transaction. Reads come from other processes (a `runs list` in a
// second terminal while a run is executing), which WAL mode serves
// without blocking the writer.
package history
