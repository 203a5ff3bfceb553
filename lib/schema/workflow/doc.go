// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow defines the greenlight workflow model: workflow
// definitions (triggers, jobs, steps, matrix strategies), composite
// action definitions, and the run records produced by the execution
// engine.
//
// These are the wire types. Workflow files are authored as YAML (the
// GitHub-Actions-shaped dialect) or JSONC and decoded into this model
// by lib/workflowdef; run records are serialized with deterministic
// CBOR by lib/codec and as JSON by the CLI's --json output. The JSON
// field names here are the canonical serialized names — the YAML
// dialect's dashed keys (runs-on, timeout-minutes) are mapped in the
// workflowdef decoding layer.
package workflow
