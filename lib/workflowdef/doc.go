// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflowdef provides parsing, validation, and dependency
// analysis for greenlight workflow definitions. Workflows are
// declarative automation definitions (triggers, jobs, steps)
// authored in a GitHub-Actions-shaped YAML dialect or as JSONC.
//
// The typical flow:
//
//  1. ReadFile or Parse decodes source bytes into a workflow.Workflow
//  2. Validate runs structural checks (run/uses exclusivity,
//     identifier rules, needs references, cron syntax)
//  3. JobGraph builds the needs DAG, rejecting cycles, and
//     ExecutionOrder produces a deterministic topological order
//
// Parsing is strict: unknown keys are rejected with their line
// numbers, so typos surface at validation time instead of being
// silently ignored at execution time.
package workflowdef
