// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package run implements the "greenlight run" and "greenlight watch"
// commands: plan a workflow for an event, execute it through the run
// engine, and stream progress to the console or the interactive run
// view. Watch mode reruns the workflow whenever watched files change.
package run
