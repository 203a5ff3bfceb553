// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifacts implements the "greenlight artifacts" command
// group: list the files a run's jobs captured and retrieve them from
// the content-addressed blob store.
package artifacts
