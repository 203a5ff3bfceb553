// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package runs implements the "greenlight runs" command group: list
// recorded runs from the history database, show one run's jobs and
// steps, render run reports, export portable run bundles, and prune
// old history rows.
package runs
