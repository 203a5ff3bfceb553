// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui holds the shared terminal UI building blocks: the color
// theme, the fuzzy matcher behind workflow name selection, and the
// live run view that renders an engine's event stream.
//
// The run view is a bubbletea model fed from the engine's RunEvent
// channel: one row per job showing a spinner, the current step, and
// elapsed time while running, then a conclusion glyph and duration
// once finished. Pressing q or ctrl+c cancels the run's context; the
// view stays up until the engine winds down and reports the final
// conclusion, so a cancel always shows what actually stopped.
package tui
