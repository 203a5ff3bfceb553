// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchfs watches a workspace tree and reports change batches.
//
// The watcher recursively registers every directory under the root
// with fsnotify (adding new directories as they appear), filters out
// the paths CI reruns should never react to — the .greenlight state
// tree, .git, editor temp files, plus configured ignore globs — and
// coalesces event bursts: the first qualifying change opens a debounce
// window, everything arriving inside the window joins the batch, and
// the batch is delivered as sorted workspace-relative paths when the
// window closes. One save in an editor typically produces several
// filesystem events; a branch checkout produces thousands. Both
// arrive as one batch.
//
// Watch mode consumes the batches: each one cancels the in-flight run
// and starts a fresh one.
package watchfs
