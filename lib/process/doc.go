// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint error handler. Errors
// returned from run() in main() funnel through Fatal, which reports to
// stderr without depending on the structured logger: entrypoint
// failures include flag parse and config load errors that occur before
// logging is configured.
package process
