// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with a time.After fallback) so individual tests do not
// hand-roll the select. Channel-driven code under test hangs forever
// when it drops a send; the valve turns that hang into a test failure
// with a message.
//
// Helpers call t.Fatalf on failure rather than returning errors, since
// test setup failures are not recoverable.
package testutil
