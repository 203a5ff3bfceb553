// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package runner is the workflow execution engine. It turns a parsed
// workflow plus a trigger event into a plan (matrix expansion, needs
// DAG, topological waves), executes the plan's jobs as local
// processes, and produces the run's durable records.
//
// Planning and execution are separate: Plan is pure and side-effect
// free (greenlight run --dry-run stops there), while Engine.Execute
// owns the run directory, the process lifecycle, and the JSONL, CBOR,
// and history records.
//
// Jobs whose needs are satisfied run concurrently; matrix combinations
// of one job share a fail-fast context and an optional parallelism
// cap. Each step command runs in its own process group so cancellation
// reaches the whole process tree, with an optional SIGTERM grace
// window before SIGKILL.
//
// Progress is observable through a RunEvent channel consumed by the
// console printer, the TUI, or any other listener. The engine closes
// the channel when the run finishes; consumers must drain it.
package runner
