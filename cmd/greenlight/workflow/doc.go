// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow implements the workflow-definition commands of the
// greenlight CLI: validate, list, show, graph, and init. These are
// purely local operations on the workspace's .greenlight/workflows
// directory; nothing here executes a workflow.
package workflow
