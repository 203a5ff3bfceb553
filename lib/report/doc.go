// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package report renders a run record into shareable summaries.
//
// [Collect] pairs a [workflow.RunRecord] with excerpts from the step
// logs of whatever failed, read from the run directory's log tree.
// The resulting [Summary] renders as GitHub-flavored Markdown
// ([Summary.Markdown]) for pasting into an issue or a commit comment,
// or as a standalone HTML page ([Summary.HTML]) with highlighted log
// excerpts for archiving next to the run.
//
// Reports are a pure function of the record and the log files: they
// can be produced at run completion or regenerated later from history,
// as long as the run directory still exists. When it does not, the
// summary degrades to tables only.
package report
