// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"bytes"
	"strings"
	"testing"

	"github.com/greenlight-ci/greenlight/lib/runner"
)

func TestPrinterRendersRunLifecycle(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printer := newPrinter(&out)

	stream := []runner.RunEvent{
		{Kind: runner.RunStarted, RunID: "run-abc", Workflow: "demo", JobCount: 2},
		{Kind: runner.JobStarted, JobKey: "build", JobName: "build"},
		{Kind: runner.StepStarted, JobKey: "build", StepIndex: 1, StepCount: 2, StepName: "compile"},
		{Kind: runner.LogLine, JobKey: "build", Stream: "stdout", Line: "compiling main"},
		{Kind: runner.LogLine, JobKey: "build", Stream: "stderr", Line: "warning: slow"},
		{Kind: runner.StepFinished, JobKey: "build", StepName: "compile", Status: "ok", DurationMS: 1200},
		{Kind: runner.JobFinished, JobKey: "build", Status: "success", DurationMS: 3000},
		{Kind: runner.Notice, Message: "remote action skipped by policy"},
		{Kind: runner.JobFinished, JobKey: "docs", Status: "skipped", Reason: "needed job \"build\" failed"},
		{Kind: runner.RunFinished, RunID: "run-abc", Status: "success", DurationMS: 4200},
	}
	for _, ev := range stream {
		printer.event(ev)
	}

	text := out.String()
	for _, want := range []string{
		"demo",
		"run-abc",
		"(2 job(s))",
		"step 1/2: compile",
		"compiling main",
		"warning: slow",
		"remote action skipped by policy",
		"needed job \"build\" failed",
		"success in 4s",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestPrinterSkippedJobShowsReason(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printer := newPrinter(&out)
	printer.event(runner.RunEvent{
		Kind:   runner.JobFinished,
		JobKey: "deploy",
		Status: "skipped",
		Reason: "runs-on [windows-latest] requires windows, host is linux",
	})

	text := out.String()
	if !strings.Contains(text, "skipped") {
		t.Errorf("output missing skip status: %s", text)
	}
	if !strings.Contains(text, "requires windows") {
		t.Errorf("output missing skip reason: %s", text)
	}
}
