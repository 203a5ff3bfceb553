// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/greenlight-ci/greenlight/lib/runner"
)

// feed applies engine events to the model the way the bubbletea loop
// would.
func feed(model RunModel, events ...runner.RunEvent) RunModel {
	for _, event := range events {
		updated, _ := model.Update(runEventMsg{event: event})
		model = updated.(RunModel)
	}
	return model
}

func keyPress(model RunModel, msg tea.KeyMsg) RunModel {
	updated, _ := model.Update(msg)
	return updated.(RunModel)
}

func TestRunModelTracksJobLifecycle(t *testing.T) {
	model := NewRunModel(nil, nil)
	model = feed(model,
		runner.RunEvent{Kind: runner.RunStarted, RunID: "run-xyz", Workflow: "ci", JobCount: 2},
		runner.RunEvent{Kind: runner.JobStarted, JobKey: "build", StepCount: 3, Time: time.Now()},
		runner.RunEvent{Kind: runner.StepStarted, JobKey: "build", StepIndex: 1, StepCount: 3, StepName: "Compile"},
	)

	if model.workflow != "ci" || model.runID != "run-xyz" || model.jobCount != 2 {
		t.Errorf("run identity not tracked: %q %q %d", model.workflow, model.runID, model.jobCount)
	}
	if len(model.rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(model.rows))
	}
	row := model.rows[0]
	if row.status != "running" || row.stepName != "Compile" || row.stepIndex != 1 {
		t.Errorf("row = %+v, want running at step 1 Compile", row)
	}

	view := model.View()
	for _, want := range []string{"ci", "run-xyz", "build", "step 1/3: Compile"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	model = feed(model,
		runner.RunEvent{Kind: runner.JobFinished, JobKey: "build", Status: "success", DurationMS: 4200},
	)
	if model.rows[0].status != "success" {
		t.Errorf("row status = %q after finish", model.rows[0].status)
	}
	view = model.View()
	if !strings.Contains(view, glyphSuccess) {
		t.Errorf("view missing success glyph:\n%s", view)
	}
}

func TestRunModelRowStates(t *testing.T) {
	model := NewRunModel(nil, nil)
	model = feed(model,
		runner.RunEvent{Kind: runner.RunStarted, Workflow: "ci", JobCount: 3},
		runner.RunEvent{Kind: runner.JobStarted, JobKey: "running-job", StepCount: 1, Time: time.Now()},
		runner.RunEvent{Kind: runner.JobFinished, JobKey: "failed-job", Status: "failure", DurationMS: 900},
		runner.RunEvent{Kind: runner.JobFinished, JobKey: "skipped-job", Status: "skipped", Reason: `needed job "failed-job" failed`},
	)

	view := model.View()
	for _, want := range []string{
		"failed-job", glyphFailure,
		"skipped-job", `needed job "failed-job" failed`,
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRunModelNoticesCapped(t *testing.T) {
	model := NewRunModel(nil, nil)
	for i := 0; i < maxNotices+3; i++ {
		model = feed(model, runner.RunEvent{Kind: runner.Notice, Message: strings.Repeat("x", i+1)})
	}
	if len(model.notices) != maxNotices {
		t.Errorf("got %d notices, want cap %d", len(model.notices), maxNotices)
	}
	// The oldest messages are dropped.
	if model.notices[0] != strings.Repeat("x", 4) {
		t.Errorf("unexpected oldest notice %q", model.notices[0])
	}
}

func TestRunModelCancelKey(t *testing.T) {
	cancelled := 0
	model := NewRunModel(nil, func() { cancelled++ })

	model = keyPress(model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cancelled != 1 {
		t.Fatalf("cancel called %d times, want 1", cancelled)
	}
	if !model.cancelling {
		t.Error("model not marked cancelling")
	}
	if !strings.Contains(model.View(), "cancelling") {
		t.Errorf("view missing cancel notice:\n%s", model.View())
	}

	// A second press does not cancel twice.
	model = keyPress(model, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cancelled != 1 {
		t.Errorf("cancel called %d times after second press", cancelled)
	}
	_ = model
}

func TestRunModelIgnoresCancelAfterFinish(t *testing.T) {
	cancelled := 0
	model := NewRunModel(nil, func() { cancelled++ })
	model = feed(model, runner.RunEvent{Kind: runner.RunFinished, Status: "success", DurationMS: 1500})

	model = keyPress(model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cancelled != 0 {
		t.Errorf("cancel called on a finished run")
	}
	if !strings.Contains(model.View(), "success in") {
		t.Errorf("view missing final summary:\n%s", model.View())
	}
}

func TestRunModelQuitsWhenStreamCloses(t *testing.T) {
	events := make(chan runner.RunEvent)
	close(events)

	msg := listenForRunEvent(events)()
	if _, ok := msg.(streamClosedMsg); !ok {
		t.Fatalf("listen returned %T, want streamClosedMsg", msg)
	}

	model := NewRunModel(events, nil)
	updated, command := model.Update(msg)
	model = updated.(RunModel)
	if !model.finished {
		t.Error("model not finished after stream close")
	}
	if command == nil {
		t.Fatal("no command returned on stream close")
	}
	if _, ok := command().(tea.QuitMsg); !ok {
		t.Error("stream close did not quit the program")
	}
}

func TestListenDeliversEvents(t *testing.T) {
	events := make(chan runner.RunEvent, 1)
	events <- runner.RunEvent{Kind: runner.RunStarted, Workflow: "ci"}

	msg := listenForRunEvent(events)()
	delivered, ok := msg.(runEventMsg)
	if !ok {
		t.Fatalf("listen returned %T, want runEventMsg", msg)
	}
	if delivered.event.Workflow != "ci" {
		t.Errorf("event workflow = %q", delivered.event.Workflow)
	}
}

func TestFormatElapsed(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{-3 * time.Second, "0s"},
		{45 * time.Second, "45s"},
		{time.Minute + 5*time.Second, "1m05s"},
		{12*time.Minute + 30*time.Second, "12m30s"},
	}
	for _, tc := range cases {
		if got := formatElapsed(tc.d); got != tc.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
