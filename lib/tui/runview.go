// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/greenlight-ci/greenlight/lib/runner"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// Conclusion glyphs for finished rows. The console printer shares
// them so a run reads the same with or without the TUI.
const (
	glyphSuccess = "✓"
	glyphFailure = "✗"
	glyphNeutral = "–"
)

// ConclusionGlyph returns the display glyph for a run or job
// conclusion.
func ConclusionGlyph(conclusion workflow.Conclusion) string {
	return conclusionGlyph(conclusion)
}

// StepGlyph returns the display glyph for a step status.
func StepGlyph(status workflow.StepStatus) string {
	switch status {
	case workflow.StepOK:
		return glyphSuccess
	case workflow.StepFailed:
		return glyphFailure
	default:
		return glyphNeutral
	}
}

// FormatElapsed renders a duration for display: sub-minute times in
// seconds, everything else minutes and seconds.
func FormatElapsed(d time.Duration) string {
	return formatElapsed(d)
}

// maxNotices caps the informational messages kept under the job rows.
const maxNotices = 5

// runEventMsg wraps one engine event for the bubbletea loop.
type runEventMsg struct {
	event runner.RunEvent
}

// streamClosedMsg means the engine closed its event channel: the run
// is over and the final conclusion has been displayed.
type streamClosedMsg struct{}

// RunKeyMap defines the run view's key bindings.
type RunKeyMap struct {
	Cancel key.Binding
}

// DefaultRunKeyMap is the built-in binding set.
var DefaultRunKeyMap = RunKeyMap{
	Cancel: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "cancel"),
	),
}

// jobRow is the display state for one job (one matrix combination).
type jobRow struct {
	key       string
	status    string // "" queued, "running", then the conclusion.
	reason    string
	startedAt time.Time
	duration  time.Duration
	stepIndex int
	stepCount int
	stepName  string
}

// RunModel is the live run view: one row per job fed by the engine's
// event stream, a spinner and current step while running, a glyph and
// duration after. The model quits when the engine closes the stream.
type RunModel struct {
	theme  Theme
	keys   RunKeyMap
	spin   spinner.Model
	events <-chan runner.RunEvent
	cancel func()

	workflow string
	runID    string
	jobCount int

	rows  []jobRow
	index map[string]int

	notices []string

	width      int
	cancelling bool
	finished   bool
	conclusion workflow.Conclusion
	duration   time.Duration
}

// NewRunModel builds a run view reading from an engine's event
// channel. cancel is invoked when the user asks to stop the run; the
// view keeps consuming events until the engine closes the channel, so
// the final state on screen is always the real conclusion.
func NewRunModel(events <-chan runner.RunEvent, cancel func()) RunModel {
	theme := DefaultTheme
	spin := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.StatusRunning)),
	)
	return RunModel{
		theme:  theme,
		keys:   DefaultRunKeyMap,
		spin:   spin,
		events: events,
		cancel: cancel,
		index:  make(map[string]int),
	}
}

// Init implements tea.Model.
func (model RunModel) Init() tea.Cmd {
	return tea.Batch(model.spin.Tick, listenForRunEvent(model.events))
}

// listenForRunEvent returns a command that blocks until the engine
// delivers the next event or closes the channel.
func listenForRunEvent(events <-chan runner.RunEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return runEventMsg{event: event}
	}
}

// Update implements tea.Model.
func (model RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch message := msg.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		return model, nil

	case tea.KeyMsg:
		if key.Matches(message, model.keys.Cancel) && !model.finished && !model.cancelling {
			model.cancelling = true
			if model.cancel != nil {
				model.cancel()
			}
		}
		return model, nil

	case spinner.TickMsg:
		var command tea.Cmd
		model.spin, command = model.spin.Update(message)
		return model, command

	case runEventMsg:
		model.apply(message.event)
		return model, listenForRunEvent(model.events)

	case streamClosedMsg:
		model.finished = true
		return model, tea.Quit
	}
	return model, nil
}

// apply folds one engine event into the display state.
func (model *RunModel) apply(event runner.RunEvent) {
	switch event.Kind {
	case runner.RunStarted:
		model.runID = event.RunID
		model.workflow = event.Workflow
		model.jobCount = event.JobCount

	case runner.JobStarted:
		row := model.row(event.JobKey)
		row.status = "running"
		row.startedAt = event.Time
		row.stepCount = event.StepCount

	case runner.StepStarted:
		row := model.row(event.JobKey)
		row.stepIndex = event.StepIndex
		row.stepCount = event.StepCount
		row.stepName = event.StepName

	case runner.JobFinished:
		row := model.row(event.JobKey)
		row.status = event.Status
		row.reason = event.Reason
		row.duration = time.Duration(event.DurationMS) * time.Millisecond
		row.stepName = ""

	case runner.Notice:
		model.notices = append(model.notices, event.Message)
		if len(model.notices) > maxNotices {
			model.notices = model.notices[len(model.notices)-maxNotices:]
		}

	case runner.RunFinished:
		model.finished = true
		model.conclusion = workflow.Conclusion(event.Status)
		model.duration = time.Duration(event.DurationMS) * time.Millisecond
	}
}

// row returns the display row for a job key, creating it on first
// reference. Rows keep their first-seen order.
func (model *RunModel) row(key string) *jobRow {
	if i, ok := model.index[key]; ok {
		return &model.rows[i]
	}
	model.index[key] = len(model.rows)
	model.rows = append(model.rows, jobRow{key: key})
	return &model.rows[len(model.rows)-1]
}

// View implements tea.Model.
func (model RunModel) View() string {
	var b strings.Builder

	header := lipgloss.NewStyle().Foreground(model.theme.HeaderForeground).Bold(true)
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	title := model.workflow
	if title == "" {
		title = "starting"
	}
	b.WriteString(header.Render(title))
	if model.runID != "" {
		b.WriteString(faint.Render("  " + model.runID))
	}
	b.WriteString("\n\n")

	for i := range model.rows {
		b.WriteString(model.renderRow(&model.rows[i]))
		b.WriteString("\n")
	}

	if len(model.notices) > 0 {
		b.WriteString("\n")
		for _, notice := range model.notices {
			b.WriteString(faint.Render("  " + notice))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(model.renderFooter())
	b.WriteString("\n")
	return b.String()
}

// renderRow draws one job line: glyph or spinner, key, and either the
// current step with elapsed time or the conclusion with duration.
func (model *RunModel) renderRow(row *jobRow) string {
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	name := lipgloss.NewStyle().Foreground(model.theme.NormalText).Render(row.key)

	switch row.status {
	case "":
		return fmt.Sprintf("  %s %s %s", faint.Render(glyphNeutral), name, faint.Render("queued"))

	case "running":
		elapsed := formatElapsed(time.Since(row.startedAt))
		step := ""
		if row.stepName != "" {
			step = fmt.Sprintf("step %d/%d: %s", row.stepIndex, row.stepCount, row.stepName)
		}
		return fmt.Sprintf("  %s %s %s %s",
			model.spin.View(), name, faint.Render(step), faint.Render(elapsed))

	default:
		conclusion := workflow.Conclusion(row.status)
		style := lipgloss.NewStyle().Foreground(model.theme.ConclusionColor(conclusion))
		label := row.status
		detail := formatElapsed(row.duration)
		if conclusion == workflow.ConclusionSkipped && row.reason != "" {
			detail = row.reason
		}
		return fmt.Sprintf("  %s %s %s %s",
			style.Render(conclusionGlyph(conclusion)), name, style.Render(label), faint.Render(detail))
	}
}

// renderFooter draws the status line: help while running, a cancel
// notice while winding down, and the conclusion at the end.
func (model *RunModel) renderFooter() string {
	switch {
	case model.finished:
		style := lipgloss.NewStyle().
			Foreground(model.theme.ConclusionColor(model.conclusion)).
			Bold(true)
		return style.Render(fmt.Sprintf("%s %s in %s",
			conclusionGlyph(model.conclusion), model.conclusion, formatElapsed(model.duration)))

	case model.cancelling:
		style := lipgloss.NewStyle().Foreground(model.theme.StatusCancelled)
		return style.Render("cancelling, waiting for jobs to stop")

	default:
		help := lipgloss.NewStyle().Foreground(model.theme.HelpText)
		return help.Render("q to cancel")
	}
}

func conclusionGlyph(conclusion workflow.Conclusion) string {
	switch conclusion {
	case workflow.ConclusionSuccess:
		return glyphSuccess
	case workflow.ConclusionFailure:
		return glyphFailure
	default:
		return glyphNeutral
	}
}

// formatElapsed renders a duration for row display: sub-minute times
// in seconds, everything else minutes and seconds.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
