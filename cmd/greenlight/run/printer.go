// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/greenlight-ci/greenlight/lib/runner"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
	"github.com/greenlight-ci/greenlight/lib/tui"
)

// printer renders the engine's event stream as plain console lines.
// It shares the TUI theme so runs look the same either way; lipgloss
// drops the styling when stdout is not a terminal.
type printer struct {
	out   io.Writer
	theme tui.Theme

	header lipgloss.Style
	faint  lipgloss.Style
}

func newPrinter(out io.Writer) *printer {
	theme := tui.DefaultTheme
	return &printer{
		out:    out,
		theme:  theme,
		header: lipgloss.NewStyle().Foreground(theme.HeaderForeground).Bold(true),
		faint:  lipgloss.NewStyle().Foreground(theme.FaintText),
	}
}

// event renders one engine event. Called from a single goroutine in
// stream order.
func (p *printer) event(ev runner.RunEvent) {
	switch ev.Kind {
	case runner.RunStarted:
		fmt.Fprintf(p.out, "%s %s %s\n",
			p.header.Render(ev.Workflow),
			p.faint.Render(ev.RunID),
			p.faint.Render(fmt.Sprintf("(%d job(s))", ev.JobCount)))

	case runner.JobStarted:
		fmt.Fprintf(p.out, "%s\n", p.header.Render(ev.JobKey))

	case runner.StepStarted:
		fmt.Fprintf(p.out, "  %s\n",
			p.faint.Render(fmt.Sprintf("step %d/%d: %s", ev.StepIndex, ev.StepCount, ev.StepName)))

	case runner.LogLine:
		prefix := "  │ "
		if ev.Stream == "stderr" {
			prefix = "  ┃ "
		}
		fmt.Fprintf(p.out, "%s%s\n", p.faint.Render(prefix), ev.Line)

	case runner.StepFinished:
		status := workflow.StepStatus(ev.Status)
		style := lipgloss.NewStyle().Foreground(p.theme.StepColor(status))
		fmt.Fprintf(p.out, "  %s %s %s\n",
			style.Render(tui.StepGlyph(status)),
			ev.StepName,
			p.faint.Render(fmt.Sprintf("%s (%s)", ev.Status, p.elapsed(ev.DurationMS))))

	case runner.JobFinished:
		conclusion := workflow.Conclusion(ev.Status)
		style := lipgloss.NewStyle().Foreground(p.theme.ConclusionColor(conclusion))
		detail := p.elapsed(ev.DurationMS)
		if conclusion == workflow.ConclusionSkipped && ev.Reason != "" {
			detail = ev.Reason
		}
		fmt.Fprintf(p.out, "%s %s %s\n",
			style.Render(tui.ConclusionGlyph(conclusion)),
			ev.JobKey,
			style.Render(ev.Status)+" "+p.faint.Render(detail))

	case runner.Notice:
		fmt.Fprintf(p.out, "  %s\n", p.faint.Render(ev.Message))

	case runner.RunFinished:
		conclusion := workflow.Conclusion(ev.Status)
		style := lipgloss.NewStyle().
			Foreground(p.theme.ConclusionColor(conclusion)).
			Bold(true)
		fmt.Fprintf(p.out, "\n%s\n",
			style.Render(fmt.Sprintf("%s %s in %s",
				tui.ConclusionGlyph(conclusion), ev.Status, p.elapsed(ev.DurationMS))))
	}
}

func (p *printer) elapsed(ms int64) string {
	return tui.FormatElapsed(time.Duration(ms) * time.Millisecond)
}
