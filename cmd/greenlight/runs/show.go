// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/history"
	"github.com/greenlight-ci/greenlight/lib/runner"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
	"github.com/greenlight-ci/greenlight/lib/tui"
)

// showParams holds the parameters for the runs show command.
type showParams struct {
	cli.JSONOutput
}

// showCommand returns the "runs show" command.
func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Show one run's jobs and steps",
		Description: `Show a recorded run: its trigger and conclusion, every job with its
outcome, and the step-by-step detail from the run record. When the
run directory has been removed the history database still identifies
the jobs, just without step detail.

With --json the full run record is printed (or the history rows when
the record is gone).`,
		Usage: "greenlight runs show <run-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Show a run by ID prefix",
				Command:     "greenlight runs show 1a2b3c",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("runs show", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("runs show takes exactly one run ID (got %d)", len(args))
			}

			workspace, err := cli.FindWorkspace()
			if err != nil {
				return err
			}
			store, err := openHistory(workspace, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runID, err := store.ResolveID(ctx, args[0])
			if err != nil {
				return err
			}
			detail, err := store.Get(ctx, runID)
			if err != nil {
				return err
			}

			runDir := filepath.Join(workspace.Config.RunsDir(workspace.Root), runID)
			record, recordErr := runner.ReadRecord(runDir)
			if recordErr != nil && !errors.Is(recordErr, os.ErrNotExist) {
				return recordErr
			}

			if params.OutputJSON {
				if record != nil {
					return cli.WriteJSON(record)
				}
				return cli.WriteJSON(detail)
			}

			printRun(os.Stdout, detail, record)
			return nil
		},
	}
}

// printRun renders the run header and its jobs. record carries the
// step detail and may be nil when the run directory is gone.
func printRun(out io.Writer, detail *history.RunDetail, record *workflow.RunRecord) {
	theme := tui.DefaultTheme
	header := lipgloss.NewStyle().Foreground(theme.HeaderForeground).Bold(true)
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)

	conclusion := workflow.Conclusion(detail.Conclusion)
	conclusionStyle := lipgloss.NewStyle().Foreground(theme.ConclusionColor(conclusion)).Bold(true)

	fmt.Fprintf(out, "%s %s %s\n",
		header.Render(detail.Workflow),
		faint.Render(detail.ID),
		faint.Render(triggerDisplay(detail, record)))
	fmt.Fprintf(out, "%s %s\n\n",
		conclusionStyle.Render(fmt.Sprintf("%s %s in %s",
			tui.ConclusionGlyph(conclusion), detail.Conclusion,
			tui.FormatElapsed(time.Duration(detail.DurationMS)*time.Millisecond))),
		faint.Render("started "+startedDisplay(detail.StartedAt)))

	// Prefer the run record's job entries: they carry steps, outputs,
	// and artifacts. History rows are the fallback.
	if record != nil {
		for i := range record.Jobs {
			printJobRecord(out, theme, faint, &record.Jobs[i])
		}
		if record.Conclusion == workflow.ConclusionFailure && record.ErrorMessage != "" {
			fmt.Fprintf(out, "\n%s %s\n",
				lipgloss.NewStyle().Foreground(theme.StatusFailure).Render(record.FailedJob+":"),
				record.ErrorMessage)
		}
		return
	}

	for _, job := range detail.Jobs {
		jobConclusion := workflow.Conclusion(job.Status)
		style := lipgloss.NewStyle().Foreground(theme.ConclusionColor(jobConclusion))
		line := fmt.Sprintf("%s %s %s",
			style.Render(tui.ConclusionGlyph(jobConclusion)),
			jobKeyDisplay(job.JobID, job.MatrixLabel),
			style.Render(job.Status)+" "+faint.Render(tui.FormatElapsed(time.Duration(job.DurationMS)*time.Millisecond)))
		fmt.Fprintln(out, line)
		if job.Error != "" {
			fmt.Fprintf(out, "  %s\n", faint.Render(job.Error))
		}
	}
	fmt.Fprintf(out, "\n%s\n", faint.Render("run directory removed; step detail unavailable"))
}

// printJobRecord renders one job with its steps and captured
// artifacts.
func printJobRecord(out io.Writer, theme tui.Theme, faint lipgloss.Style, job *workflow.JobRecord) {
	style := lipgloss.NewStyle().Foreground(theme.ConclusionColor(job.Conclusion))
	detail := tui.FormatElapsed(time.Duration(job.DurationMS) * time.Millisecond)
	if job.Conclusion == workflow.ConclusionSkipped && job.Reason != "" {
		detail = job.Reason
	}
	status := string(job.Conclusion)
	if job.AllowedFailure {
		status += " (allowed)"
	}
	fmt.Fprintf(out, "%s %s %s\n",
		style.Render(tui.ConclusionGlyph(job.Conclusion)),
		job.Key(),
		style.Render(status)+" "+faint.Render(detail))

	for _, step := range job.Steps {
		stepStyle := lipgloss.NewStyle().Foreground(theme.StepColor(step.Status))
		fmt.Fprintf(out, "  %s %s %s\n",
			stepStyle.Render(tui.StepGlyph(step.Status)),
			step.Name,
			faint.Render(fmt.Sprintf("%s (%s)", step.Status,
				tui.FormatElapsed(time.Duration(step.DurationMS)*time.Millisecond))))
		if step.Error != "" {
			fmt.Fprintf(out, "      %s\n", faint.Render(step.Error))
		}
	}
	for _, artifact := range job.Artifacts {
		fmt.Fprintf(out, "  %s\n",
			faint.Render(fmt.Sprintf("artifact %s (%s, %s)",
				artifact.Name, formatSize(artifact.SizeBytes), artifact.Ref)))
	}
}

// triggerDisplay renders the run's trigger for the header line.
func triggerDisplay(detail *history.RunDetail, record *workflow.RunRecord) string {
	if record == nil {
		return detail.Event
	}
	display := record.Trigger.Type
	if record.Trigger.Branch != "" {
		display += " " + record.Trigger.Branch
	}
	return display
}

// jobKeyDisplay reassembles a history row's run-unique job key.
func jobKeyDisplay(jobID, matrixLabel string) string {
	if matrixLabel == "" {
		return jobID
	}
	return jobID + " (" + matrixLabel + ")"
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
